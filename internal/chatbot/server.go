// Package chatbot provides the tutoring chatbot server implementation.
package chatbot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/biz"
	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/handler"
	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/router"
	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/store"
	"github.com/kenneth-kang/elementary-chatbot/internal/pkg/usagelog"
	"github.com/kenneth-kang/elementary-chatbot/pkg/app"
	"github.com/kenneth-kang/elementary-chatbot/pkg/component/milvus"
	"github.com/kenneth-kang/elementary-chatbot/pkg/llm"
	cacheopts "github.com/kenneth-kang/elementary-chatbot/pkg/options/cache"
	llmopts "github.com/kenneth-kang/elementary-chatbot/pkg/options/llm"
	logopts "github.com/kenneth-kang/elementary-chatbot/pkg/options/logger"
	milvusopts "github.com/kenneth-kang/elementary-chatbot/pkg/options/milvus"
	httpopts "github.com/kenneth-kang/elementary-chatbot/pkg/options/server/http"
	tutoropts "github.com/kenneth-kang/elementary-chatbot/pkg/options/tutor"
	"github.com/kenneth-kang/elementary-chatbot/pkg/pool"

	// Register LLM providers.
	_ "github.com/kenneth-kang/elementary-chatbot/pkg/llm/ollama"
	_ "github.com/kenneth-kang/elementary-chatbot/pkg/llm/openai"
)

// Name is the name of the application.
const Name = "elementary-chatbot"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	MilvusOptions    *milvusopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	TutorOptions     *tutoropts.Options
	CacheOptions     *cacheopts.Options
	ShutdownTimeout  time.Duration
}

// Server represents the chatbot server.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	closers         []func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. Initialize the logger
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting chatbot service...")

	var closers []func()

	// 2. Initialize the vector store
	vectorStore, storeClose, err := cfg.newVectorStore(ctx)
	if err != nil {
		return nil, err
	}
	if storeClose != nil {
		closers = append(closers, storeClose)
	}
	logger.Infow("Vector store initialized", "backend", cfg.TutorOptions.StoreBackend)

	// 3. Initialize the LLM providers
	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	// 4. Wrap the embedder with the Redis cache when enabled
	embedProvider, redisClose := cfg.wrapEmbeddingCache(embedProvider)
	if redisClose != nil {
		closers = append(closers, redisClose)
	}

	// 5. Initialize the usage log
	var usageLogger *usagelog.Logger
	if path := cfg.TutorOptions.UsageLogPath; path != "" {
		usageLogger, err = usagelog.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open usage log: %w", err)
		}
		closers = append(closers, func() { _ = usageLogger.Close() })
		logger.Infow("Usage log initialized", "path", path)
	}

	// 6. Initialize the biz layer
	retrieval := biz.NewRetrieval(embedProvider, vectorStore, cfg.TutorOptions.TopK)
	chatService := biz.NewChatService(&biz.ChatServiceConfig{
		Retrieval:     retrieval,
		Provider:      chatProvider,
		SystemPrompt:  cfg.TutorOptions.SystemPrompt,
		HistoryWindow: cfg.TutorOptions.HistoryWindow,
		TopK:          cfg.TutorOptions.TopK,
		Usage:         usageLogger,
	})
	logger.Info("Chat service initialized")

	// 7. Seed starter materials off the startup path
	if cfg.TutorOptions.SeedMaterials {
		if err := seedAsync(ctx, retrieval, &closers); err != nil {
			return nil, err
		}
	}

	// 8. Initialize the handler layer
	chatHandler := handler.NewChatHandler(chatService)
	docHandler := handler.NewDocumentHandler(retrieval, cfg.TutorOptions.UploadDir)
	systemHandler := handler.NewSystemHandler(retrieval, embedProvider, chatProvider)
	logger.Info("Handler layer initialized")

	// 9. Register routes
	engine := router.New()
	router.Register(engine, chatHandler, docHandler, systemHandler)

	srv := &http.Server{
		Addr:        cfg.HTTPOptions.Addr,
		Handler:     engine,
		ReadTimeout: cfg.HTTPOptions.ReadTimeout,
		IdleTimeout: cfg.HTTPOptions.IdleTimeout,
		// WriteTimeout stays unset: /chat/stream holds the response
		// open for the lifetime of the model stream.
	}

	logger.Info("Chatbot service is ready")
	return &Server{
		srv:             srv,
		shutdownTimeout: cfg.ShutdownTimeout,
		closers:         closers,
	}, nil
}

// newVectorStore builds the configured store backend.
func (cfg *Config) newVectorStore(ctx context.Context) (store.VectorStore, func(), error) {
	switch cfg.TutorOptions.StoreBackend {
	case "milvus":
		milvusClient, err := milvus.New(cfg.MilvusOptions)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		milvusStore, err := store.NewMilvusStore(ctx, milvusClient, cfg.TutorOptions.Collection, cfg.TutorOptions.EmbeddingDim)
		if err != nil {
			_ = milvusClient.Close(context.Background())
			return nil, nil, fmt.Errorf("failed to initialize milvus store: %w", err)
		}
		return milvusStore, func() { _ = milvusClient.Close(context.Background()) }, nil

	default:
		return store.NewMemoryStore(cfg.TutorOptions.EmbeddingDim), nil, nil
	}
}

// wrapEmbeddingCache returns the cached embedder when Redis is
// configured and reachable, the bare provider otherwise.
func (cfg *Config) wrapEmbeddingCache(embedder llm.EmbeddingProvider) (llm.EmbeddingProvider, func()) {
	if cfg.CacheOptions == nil || !cfg.CacheOptions.Enabled || cfg.CacheOptions.Redis == nil {
		logger.Info("Embedding cache is disabled")
		return embedder, nil
	}

	redisOpts := cfg.CacheOptions.Redis
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         fmt.Sprintf("%s:%d", redisOpts.Host, redisOpts.Port),
		Password:     redisOpts.Password,
		DB:           redisOpts.Database,
		MaxRetries:   redisOpts.MaxRetries,
		PoolSize:     redisOpts.PoolSize,
		MinIdleConns: redisOpts.MinIdleConns,
		DialTimeout:  redisOpts.DialTimeout,
		ReadTimeout:  redisOpts.ReadTimeout,
		WriteTimeout: redisOpts.WriteTimeout,
		PoolTimeout:  redisOpts.PoolTimeout,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warnw("failed to connect to redis, embedding cache disabled", "error", err.Error())
		_ = redisClient.Close()
		return embedder, nil
	}

	cached := llm.NewCachedEmbeddingProvider(embedder, redisClient, &llm.EmbeddingCacheConfig{
		Enabled:   true,
		TTL:       cfg.CacheOptions.TTL,
		KeyPrefix: cfg.CacheOptions.KeyPrefix,
	})
	logger.Infow("Embedding cache initialized",
		"host", redisOpts.Host,
		"port", redisOpts.Port,
		"ttl", cfg.CacheOptions.TTL,
	)
	return cached, func() { _ = redisClient.Close() }
}

// seedAsync ingests the starter materials on the background pool so an
// unreachable model server does not block startup.
func seedAsync(ctx context.Context, retrieval *biz.Retrieval, closers *[]func()) error {
	seedPool, err := pool.NewPool("seed", pool.BackgroundPool, pool.BackgroundPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to create seed pool: %w", err)
	}
	*closers = append(*closers, func() { _ = seedPool.ReleaseTimeout(5 * time.Second) })

	if err := seedPool.Submit(func() {
		if err := retrieval.SeedMaterials(ctx); err != nil {
			logger.Warnw("failed to seed starter materials", "error", err.Error())
		}
	}); err != nil {
		logger.Warnw("failed to schedule starter material seeding", "error", err.Error())
	}
	return nil
}

// Run starts the server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		for i := len(s.closers) - 1; i >= 0; i-- {
			s.closers[i]()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down chatbot service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat:      %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Store:     %s\n", cfg.TutorOptions.StoreBackend)
}
