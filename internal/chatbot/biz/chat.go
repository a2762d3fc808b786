package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kenneth-kang/elementary-chatbot/internal/pkg/usagelog"
	"github.com/kenneth-kang/elementary-chatbot/pkg/errors"
	"github.com/kenneth-kang/elementary-chatbot/pkg/llm"
)

// contextMarker introduces the retrieved reference block inside the
// system turn.
const contextMarker = "[📚 참고 자료]"

// Augmentation echoes what retrieval contributed to a chat request.
type Augmentation struct {
	RAGUsed     bool
	Sources     []string
	ContextSize int
}

// ChatResult is a whole-response chat outcome.
type ChatResult struct {
	Response string
	Model    string
	Usage    llm.Usage
	Augmentation
}

// ChatService assembles the message sequence for each request and
// dispatches it to the model. It is stateless across requests; all
// conversation state lives in the caller supplied history.
type ChatService struct {
	retrieval     *Retrieval
	provider      llm.ChatProvider
	systemPrompt  string
	historyWindow int
	topK          int
	usage         *usagelog.Logger
}

// ChatServiceConfig wires the chat service dependencies.
type ChatServiceConfig struct {
	Retrieval     *Retrieval
	Provider      llm.ChatProvider
	SystemPrompt  string
	HistoryWindow int
	TopK          int
	// Usage is optional; nil disables token usage logging.
	Usage *usagelog.Logger
}

// NewChatService creates the conversation orchestrator.
func NewChatService(cfg *ChatServiceConfig) *ChatService {
	return &ChatService{
		retrieval:     cfg.Retrieval,
		provider:      cfg.Provider,
		systemPrompt:  cfg.SystemPrompt,
		historyWindow: cfg.HistoryWindow,
		topK:          cfg.TopK,
		usage:         cfg.Usage,
	}
}

// buildMessages assembles system turn, optional retrieved context,
// trailing history window and the user turn. The empty-message check
// runs before any external call.
func (s *ChatService) buildMessages(ctx context.Context, message string, history []llm.Message, useRAG bool) ([]llm.Message, *Augmentation, error) {
	if strings.TrimSpace(message) == "" {
		return nil, nil, errors.ErrEmptyMessage
	}

	system := s.systemPrompt
	aug := &Augmentation{}

	if useRAG {
		contextBlock, sources, err := s.retrieval.BuildContext(ctx, message, s.topK)
		if err != nil {
			return nil, nil, err
		}
		if contextBlock != "" {
			system = system + "\n\n" + contextMarker + "\n" + contextBlock
			aug.RAGUsed = true
			aug.Sources = sources
			aug.ContextSize = len(contextBlock)
		}
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})

	if window := s.historyWindow; window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	messages = append(messages, history...)

	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})
	return messages, aug, nil
}

// Chat runs one whole-response conversation turn.
func (s *ChatService) Chat(ctx context.Context, message string, history []llm.Message, useRAG bool) (*ChatResult, error) {
	ctx, span := tracer.Start(ctx, "chat.Chat")
	defer span.End()
	span.SetAttributes(attribute.Bool("chat.use_rag", useRAG))

	messages, aug, err := s.buildMessages(ctx, message, history, useRAG)
	if err != nil {
		s.retrieval.metrics.RecordChat(false, err)
		return nil, err
	}

	start := time.Now()
	result, err := s.provider.Chat(ctx, messages)
	s.retrieval.metrics.RecordLLMCall(time.Since(start), usagePrompt(result), usageCompletion(result), err)
	if err != nil {
		s.retrieval.metrics.RecordChat(aug.RAGUsed, err)
		return nil, errors.ErrDispatch.WithCause(err)
	}

	s.retrieval.metrics.RecordChat(aug.RAGUsed, nil)
	s.logUsage(result.Model, message, result.Content, result.Usage)

	logger.Infow("chat completed",
		"rag_used", aug.RAGUsed,
		"sources", len(aug.Sources),
		"total_tokens", result.Usage.TotalTokens,
	)

	return &ChatResult{
		Response:     result.Content,
		Model:        result.Model,
		Usage:        result.Usage,
		Augmentation: *aug,
	}, nil
}

// ChatStream runs one streamed conversation turn. The returned channel
// forwards content events in arrival order and is terminated by exactly
// one done or error event. Augmentation info is available immediately.
// Cancelling ctx stops consumption of the upstream stream promptly.
func (s *ChatService) ChatStream(ctx context.Context, message string, history []llm.Message, useRAG bool) (<-chan llm.StreamEvent, *Augmentation, error) {
	ctx, span := tracer.Start(ctx, "chat.ChatStream")
	span.SetAttributes(attribute.Bool("chat.use_rag", useRAG))

	messages, aug, err := s.buildMessages(ctx, message, history, useRAG)
	if err != nil {
		span.End()
		s.retrieval.metrics.RecordChat(false, err)
		return nil, nil, err
	}

	start := time.Now()
	upstream, err := s.provider.ChatStream(ctx, messages)
	if err != nil {
		span.End()
		s.retrieval.metrics.RecordLLMCall(time.Since(start), 0, 0, err)
		s.retrieval.metrics.RecordChat(aug.RAGUsed, err)
		return nil, nil, errors.ErrDispatch.WithCause(err)
	}

	events := make(chan llm.StreamEvent)
	go func() {
		defer close(events)
		defer span.End()

		var response strings.Builder
		for {
			select {
			case <-ctx.Done():
				s.retrieval.metrics.RecordStream(true)
				s.retrieval.metrics.RecordChat(aug.RAGUsed, ctx.Err())
				emit(events, llm.StreamEvent{Err: ctx.Err()})
				go drain(upstream)
				return

			case ev, ok := <-upstream:
				if !ok {
					// Upstream closed without a terminal event.
					s.retrieval.metrics.RecordStream(false)
					s.retrieval.metrics.RecordChat(aug.RAGUsed, errors.ErrDispatch)
					emit(events, llm.StreamEvent{Err: errors.ErrDispatch})
					return
				}

				switch {
				case ev.Err != nil:
					s.retrieval.metrics.RecordLLMCall(time.Since(start), 0, 0, ev.Err)
					s.retrieval.metrics.RecordStream(false)
					s.retrieval.metrics.RecordChat(aug.RAGUsed, ev.Err)
					emit(events, llm.StreamEvent{Err: errors.ErrDispatch.WithCause(ev.Err)})
					return

				case ev.Done:
					s.retrieval.metrics.RecordLLMCall(time.Since(start), ev.Usage.PromptTokens, ev.Usage.CompletionTokens, nil)
					s.retrieval.metrics.RecordStream(false)
					s.retrieval.metrics.RecordChat(aug.RAGUsed, nil)
					s.logUsage("", message, response.String(), ev.Usage)
					emit(events, ev)
					return

				default:
					response.WriteString(ev.Content)
					select {
					case events <- ev:
					case <-ctx.Done():
						s.retrieval.metrics.RecordStream(true)
						s.retrieval.metrics.RecordChat(aug.RAGUsed, ctx.Err())
						emit(events, llm.StreamEvent{Err: ctx.Err()})
						go drain(upstream)
						return
					}
				}
			}
		}
	}()

	return events, aug, nil
}

// emit delivers the terminal event without blocking forever when the
// consumer has already walked away.
func emit(events chan<- llm.StreamEvent, ev llm.StreamEvent) {
	select {
	case events <- ev:
	case <-time.After(time.Second):
	}
}

// drain consumes the rest of an abandoned provider stream so the
// provider goroutine can deliver its terminal event and exit.
func drain(upstream <-chan llm.StreamEvent) {
	for range upstream {
	}
}

func (s *ChatService) logUsage(model, userText, responseText string, usage llm.Usage) {
	if s.usage == nil {
		return
	}
	if model == "" {
		model = s.provider.Name()
	}
	s.usage.Log(usagelog.Record{
		Model:        model,
		UserText:     userText,
		ResponseText: responseText,
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		TotalTokens:  usage.TotalTokens,
	})
}

func usagePrompt(r *llm.ChatResult) int {
	if r == nil {
		return 0
	}
	return r.Usage.PromptTokens
}

func usageCompletion(r *llm.ChatResult) int {
	if r == nil {
		return 0
	}
	return r.Usage.CompletionTokens
}
