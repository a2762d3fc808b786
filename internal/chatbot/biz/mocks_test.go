package biz

import (
	"context"
	"fmt"

	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/store"
	"github.com/kenneth-kang/elementary-chatbot/pkg/llm"
)

// mockEmbedder returns per-text vectors from a fixture map, with a unit
// fallback for texts it does not know.
type mockEmbedder struct {
	vectors   map[string][]float32
	failAfter int // fail from this call on, 0 disables
	calls     int
	err       error
}

func (m *mockEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	m.calls++
	if m.failAfter > 0 && m.calls >= m.failAfter {
		err := m.err
		if err == nil {
			err = fmt.Errorf("embedder down")
		}
		return nil, err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0, 0}, nil
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.EmbedSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

// countingStore wraps a VectorStore and counts queries so tests can
// assert retrieval was skipped.
type countingStore struct {
	store.VectorStore
	queryCalls int
}

func (s *countingStore) Query(ctx context.Context, embedding []float32, n int) ([]*store.QueryResult, error) {
	s.queryCalls++
	return s.VectorStore.Query(ctx, embedding, n)
}

// failingStore fails Add from a given call on.
type failingStore struct {
	store.VectorStore
	failAfter int
	adds      int
}

func (s *failingStore) Add(ctx context.Context, record *store.Record) error {
	s.adds++
	if s.failAfter > 0 && s.adds >= s.failAfter {
		return fmt.Errorf("store write failed")
	}
	return s.VectorStore.Add(ctx, record)
}

// mockChatProvider records the message sequence it was handed and plays
// back a canned response or stream.
type mockChatProvider struct {
	lastMessages []llm.Message
	chatCalls    int
	response     string
	err          error
	streamEvents []llm.StreamEvent
}

func (m *mockChatProvider) Chat(_ context.Context, messages []llm.Message) (*llm.ChatResult, error) {
	m.chatCalls++
	m.lastMessages = messages
	if m.err != nil {
		return nil, m.err
	}
	return &llm.ChatResult{
		Content: m.response,
		Model:   "mock-model",
		Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (m *mockChatProvider) ChatStream(_ context.Context, messages []llm.Message) (<-chan llm.StreamEvent, error) {
	m.chatCalls++
	m.lastMessages = messages
	if m.err != nil {
		return nil, m.err
	}

	events := make(chan llm.StreamEvent, len(m.streamEvents))
	for _, ev := range m.streamEvents {
		events <- ev
	}
	close(events)
	return events, nil
}

func (m *mockChatProvider) Name() string { return "mock-chat" }

func newTestRetrieval(embedder *mockEmbedder, vectorStore store.VectorStore) *Retrieval {
	if embedder == nil {
		embedder = &mockEmbedder{}
	}
	if vectorStore == nil {
		vectorStore = store.NewMemoryStore(0)
	}
	return NewRetrieval(embedder, vectorStore, 3)
}

func newTestChatService(retrieval *Retrieval, provider llm.ChatProvider) *ChatService {
	return NewChatService(&ChatServiceConfig{
		Retrieval:     retrieval,
		Provider:      provider,
		SystemPrompt:  "너는 친절한 선생님이야.",
		HistoryWindow: 10,
		TopK:          3,
	})
}
