package handler_test

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/biz"
	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/handler"
	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/router"
	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/store"
	"github.com/kenneth-kang/elementary-chatbot/pkg/errors"
	"github.com/kenneth-kang/elementary-chatbot/pkg/llm"
)

// stubEmbedder returns a fixed unit vector for every text.
type stubEmbedder struct{}

func (stubEmbedder) EmbedSingle(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

func (s stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (stubEmbedder) Name() string { return "stub-embedder" }

// stubChat plays back a canned response or stream.
type stubChat struct {
	response     string
	streamEvents []llm.StreamEvent
	err          error
}

func (s *stubChat) Chat(context.Context, []llm.Message) (*llm.ChatResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.ChatResult{
		Content: s.response,
		Model:   "stub-model",
		Usage:   llm.Usage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10},
	}, nil
}

func (s *stubChat) ChatStream(context.Context, []llm.Message) (<-chan llm.StreamEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	events := make(chan llm.StreamEvent, len(s.streamEvents))
	for _, ev := range s.streamEvents {
		events <- ev
	}
	close(events)
	return events, nil
}

func (s *stubChat) Name() string { return "stub-chat" }

func (s *stubChat) ListModels(context.Context) ([]string, error) {
	return []string{"stub-model"}, nil
}

func newTestEngine(t *testing.T, chat *stubChat) (*gin.Engine, *biz.Retrieval) {
	t.Helper()

	retrieval := biz.NewRetrieval(stubEmbedder{}, store.NewMemoryStore(0), 3)
	chatService := biz.NewChatService(&biz.ChatServiceConfig{
		Retrieval:     retrieval,
		Provider:      chat,
		SystemPrompt:  "너는 친절한 선생님이야.",
		HistoryWindow: 10,
		TopK:          3,
	})

	engine := router.New()
	router.Register(engine,
		handler.NewChatHandler(chatService),
		handler.NewDocumentHandler(retrieval, ""),
		handler.NewSystemHandler(retrieval, stubEmbedder{}, chat),
	)
	return engine, retrieval
}

type envelope struct {
	Code      int            `json:"code"`
	Message   string         `json:"message"`
	MessageKO string         `json:"message_ko"`
	Data      map[string]any `json:"data"`
	Details   map[string]any `json:"details"`
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		data, err := sonic.Marshal(body)
		require.NoError(t, err)
		buf.Write(data)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var env envelope
	if strings.Contains(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestChatEndpoint(t *testing.T) {
	engine, _ := newTestEngine(t, &stubChat{response: "안녕하세요!"})

	w, env := doJSON(t, engine, http.MethodPost, "/chat", gin.H{
		"message": "안녕",
		"use_rag": false,
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, env.Code)
	assert.Equal(t, "안녕하세요!", env.Data["response"])
	assert.Equal(t, false, env.Data["rag_used"])

	usage, ok := env.Data["usage"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 10, usage["total_tokens"])
}

func TestChatEndpointRejectsMissingMessage(t *testing.T) {
	engine, _ := newTestEngine(t, &stubChat{})

	w, env := doJSON(t, engine, http.MethodPost, "/chat", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrInvalidParam.Code, env.Code)
}

func TestChatEndpointRejectsBlankMessage(t *testing.T) {
	engine, _ := newTestEngine(t, &stubChat{})

	w, env := doJSON(t, engine, http.MethodPost, "/chat", gin.H{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrEmptyMessage.Code, env.Code)
	assert.Equal(t, "메시지가 비어 있습니다", env.MessageKO)
}

func TestChatEndpointRejectsBadHistoryRole(t *testing.T) {
	engine, _ := newTestEngine(t, &stubChat{})

	w, env := doJSON(t, engine, http.MethodPost, "/chat", gin.H{
		"message": "질문",
		"history": []gin.H{{"role": "robot", "content": "x"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrInvalidParam.Code, env.Code)
}

func TestChatEndpointDispatchFailure(t *testing.T) {
	engine, _ := newTestEngine(t, &stubChat{err: fmt.Errorf("model down")})

	w, env := doJSON(t, engine, http.MethodPost, "/chat", gin.H{
		"message": "질문",
		"use_rag": false,
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, errors.ErrDispatch.Code, env.Code)
}

func TestChatStreamEndpoint(t *testing.T) {
	engine, _ := newTestEngine(t, &stubChat{streamEvents: []llm.StreamEvent{
		{Content: "안"},
		{Content: "녕"},
		{Done: true, Usage: llm.Usage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6}},
	}})

	body, err := sonic.Marshal(gin.H{"message": "인사해줘", "use_rag": false})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/chat/stream", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	var contents []string
	var doneSeen bool
	for _, line := range strings.Split(w.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame map[string]any
		require.NoError(t, sonic.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame))
		if done, _ := frame["done"].(bool); done {
			doneSeen = true
			usage, ok := frame["usage"].(map[string]any)
			require.True(t, ok)
			assert.EqualValues(t, 6, usage["total_tokens"])
			continue
		}
		if content, ok := frame["content"].(string); ok && content != "" {
			contents = append(contents, content)
		}
	}

	assert.Equal(t, []string{"안", "녕"}, contents)
	assert.True(t, doneSeen, "terminal done frame present")
}

func TestChatStreamEndpointErrorFrame(t *testing.T) {
	engine, _ := newTestEngine(t, &stubChat{streamEvents: []llm.StreamEvent{
		{Content: "부분"},
		{Err: fmt.Errorf("connection reset")},
	}})

	body, err := sonic.Marshal(gin.H{"message": "질문", "use_rag": false})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/chat/stream", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)
}

func TestDocumentTextIngestSearchClear(t *testing.T) {
	engine, _ := newTestEngine(t, &stubChat{})

	w, env := doJSON(t, engine, http.MethodPost, "/documents/text", gin.H{
		"text":    "분수는 전체를 똑같이 나눈 것 중 일부예요.",
		"subject": "수학",
		"grade":   "3학년",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, env.Data["units"])
	assert.Equal(t, store.DefaultSource, env.Data["source"])

	w, env = doJSON(t, engine, http.MethodPost, "/documents/search", gin.H{
		"query": "분수",
		"top_k": 3,
	})
	require.Equal(t, http.StatusOK, w.Code)
	results, ok := env.Data["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 1)

	w, env = doJSON(t, engine, http.MethodGet, "/documents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, env.Data["total_documents"])

	w, _ = doJSON(t, engine, http.MethodPost, "/documents/clear", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = doJSON(t, engine, http.MethodGet, "/documents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, env.Data["total_documents"])
}

func TestDocumentSearchRequiresQuery(t *testing.T) {
	engine, _ := newTestEngine(t, &stubChat{})

	w, env := doJSON(t, engine, http.MethodPost, "/documents/search", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrInvalidParam.Code, env.Code)
}

func TestUploadRejectsUnsupportedKind(t *testing.T) {
	engine, _ := newTestEngine(t, &stubChat{})

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "malware.exe")
	require.NoError(t, err)
	_, err = part.Write([]byte("MZ"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents/upload", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var env envelope
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, errors.ErrUnsupportedKind.Code, env.Code)
}

func TestUploadTextFile(t *testing.T) {
	engine, _ := newTestEngine(t, &stubChat{})

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "수학노트.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("곱셈은 같은 수를 여러 번 더하는 거예요."))
	require.NoError(t, err)
	require.NoError(t, form.WriteField("subject", "수학"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents/upload", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &env))
	assert.EqualValues(t, 1, env.Data["units"])
	assert.Equal(t, "수학노트.txt", env.Data["source"])
}

func TestHealthz(t *testing.T) {
	engine, _ := newTestEngine(t, &stubChat{})

	w, env := doJSON(t, engine, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", env.Data["status"])
	assert.Equal(t, "stub-embedder", env.Data["embedding_provider"])
	assert.Equal(t, "stub-chat", env.Data["chat_provider"])
}

func TestModels(t *testing.T) {
	engine, _ := newTestEngine(t, &stubChat{})

	w, env := doJSON(t, engine, http.MethodGet, "/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stub-chat", env.Data["provider"])

	models, ok := env.Data["models"].([]any)
	require.True(t, ok)
	assert.Contains(t, models, "stub-model")
}

func TestMetricsEndpoint(t *testing.T) {
	engine, _ := newTestEngine(t, &stubChat{response: "응답"})

	_, _ = doJSON(t, engine, http.MethodPost, "/chat", gin.H{"message": "안녕", "use_rag": false})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chatbot_tutor_")
}

func TestRequestIDHeader(t *testing.T) {
	engine, _ := newTestEngine(t, &stubChat{})

	w, _ := doJSON(t, engine, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, w.Header().Get(router.RequestIDHeader))
}
