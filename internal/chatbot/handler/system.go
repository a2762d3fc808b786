package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/biz"
	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/metrics"
	"github.com/kenneth-kang/elementary-chatbot/internal/pkg/httputils"
	"github.com/kenneth-kang/elementary-chatbot/pkg/errors"
	"github.com/kenneth-kang/elementary-chatbot/pkg/llm"
)

// SystemHandler serves health, model listing and metrics endpoints.
type SystemHandler struct {
	retrieval *biz.Retrieval
	embedder  llm.EmbeddingProvider
	chat      llm.ChatProvider
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(retrieval *biz.Retrieval, embedder llm.EmbeddingProvider, chat llm.ChatProvider) *SystemHandler {
	return &SystemHandler{
		retrieval: retrieval,
		embedder:  embedder,
		chat:      chat,
	}
}

// Healthz handles GET /healthz. Store stats double as a liveness probe
// of the vector backend.
func (h *SystemHandler) Healthz(c *gin.Context) {
	stats, err := h.retrieval.Stats(c.Request.Context())
	if err != nil {
		httputils.WriteError(c, err)
		return
	}

	httputils.WriteSuccess(c, gin.H{
		"status":             "ok",
		"embedding_provider": h.embedder.Name(),
		"chat_provider":      h.chat.Name(),
		"total_documents":    stats.TotalDocuments,
	})
}

// Models handles GET /models. Providers that cannot enumerate models
// report just their own name.
func (h *SystemHandler) Models(c *gin.Context) {
	lister, ok := h.chat.(llm.ModelLister)
	if !ok {
		httputils.WriteSuccess(c, gin.H{
			"provider": h.chat.Name(),
			"models":   []string{},
		})
		return
	}

	models, err := lister.ListModels(c.Request.Context())
	if err != nil {
		httputils.WriteError(c, errors.ErrModelUnavailable.WithCause(err))
		return
	}

	httputils.WriteSuccess(c, gin.H{
		"provider": h.chat.Name(),
		"models":   models,
	})
}

// Metrics handles GET /metrics in Prometheus text exposition format.
func (h *SystemHandler) Metrics(c *gin.Context) {
	c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	c.String(200, metrics.GetChatMetrics().Export("chatbot", "tutor"))
}
