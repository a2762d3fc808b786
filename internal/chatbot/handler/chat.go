// Package handler provides the HTTP handlers for the chatbot service.
package handler

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/kart-io/logger"

	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/biz"
	"github.com/kenneth-kang/elementary-chatbot/internal/pkg/httputils"
	"github.com/kenneth-kang/elementary-chatbot/pkg/errors"
	"github.com/kenneth-kang/elementary-chatbot/pkg/llm"
)

// defaultChatTimeout bounds a whole-response chat request.
const defaultChatTimeout = 60 * time.Second

// ChatHandler handles conversation requests.
type ChatHandler struct {
	chat    *biz.ChatService
	timeout time.Duration
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chat *biz.ChatService) *ChatHandler {
	return &ChatHandler{
		chat:    chat,
		timeout: defaultChatTimeout,
	}
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("chatrole", func(fl validator.FieldLevel) bool {
			role := llm.Role(fl.Field().String())
			return role == llm.RoleUser || role == llm.RoleAssistant
		})
	}
}

// chatTurn is one prior conversation turn.
type chatTurn struct {
	Role    string `json:"role" binding:"required,chatrole"`
	Content string `json:"content" binding:"required"`
}

// chatRequest is the request body for POST /chat and POST /chat/stream.
// UseRAG defaults to true when omitted, matching the original API.
type chatRequest struct {
	Message string     `json:"message" binding:"required"`
	History []chatTurn `json:"history" binding:"omitempty,dive"`
	UseRAG  *bool      `json:"use_rag"`
}

func (r *chatRequest) useRAG() bool {
	if r.UseRAG == nil {
		return true
	}
	return *r.UseRAG
}

func (r *chatRequest) messages() []llm.Message {
	history := make([]llm.Message, 0, len(r.History))
	for _, turn := range r.History {
		history = append(history, llm.Message{
			Role:    llm.Role(turn.Role),
			Content: turn.Content,
		})
	}
	return history
}

// chatData is the response payload for POST /chat.
type chatData struct {
	Response    string    `json:"response"`
	Model       string    `json:"model"`
	RAGUsed     bool      `json:"rag_used"`
	Sources     []string  `json:"sources"`
	ContextSize int       `json:"context_size"`
	Usage       llm.Usage `json:"usage"`
}

// Chat handles POST /chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteError(c, errors.ErrInvalidParam.WithCause(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := h.chat.Chat(ctx, req.Message, req.messages(), req.useRAG())
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			httputils.WriteError(c, errors.ErrChatTimeout.WithCause(err))
			return
		}
		httputils.WriteError(c, err)
		return
	}

	httputils.WriteSuccess(c, chatData{
		Response:    result.Response,
		Model:       result.Model,
		RAGUsed:     result.RAGUsed,
		Sources:     sourcesOrEmpty(result.Sources),
		ContextSize: result.ContextSize,
		Usage:       result.Usage,
	})
}

// streamFrame is one SSE data payload on POST /chat/stream. Content
// frames carry a fragment; the terminal frame has either Done with
// usage and retrieval info, or Error.
type streamFrame struct {
	Content     string     `json:"content,omitempty"`
	Done        bool       `json:"done,omitempty"`
	Usage       *llm.Usage `json:"usage,omitempty"`
	RAGUsed     bool       `json:"rag_used,omitempty"`
	Sources     []string   `json:"sources,omitempty"`
	ContextSize int        `json:"context_size,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ChatStream handles POST /chat/stream with server-sent events.
func (h *ChatHandler) ChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteError(c, errors.ErrInvalidParam.WithCause(err))
		return
	}

	events, aug, err := h.chat.ChatStream(c.Request.Context(), req.Message, req.messages(), req.useRAG())
	if err != nil {
		httputils.WriteError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(200)
	c.Writer.Flush()

	for ev := range events {
		switch {
		case ev.Err != nil:
			errno := errors.FromError(ev.Err)
			writeFrame(c, streamFrame{Error: errno.Message("ko")})
			return

		case ev.Done:
			usage := ev.Usage
			writeFrame(c, streamFrame{
				Done:        true,
				Usage:       &usage,
				RAGUsed:     aug.RAGUsed,
				Sources:     aug.Sources,
				ContextSize: aug.ContextSize,
			})
			return

		default:
			writeFrame(c, streamFrame{Content: ev.Content})
		}
	}
}

// writeFrame marshals frame as one SSE data event and flushes it.
func writeFrame(c *gin.Context, frame streamFrame) {
	data, err := sonic.Marshal(frame)
	if err != nil {
		logger.Errorw("failed to marshal stream frame", "error", err.Error())
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}

func sourcesOrEmpty(sources []string) []string {
	if sources == nil {
		return []string{}
	}
	return sources
}
