// Package router registers the chatbot HTTP routes.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/handler"
)

// New builds the gin engine with the standard middleware chain.
func New() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(recovery(), requestID(), requestLogger(), cors())
	return engine
}

// Register wires the chatbot routes onto the engine. Paths mirror the
// original backend so existing clients keep working.
func Register(engine *gin.Engine, chat *handler.ChatHandler, docs *handler.DocumentHandler, system *handler.SystemHandler) {
	engine.POST("/chat", chat.Chat)
	engine.POST("/chat/stream", chat.ChatStream)
	logger.Info("Registered chat routes: POST /chat, POST /chat/stream")

	documents := engine.Group("/documents")
	{
		documents.GET("", docs.Stats)
		documents.POST("/upload", docs.Upload)
		documents.POST("/text", docs.IngestText)
		documents.POST("/search", docs.Search)
		documents.POST("/clear", docs.Clear)
	}
	logger.Info("Registered document routes under /documents")

	engine.GET("/models", system.Models)
	engine.GET("/healthz", system.Healthz)
	engine.GET("/metrics", system.Metrics)
	logger.Info("Registered system routes: GET /models, GET /healthz, GET /metrics")
}
