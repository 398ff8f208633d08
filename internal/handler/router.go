package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragchat/internal/middleware"
)

type RouterDeps struct {
	Chat    *ChatHandler
	RAG     *RAGHandler
	Uploads *UploadHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	chat := api.Group("/chat")

	chat.POST("/messages/stream", deps.RAG.Query)
	chat.POST("/messages/rag/stream", deps.RAG.Query)
	chat.POST("/rag/query", deps.RAG.QuerySync)
	chat.GET("/documents/status", deps.RAG.Status)
	chat.DELETE("/documents/clear", deps.RAG.ClearDocuments)

	uploadLimit := middleware.RateLimit(time.Second)
	chat.POST("/upload", uploadLimit, deps.Uploads.Upload)
	chat.POST("/upload/multiple", uploadLimit, deps.Uploads.UploadMultiple)
	chat.GET("/uploads", deps.Uploads.List)
	chat.GET("/uploads/:id", deps.Uploads.Get)
	chat.DELETE("/uploads/:id", deps.Uploads.Delete)

	chat.POST("/conversations", deps.Chat.CreateConversation)
	chat.GET("/conversations", deps.Chat.ListConversations)
	chat.GET("/conversations/:id", deps.Chat.GetConversation)
	chat.PUT("/conversations/:id", deps.Chat.UpdateConversation)
	chat.DELETE("/conversations/:id", deps.Chat.DeleteConversation)
	chat.GET("/conversations/:id/messages", deps.Chat.GetMessages)
}
