package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragchat/internal/pkg/errcode"
	"github.com/xxxsen/ragchat/internal/pkg/response"
	"github.com/xxxsen/ragchat/internal/rag"
	"github.com/xxxsen/ragchat/internal/service"
)

type RAGHandler struct {
	chat      *service.ChatService
	documents *service.DocumentService
}

func NewRAGHandler(chat *service.ChatService, documents *service.DocumentService) *RAGHandler {
	return &RAGHandler{chat: chat, documents: documents}
}

type queryRequest struct {
	Query          string `json:"query"`
	ConversationID int64  `json:"conversation_id"`
}

// Query answers a question over the user's documents, streamed as
// server-sent events terminated by a [DONE] marker.
func (h *RAGHandler) Query(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Query == "" {
		response.Error(c, errcode.ErrInvalid, "query is required")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	wrote := false
	emit := func(ev rag.Event) error {
		if err := c.Request.Context().Err(); err != nil {
			return err
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		wrote = true
		c.Writer.Flush()
		return nil
	}

	_, err := h.chat.Query(c.Request.Context(), &service.QueryRequest{
		UserID:         userID,
		Query:          req.Query,
		ConversationID: req.ConversationID,
	}, emit)
	if err != nil && !wrote {
		handleError(c, err)
		return
	}
	if wrote {
		fmt.Fprint(c.Writer, "data: [DONE]\n\n")
		c.Writer.Flush()
	}
	c.Status(http.StatusOK)
}

type queryResponse struct {
	Answer       string   `json:"answer"`
	Sources      []string `json:"sources"`
	SearchMethod string   `json:"search_method"`
	Cached       bool     `json:"cached"`
}

// QuerySync answers a question in one aggregated response instead of a
// stream. It requires the user to have documents loaded.
func (h *RAGHandler) QuerySync(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Query == "" {
		response.Error(c, errcode.ErrInvalid, "query is required")
		return
	}
	if !h.documents.HasDocuments(userID) {
		response.Error(c, errcode.ErrNoDocuments, "no documents uploaded")
		return
	}
	result, err := h.chat.Ask(c.Request.Context(), &service.QueryRequest{
		UserID:         userID,
		Query:          req.Query,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	sources := result.Sources
	if sources == nil {
		sources = []string{}
	}
	response.Success(c, queryResponse{
		Answer:       result.Answer,
		Sources:      sources,
		SearchMethod: result.SearchMethod,
		Cached:       result.Cached,
	})
}

// Status reports what the user currently has loaded in their index.
func (h *RAGHandler) Status(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	response.Success(c, h.documents.Stats(userID))
}

// ClearDocuments drops the user's in-memory index.
func (h *RAGHandler) ClearDocuments(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	h.documents.ClearDocuments(userID)
	response.Success(c, gin.H{"ok": true})
}
