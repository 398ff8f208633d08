package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/errs"
	"github.com/xxxsen/ragchat/internal/rag"
	"go.uber.org/zap"
)

const (
	maxTitleLen      = 60
	maxPromptHistory = 10
	maxUserIDLen     = 100
	maxQueryLen      = 1000
)

// ChatService drives one chat query end to end: conversation bookkeeping,
// message persistence and the RAG answer stream.
type ChatService struct {
	conversations *ConversationService
	streamer      *rag.Streamer
}

func NewChatService(conversations *ConversationService, streamer *rag.Streamer) *ChatService {
	return &ChatService{conversations: conversations, streamer: streamer}
}

type QueryRequest struct {
	UserID         string
	Query          string
	ConversationID int64
}

// Query streams the answer for one user question. A zero conversation id
// starts a new conversation titled after the question. The complete event
// carries the conversation id so clients can follow up.
func (s *ChatService) Query(ctx context.Context, req *QueryRequest, emit rag.EmitFunc) (*rag.StreamResult, error) {
	query := strings.TrimSpace(req.Query)
	if req.UserID == "" || len(req.UserID) > maxUserIDLen {
		return nil, fmt.Errorf("%w: user id must be 1-%d characters", errs.ErrInvalid, maxUserIDLen)
	}
	if query == "" || len([]rune(query)) > maxQueryLen {
		return nil, fmt.Errorf("%w: query must be 1-%d characters", errs.ErrInvalid, maxQueryLen)
	}

	conv, err := s.ensureConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	history, err := s.promptHistory(ctx, req.UserID, conv.ID)
	if err != nil {
		logutil.GetLogger(ctx).Warn("failed to load history, continuing without", zap.Error(err))
		history = nil
	}

	if _, err := s.conversations.AppendMessage(ctx, &model.Message{
		ConversationID: conv.ID,
		UserID:         req.UserID,
		Content:        query,
		MessageType:    model.MessageTypeUser,
		Ctime:          time.Now().Unix(),
	}); err != nil {
		return nil, err
	}

	tagged := func(ev rag.Event) error {
		if ev.Type == rag.EventComplete {
			ev.ConversationID = conv.ID
		}
		return emit(ev)
	}
	result, err := s.streamer.Stream(ctx, &rag.StreamRequest{
		UserID:         req.UserID,
		Query:          query,
		ConversationID: strconv.FormatInt(conv.ID, 10),
		History:        history,
	}, tagged)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(result.Answer) != "" {
		if _, err := s.conversations.AppendMessage(ctx, &model.Message{
			ConversationID: conv.ID,
			UserID:         req.UserID,
			Content:        result.Answer,
			MessageType:    model.MessageTypeAssistant,
			Ctime:          time.Now().Unix(),
		}); err != nil {
			logutil.GetLogger(ctx).Warn("failed to persist assistant message", zap.Error(err))
		}
	}
	return result, nil
}

// Ask runs one query to completion and returns the aggregated answer, for
// callers that do not want a stream.
func (s *ChatService) Ask(ctx context.Context, req *QueryRequest) (*rag.StreamResult, error) {
	discard := func(rag.Event) error { return nil }
	return s.Query(ctx, req, discard)
}

func (s *ChatService) ensureConversation(ctx context.Context, req *QueryRequest) (*model.Conversation, error) {
	if req.ConversationID != 0 {
		return s.conversations.Get(ctx, req.UserID, req.ConversationID)
	}
	title := strings.TrimSpace(req.Query)
	if runes := []rune(title); len(runes) > maxTitleLen {
		title = string(runes[:maxTitleLen])
	}
	return s.conversations.Create(ctx, req.UserID, title)
}

// promptHistory maps the tail of the conversation into prompt messages.
func (s *ChatService) promptHistory(ctx context.Context, userID string, conversationID int64) ([]ai.Message, error) {
	msgs, err := s.conversations.GetMessages(ctx, userID, conversationID)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(msgs) > maxPromptHistory {
		msgs = msgs[len(msgs)-maxPromptHistory:]
	}
	out := make([]ai.Message, 0, len(msgs))
	for _, msg := range msgs {
		role := ai.RoleUser
		if msg.MessageType == model.MessageTypeAssistant {
			role = ai.RoleAssistant
		}
		out = append(out, ai.Message{Role: role, Content: msg.Content})
	}
	return out, nil
}
