package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragchat/internal/cache"
	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/errs"
	"go.uber.org/zap"
)

type conversationStore interface {
	Create(ctx context.Context, conv *model.Conversation) (int64, error)
	Get(ctx context.Context, userID string, id int64) (*model.Conversation, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*model.Conversation, error)
	UpdateTitle(ctx context.Context, userID string, id int64, title string, mtime int64) error
	Touch(ctx context.Context, userID string, id int64, mtime int64) error
	Delete(ctx context.Context, userID string, id int64) error
}

type messageStore interface {
	Append(ctx context.Context, msg *model.Message) (int64, error)
	ListRecent(ctx context.Context, userID string, conversationID int64, limit int) ([]*model.Message, error)
	CountByConversation(ctx context.Context, userID string, conversationID int64) (int64, error)
}

// ConversationService manages conversations and their message history. Recent
// messages are kept write-through in a bounded cache list so the chat path
// can usually avoid the database.
type ConversationService struct {
	conversations conversationStore
	messages      messageStore
	cache         cache.Store
	historyLimit  int
	historyTTL    time.Duration
}

func NewConversationService(conversations conversationStore, messages messageStore, cacheStore cache.Store, historyLimit int, historyTTL time.Duration) *ConversationService {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	if historyTTL <= 0 {
		historyTTL = time.Hour
	}
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		cache:         cacheStore,
		historyLimit:  historyLimit,
		historyTTL:    historyTTL,
	}
}

func messagesCacheKey(userID string, conversationID int64) string {
	return "conv:msgs:" + userID + ":" + strconv.FormatInt(conversationID, 10)
}

func (s *ConversationService) Create(ctx context.Context, userID string, title string) (*model.Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", errs.ErrInvalid)
	}
	now := time.Now().Unix()
	conv := &model.Conversation{
		UserID: userID,
		Title:  title,
		Ctime:  now,
		Mtime:  now,
	}
	id, err := s.conversations.Create(ctx, conv)
	if err != nil {
		return nil, err
	}
	conv.ID = id
	return conv, nil
}

func (s *ConversationService) Get(ctx context.Context, userID string, id int64) (*model.Conversation, error) {
	conv, err := s.conversations.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	count, err := s.messages.CountByConversation(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	conv.MessageCount = count
	return conv, nil
}

func (s *ConversationService) List(ctx context.Context, userID string, limit, offset int) ([]*model.Conversation, error) {
	return s.conversations.List(ctx, userID, limit, offset)
}

func (s *ConversationService) UpdateTitle(ctx context.Context, userID string, id int64, title string) error {
	if title == "" {
		return fmt.Errorf("%w: title is required", errs.ErrInvalid)
	}
	return s.conversations.UpdateTitle(ctx, userID, id, title, time.Now().Unix())
}

func (s *ConversationService) Delete(ctx context.Context, userID string, id int64) error {
	if err := s.conversations.Delete(ctx, userID, id); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, messagesCacheKey(userID, id)); err != nil {
		logutil.GetLogger(ctx).Warn("failed to drop message cache", zap.Error(err))
	}
	return nil
}

// AppendMessage persists the message and pushes it onto the cached history
// list. The cache push is best-effort; the database row is the source of
// truth.
func (s *ConversationService) AppendMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if !msg.MessageType.Valid() {
		return nil, fmt.Errorf("%w: bad message type: %s", errs.ErrInvalid, msg.MessageType)
	}
	if msg.Content == "" {
		return nil, fmt.Errorf("%w: content is required", errs.ErrInvalid)
	}
	if msg.Ctime == 0 {
		msg.Ctime = time.Now().Unix()
	}
	id, err := s.messages.Append(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = id
	if err := s.conversations.Touch(ctx, msg.UserID, msg.ConversationID, msg.Ctime); err != nil {
		logutil.GetLogger(ctx).Warn("failed to touch conversation", zap.Error(err))
	}
	if data, err := json.Marshal(msg); err == nil {
		key := messagesCacheKey(msg.UserID, msg.ConversationID)
		if err := s.cache.PushList(ctx, key, string(data), s.historyLimit, s.historyTTL); err != nil {
			logutil.GetLogger(ctx).Warn("failed to push message to cache", zap.Error(err))
		}
	}
	return msg, nil
}

// GetMessages returns the most recent messages of a conversation, oldest
// first, serving from the cache list when present and backfilling it from the
// database on a miss.
func (s *ConversationService) GetMessages(ctx context.Context, userID string, conversationID int64) ([]*model.Message, error) {
	key := messagesCacheKey(userID, conversationID)
	if raw, ok, err := s.cache.RangeList(ctx, key); err == nil && ok {
		msgs := make([]*model.Message, 0, len(raw))
		valid := true
		for _, item := range raw {
			msg := &model.Message{}
			if err := json.Unmarshal([]byte(item), msg); err != nil {
				valid = false
				break
			}
			msgs = append(msgs, msg)
		}
		if valid {
			return msgs, nil
		}
		// A corrupt list is dropped and rebuilt from the database.
		if err := s.cache.Delete(ctx, key); err != nil {
			logutil.GetLogger(ctx).Warn("failed to drop corrupt message cache", zap.Error(err))
		}
	}

	if _, err := s.conversations.Get(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListRecent(ctx, userID, conversationID, s.historyLimit)
	if err != nil {
		return nil, err
	}
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if err := s.cache.PushList(ctx, key, string(data), s.historyLimit, s.historyTTL); err != nil {
			logutil.GetLogger(ctx).Warn("failed to backfill message cache", zap.Error(err))
			break
		}
	}
	return msgs, nil
}
