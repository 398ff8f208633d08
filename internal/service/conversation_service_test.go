package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/cache"
	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/errs"
)

func newConversationFixture(t *testing.T) (*ConversationService, *fakeConversationRepo, *fakeMessageRepo, cache.Store) {
	t.Helper()
	convRepo := newFakeConversationRepo()
	msgRepo := &fakeMessageRepo{}
	cacheStore, err := cache.NewMemoryStore(128)
	require.NoError(t, err)
	svc := NewConversationService(convRepo, msgRepo, cacheStore, 50, time.Hour)
	return svc, convRepo, msgRepo, cacheStore
}

func TestAppendMessageServesHistoryWithoutDatabase(t *testing.T) {
	ctx := context.Background()
	svc, _, msgRepo, _ := newConversationFixture(t)

	conv, err := svc.Create(ctx, "u1", "first chat")
	require.NoError(t, err)

	for _, content := range []string{"hello", "hi there"} {
		_, err := svc.AppendMessage(ctx, &model.Message{
			ConversationID: conv.ID,
			UserID:         "u1",
			Content:        content,
			MessageType:    model.MessageTypeUser,
		})
		require.NoError(t, err)
	}

	msgs, err := svc.GetMessages(ctx, "u1", conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "hi there", msgs[1].Content)
	// Write-through cache served the read, the DB list was never needed.
	assert.Equal(t, 0, msgRepo.listCalls)
}

func TestGetMessagesBackfillsCacheOnMiss(t *testing.T) {
	ctx := context.Background()
	svc, convRepo, msgRepo, _ := newConversationFixture(t)

	id, err := convRepo.Create(ctx, &model.Conversation{UserID: "u1", Title: "seeded"})
	require.NoError(t, err)
	for i, content := range []string{"one", "two", "three"} {
		_, err := msgRepo.Append(ctx, &model.Message{
			ConversationID: id,
			UserID:         "u1",
			Content:        content,
			MessageType:    model.MessageTypeUser,
			Ctime:          int64(i + 1),
		})
		require.NoError(t, err)
	}

	msgs, err := svc.GetMessages(ctx, "u1", id)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, 1, msgRepo.listCalls)

	again, err := svc.GetMessages(ctx, "u1", id)
	require.NoError(t, err)
	require.Len(t, again, 3)
	assert.Equal(t, "three", again[2].Content)
	assert.Equal(t, 1, msgRepo.listCalls)
}

func TestGetMessagesRebuildsCorruptCache(t *testing.T) {
	ctx := context.Background()
	svc, convRepo, msgRepo, cacheStore := newConversationFixture(t)

	id, err := convRepo.Create(ctx, &model.Conversation{UserID: "u1", Title: "seeded"})
	require.NoError(t, err)
	_, err = msgRepo.Append(ctx, &model.Message{
		ConversationID: id,
		UserID:         "u1",
		Content:        "real message",
		MessageType:    model.MessageTypeUser,
	})
	require.NoError(t, err)

	key := messagesCacheKey("u1", id)
	require.NoError(t, cacheStore.PushList(ctx, key, "{not json", 50, time.Hour))

	msgs, err := svc.GetMessages(ctx, "u1", id)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "real message", msgs[0].Content)
	assert.Equal(t, 1, msgRepo.listCalls)

	// The corrupt list was dropped and rebuilt, so the next read is cached.
	again, err := svc.GetMessages(ctx, "u1", id)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, 1, msgRepo.listCalls)
}

func TestGetMessagesUnknownConversation(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newConversationFixture(t)

	_, err := svc.GetMessages(ctx, "u1", 404)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAppendMessageValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newConversationFixture(t)

	_, err := svc.AppendMessage(ctx, &model.Message{
		ConversationID: 1,
		UserID:         "u1",
		Content:        "hello",
		MessageType:    "broadcast",
	})
	assert.ErrorIs(t, err, errs.ErrInvalid)

	_, err = svc.AppendMessage(ctx, &model.Message{
		ConversationID: 1,
		UserID:         "u1",
		MessageType:    model.MessageTypeUser,
	})
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestDeleteConversationDropsMessageCache(t *testing.T) {
	ctx := context.Background()
	svc, _, _, cacheStore := newConversationFixture(t)

	conv, err := svc.Create(ctx, "u1", "doomed")
	require.NoError(t, err)
	_, err = svc.AppendMessage(ctx, &model.Message{
		ConversationID: conv.ID,
		UserID:         "u1",
		Content:        "bye",
		MessageType:    model.MessageTypeUser,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "u1", conv.ID))

	_, ok, err := cacheStore.RangeList(ctx, messagesCacheKey("u1", conv.ID))
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = svc.Get(ctx, "u1", conv.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
