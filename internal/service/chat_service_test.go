package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/cache"
	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/errs"
	"github.com/xxxsen/ragchat/internal/rag"
)

func newChatFixture(t *testing.T) (*ChatService, *fakeConversationRepo, *fakeMessageRepo) {
	t.Helper()
	convRepo := newFakeConversationRepo()
	msgRepo := &fakeMessageRepo{}
	cacheStore, err := cache.NewMemoryStore(128)
	require.NoError(t, err)
	conversations := NewConversationService(convRepo, msgRepo, cacheStore, 50, time.Hour)

	embedder := &fakeEmbedder{}
	store := rag.NewIndexStore(embedder)
	gen := &fakeGenerator{fragments: []string{"general ", "answer"}}
	retriever := rag.NewRetriever(store, embedder, gen, 0.7, false)
	streamer := rag.NewStreamer(retriever, store, gen, cacheStore, rag.StreamerConfig{DisableCache: true})
	return NewChatService(conversations, streamer), convRepo, msgRepo
}

func TestChatQueryPersistsBothTurns(t *testing.T) {
	ctx := context.Background()
	svc, convRepo, msgRepo := newChatFixture(t)

	var events []rag.Event
	emit := func(ev rag.Event) error {
		events = append(events, ev)
		return nil
	}
	result, err := svc.Query(ctx, &QueryRequest{UserID: "u1", Query: "what is go?"}, emit)
	require.NoError(t, err)
	assert.Equal(t, "general answer", result.Answer)
	assert.Equal(t, rag.SearchMethodGeneral, result.SearchMethod)

	var complete *rag.Event
	for i := range events {
		if events[i].Type == rag.EventComplete {
			complete = &events[i]
		}
	}
	require.NotNil(t, complete)
	assert.Greater(t, complete.ConversationID, int64(0))

	conv, err := convRepo.Get(ctx, "u1", complete.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "what is go?", conv.Title)

	msgs, err := msgRepo.ListRecent(ctx, "u1", complete.ConversationID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.MessageTypeUser, msgs[0].MessageType)
	assert.Equal(t, "what is go?", msgs[0].Content)
	assert.Equal(t, model.MessageTypeAssistant, msgs[1].MessageType)
	assert.Equal(t, "general answer", msgs[1].Content)
}

func TestChatQueryReusesConversation(t *testing.T) {
	ctx := context.Background()
	svc, convRepo, msgRepo := newChatFixture(t)

	id, err := convRepo.Create(ctx, &model.Conversation{UserID: "u1", Title: "ongoing"})
	require.NoError(t, err)

	discard := func(rag.Event) error { return nil }
	_, err = svc.Query(ctx, &QueryRequest{UserID: "u1", Query: "follow up", ConversationID: id}, discard)
	require.NoError(t, err)

	count, err := msgRepo.CountByConversation(ctx, "u1", id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	require.Len(t, convRepo.rows, 1)
}

func TestChatQueryValidatesBounds(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newChatFixture(t)
	discard := func(rag.Event) error { return nil }

	_, err := svc.Query(ctx, &QueryRequest{UserID: strings.Repeat("u", 101), Query: "hi"}, discard)
	assert.ErrorIs(t, err, errs.ErrInvalid)

	_, err = svc.Query(ctx, &QueryRequest{UserID: "u1", Query: strings.Repeat("q", 1001)}, discard)
	assert.ErrorIs(t, err, errs.ErrInvalid)

	_, err = svc.Query(ctx, &QueryRequest{UserID: "u1", Query: "   "}, discard)
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestAskAggregatesAnswer(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newChatFixture(t)

	result, err := svc.Ask(ctx, &QueryRequest{UserID: "u1", Query: "anything"})
	require.NoError(t, err)
	assert.Equal(t, "general answer", result.Answer)
	assert.False(t, result.Cached)
}
