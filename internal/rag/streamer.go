package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/cache"
	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/errs"
	"go.uber.org/zap"
)

const (
	groundedSystemPrompt = "You are a helpful assistant that answers questions based on the user's uploaded documents. Be precise and cite information appropriately."
	generalSystemPrompt  = "You are a helpful assistant that answers questions based on provided context if available, otherwise provide general knowledge responses."

	maxCompletionSources = 3
)

type StreamerConfig struct {
	MinRelevanceThreshold float64
	MaxContextLength      int
	TopK                  int
	CacheTTL              time.Duration
	DisableCache          bool
}

// Streamer drives answer generation for one query: cache check, retrieval,
// relevance gating, grounded or general generation, cache populate. Events go
// out through the emit callback; exactly one terminal event is produced.
type Streamer struct {
	retriever *Retriever
	store     *IndexStore
	gen       ai.IGenerator
	cache     cache.Store
	cfg       StreamerConfig
}

type StreamRequest struct {
	UserID         string
	Query          string
	ConversationID string
	// History carries prior conversation turns, oldest first, appended
	// between the system instruction and the current question.
	History []ai.Message
}

// StreamResult is the terminal outcome, mirroring the complete event. Useful
// for callers that persist the assistant's answer.
type StreamResult struct {
	Answer       string
	Sources      []string
	SearchMethod string
	Cached       bool
}

// cacheEntry is the serialized response-cache payload.
type cacheEntry struct {
	Content      string   `json:"content"`
	Sources      []string `json:"sources"`
	SearchMethod string   `json:"search_method"`
}

func NewStreamer(retriever *Retriever, store *IndexStore, gen ai.IGenerator, cacheStore cache.Store, cfg StreamerConfig) *Streamer {
	if cfg.MinRelevanceThreshold == 0 {
		cfg.MinRelevanceThreshold = 0.3
	}
	if cfg.MaxContextLength <= 0 {
		cfg.MaxContextLength = 4000
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &Streamer{
		retriever: retriever,
		store:     store,
		gen:       gen,
		cache:     cacheStore,
		cfg:       cfg,
	}
}

// Stream answers the query, emitting events as it goes. The returned error is
// nil when a terminal complete event was delivered; an emit failure or a
// generation failure after the error event is returned to the caller.
func (s *Streamer) Stream(ctx context.Context, req *StreamRequest, emit EmitFunc) (*StreamResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, s.fail(emit, fmt.Errorf("%w: user id is required", errs.ErrInvalid))
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, s.fail(emit, fmt.Errorf("%w: query is required", errs.ErrInvalid))
	}

	cacheKey := CacheKey(req.Query, req.UserID, req.ConversationID)
	if result, ok := s.serveFromCache(ctx, cacheKey, emit); ok {
		return result, nil
	}

	if err := emit(Event{Type: EventThinking, Message: "Searching user documents..."}); err != nil {
		return nil, err
	}

	var results []*model.RetrievalResult
	if s.store.HasDocuments(req.UserID) {
		var err error
		results, err = s.retriever.Search(ctx, req.UserID, req.Query, s.cfg.TopK)
		if err != nil {
			return nil, s.fail(emit, fmt.Errorf("%w: %v", errs.ErrGeneration, err))
		}
	}

	var msgs []ai.Message
	var sources []string
	searchMethod := SearchMethodGeneral
	if Groundable(results, s.cfg.MinRelevanceThreshold) {
		searchMethod = SearchMethodDocuments
		if err := emit(Event{Type: EventThinking, Message: "Processing your documents..."}); err != nil {
			return nil, err
		}
		msgs, sources = s.groundedMessages(req, results)
	} else {
		if err := emit(Event{Type: EventThinking, Message: "Generating general response..."}); err != nil {
			return nil, err
		}
		msgs = s.generalMessages(req)
	}

	answer, err := s.generate(ctx, msgs, emit)
	if err != nil {
		if emitErr, ok := err.(*emitAbort); ok {
			// Client is gone; nothing more to send and nothing to cache.
			return nil, emitErr.err
		}
		return nil, s.fail(emit, fmt.Errorf("%w: %v", errs.ErrGeneration, err))
	}

	if err := emit(Event{
		Type:         EventComplete,
		Content:      answer,
		Sources:      sources,
		SearchMethod: searchMethod,
	}); err != nil {
		return nil, err
	}

	if strings.TrimSpace(answer) != "" {
		s.saveToCache(ctx, cacheKey, &cacheEntry{
			Content:      answer,
			Sources:      sources,
			SearchMethod: searchMethod,
		})
	}
	return &StreamResult{
		Answer:       answer,
		Sources:      sources,
		SearchMethod: searchMethod,
	}, nil
}

// serveFromCache replays a cached answer as word-level fragments that rejoin
// to the exact original text. Malformed or blank entries are deleted and
// treated as a miss.
func (s *Streamer) serveFromCache(ctx context.Context, key string, emit EmitFunc) (*StreamResult, bool) {
	if s.cfg.DisableCache || s.cache == nil {
		return nil, false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var entry cacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || strings.TrimSpace(entry.Content) == "" {
		logutil.GetLogger(ctx).Warn("malformed cache entry, deleting", zap.String("key", key))
		if err := s.cache.Delete(ctx, key); err != nil {
			logutil.GetLogger(ctx).Warn("failed to delete cache entry", zap.Error(err))
		}
		return nil, false
	}
	for _, fragment := range wordFragments(entry.Content) {
		if err := emit(Event{Type: EventChunk, Content: fragment}); err != nil {
			return nil, false
		}
	}
	if err := emit(Event{
		Type:         EventComplete,
		Content:      entry.Content,
		Sources:      entry.Sources,
		SearchMethod: entry.SearchMethod,
		Cached:       true,
	}); err != nil {
		return nil, false
	}
	logutil.GetLogger(ctx).Debug("served answer from cache", zap.String("key", key))
	return &StreamResult{
		Answer:       entry.Content,
		Sources:      entry.Sources,
		SearchMethod: entry.SearchMethod,
		Cached:       true,
	}, true
}

func (s *Streamer) saveToCache(ctx context.Context, key string, entry *cacheEntry) {
	if s.cfg.DisableCache || s.cache == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(data), s.cfg.CacheTTL); err != nil {
		logutil.GetLogger(ctx).Warn("failed to cache answer", zap.Error(err))
	}
}

// emitAbort wraps an error returned by the emit callback so generate's caller
// can tell a client disconnect apart from a provider failure.
type emitAbort struct {
	err error
}

func (e *emitAbort) Error() string {
	return e.err.Error()
}

// generate runs the streaming completion, forwarding fragments and
// accumulating the full answer. A failure before the first fragment is
// retried once.
func (s *Streamer) generate(ctx context.Context, msgs []ai.Message, emit EmitFunc) (string, error) {
	var sb strings.Builder
	emitted := false
	onFragment := func(fragment string) error {
		sb.WriteString(fragment)
		emitted = true
		if err := emit(Event{Type: EventChunk, Content: fragment}); err != nil {
			return &emitAbort{err: err}
		}
		return nil
	}
	err := s.gen.Stream(ctx, msgs, onFragment)
	if err != nil && !emitted && ctx.Err() == nil {
		if _, ok := err.(*emitAbort); !ok {
			logutil.GetLogger(ctx).Warn("generation failed before first fragment, retrying once", zap.Error(err))
			err = s.gen.Stream(ctx, msgs, onFragment)
		}
	}
	if err != nil {
		if abort, ok := err.(*emitAbort); ok {
			return "", abort
		}
		return "", err
	}
	return sb.String(), nil
}

func (s *Streamer) groundedMessages(req *StreamRequest, results []*model.RetrievalResult) ([]ai.Message, []string) {
	parts := make([]string, 0, len(results))
	sources := make([]string, 0, maxCompletionSources)
	seen := make(map[string]struct{})
	for _, res := range results {
		if res.Chunk.Type == model.ChunkTypeImage {
			parts = append(parts, fmt.Sprintf("[Image from %s]: %s", res.Chunk.Source, res.Chunk.Text))
		} else {
			parts = append(parts, fmt.Sprintf("[From %s]: %s", res.Chunk.Source, res.Chunk.Text))
		}
		if _, ok := seen[res.Chunk.Source]; !ok && len(sources) < maxCompletionSources {
			seen[res.Chunk.Source] = struct{}{}
			sources = append(sources, res.Chunk.Source)
		}
	}
	docContext := strings.Join(parts, "\n\n")
	if len(docContext) > s.cfg.MaxContextLength {
		docContext = docContext[:s.cfg.MaxContextLength] + "..."
	}

	msgs := make([]ai.Message, 0, len(req.History)+2)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: groundedSystemPrompt})
	msgs = append(msgs, req.History...)
	msgs = append(msgs, ai.Message{
		Role:    ai.RoleUser,
		Content: fmt.Sprintf("Context from user's documents:\n%s\n\nQuestion: %s\n\nAnswer based on the context above.", docContext, req.Query),
	})
	return msgs, sources
}

func (s *Streamer) generalMessages(req *StreamRequest) []ai.Message {
	msgs := make([]ai.Message, 0, len(req.History)+2)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: generalSystemPrompt})
	msgs = append(msgs, req.History...)
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: fmt.Sprintf("Question: %s", req.Query)})
	return msgs
}

func (s *Streamer) fail(emit EmitFunc, err error) error {
	if emitErr := emit(Event{Type: EventError, Message: err.Error()}); emitErr != nil {
		return emitErr
	}
	return err
}

// wordFragments splits text at whitespace boundaries such that the fragments
// concatenate back to the exact original string.
func wordFragments(text string) []string {
	var fragments []string
	start := 0
	inSpace := false
	for i, r := range text {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if inSpace && !isSpace {
			fragments = append(fragments, text[start:i])
			start = i
		}
		inSpace = isSpace
	}
	if start < len(text) {
		fragments = append(fragments, text[start:])
	}
	return fragments
}
