package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/model"
	"github.com/xxxsen/ragchat/internal/pkg/errs"
	"go.uber.org/zap"
)

// IndexStore owns, per user, an ordered chunk collection with a flat
// inner-product semantic index and a BM25 lexical index over the same
// positions. Indexes live in memory only; restart loses them.
//
// Invariant: len(chunks) == len(vectors) == lexical document count at all
// times observable by readers. Ingestion batches are atomic; an embedding
// failure rejects the whole batch.
type IndexStore struct {
	embedder ai.IEmbedder

	mu    sync.RWMutex
	users map[string]*userIndex
}

type userIndex struct {
	mu      sync.RWMutex
	chunks  []*model.Chunk
	vectors [][]float32
	tokens  [][]string
	lexical *bm25Index
}

// indexSnapshot is a consistent read view of one user's index, safe to search
// without holding the user's lock.
type indexSnapshot struct {
	chunks  []*model.Chunk
	vectors [][]float32
	lexical *bm25Index
}

func NewIndexStore(embedder ai.IEmbedder) *IndexStore {
	return &IndexStore{
		embedder: embedder,
		users:    make(map[string]*userIndex),
	}
}

func (s *IndexStore) user(userID string, create bool) *userIndex {
	s.mu.RLock()
	idx := s.users[userID]
	s.mu.RUnlock()
	if idx != nil || !create {
		return idx
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx = s.users[userID]; idx == nil {
		idx = &userIndex{}
		s.users[userID] = idx
	}
	return idx
}

// Ingest embeds and appends a batch of chunks to the owner's index. The batch
// is all-or-nothing: nothing is appended unless every chunk embedded.
func (s *IndexStore) Ingest(ctx context.Context, userID string, chunks []*model.Chunk) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", errs.ErrInvalid)
	}
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.Text == "" {
			return fmt.Errorf("%w: empty chunk text", errs.ErrInvalid)
		}
		if !chunk.Type.Valid() {
			return fmt.Errorf("%w: unsupported chunk type: %s", errs.ErrInvalid, chunk.Type)
		}
		texts = append(texts, chunk.Text)
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: embed batch: %v", errs.ErrIngestion, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: embedding count mismatch: got %d want %d", errs.ErrIngestion, len(vectors), len(chunks))
	}
	for i := range vectors {
		vectors[i] = l2Normalize(vectors[i])
	}

	idx := s.user(userID, true)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.chunks = append(idx.chunks, chunks...)
	idx.vectors = append(idx.vectors, vectors...)
	for _, chunk := range chunks {
		idx.tokens = append(idx.tokens, tokenize(chunk.Text))
	}
	// The lexical index is rebuilt over the full collection because its idf
	// statistics depend on every document, not just the new ones.
	idx.lexical = newBM25Index(idx.tokens)

	logutil.GetLogger(ctx).Info("ingested chunks",
		zap.String("user_id", userID),
		zap.Int("batch", len(chunks)),
		zap.Int("total", len(idx.chunks)))
	return nil
}

func (s *IndexStore) snapshot(userID string) indexSnapshot {
	idx := s.user(userID, false)
	if idx == nil {
		return indexSnapshot{}
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return indexSnapshot{
		chunks:  idx.chunks,
		vectors: idx.vectors,
		lexical: idx.lexical,
	}
}

func (s *IndexStore) HasDocuments(userID string) bool {
	snap := s.snapshot(userID)
	return len(snap.chunks) > 0
}

func (s *IndexStore) Stats(userID string) *model.UserIndexStats {
	snap := s.snapshot(userID)
	seen := make(map[string]struct{})
	sources := make([]string, 0)
	for _, chunk := range snap.chunks {
		if _, ok := seen[chunk.Source]; ok {
			continue
		}
		seen[chunk.Source] = struct{}{}
		sources = append(sources, chunk.Source)
	}
	sort.Strings(sources)
	return &model.UserIndexStats{
		UserID:        userID,
		HasDocuments:  len(snap.chunks) > 0,
		DocumentCount: len(sources),
		TotalChunks:   len(snap.chunks),
		Sources:       sources,
	}
}

// Clear drops one user's chunks and both indexes.
func (s *IndexStore) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
}

// ClearAll drops every user's index.
func (s *IndexStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]*userIndex)
}

func l2Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func innerProduct(a []float32, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
