package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/model"
	"go.uber.org/zap"
)

const expansionPrompt = `Generate 2-3 alternative search terms or short phrases related to the query below. Reply with the original query followed by the related terms, all on one line, separated by spaces. No explanations.

Query: %s`

// Retriever runs hybrid semantic+lexical search over one user's index and
// fuses the two rankings into a single best-first list.
type Retriever struct {
	store          *IndexStore
	embedder       ai.IEmbedder
	gen            ai.IGenerator
	semanticWeight float64
	expandQueries  bool
}

func NewRetriever(store *IndexStore, embedder ai.IEmbedder, gen ai.IGenerator, semanticWeight float64, expandQueries bool) *Retriever {
	if semanticWeight <= 0 || semanticWeight > 1 {
		semanticWeight = 0.7
	}
	return &Retriever{
		store:          store,
		embedder:       embedder,
		gen:            gen,
		semanticWeight: semanticWeight,
		expandQueries:  expandQueries,
	}
}

// Search returns up to topk fused results for the query, best first. A user
// with no ingested chunks yields an empty slice, not an error.
func (r *Retriever) Search(ctx context.Context, userID string, query string, topk int) ([]*model.RetrievalResult, error) {
	snap := r.store.snapshot(userID)
	if len(snap.chunks) == 0 {
		return nil, nil
	}
	if topk <= 0 {
		topk = 5
	}
	if topk > len(snap.chunks) {
		topk = len(snap.chunks)
	}

	queries := []string{query}
	if expanded := r.expandQuery(ctx, query); expanded != "" && expanded != query {
		queries = append(queries, expanded)
	}

	// Each query variant is searched independently; a chunk hit by several
	// variants keeps its best-scoring occurrence.
	best := make(map[string]*model.RetrievalResult)
	for _, q := range queries {
		results, err := r.searchOne(ctx, snap, q, topk)
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			key := res.Chunk.ChunkID
			if key == "" {
				key = res.Chunk.Text
			}
			prev, ok := best[key]
			if !ok || res.FusedScore > prev.FusedScore {
				best[key] = res
			}
		}
	}

	merged := make([]*model.RetrievalResult, 0, len(best))
	for _, res := range best {
		merged = append(merged, res)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].FusedScore > merged[j].FusedScore
	})
	if len(merged) > topk {
		merged = merged[:topk]
	}
	logutil.GetLogger(ctx).Debug("hybrid search done",
		zap.String("user_id", userID),
		zap.Int("queries", len(queries)),
		zap.Int("results", len(merged)))
	return merged, nil
}

func (r *Retriever) searchOne(ctx context.Context, snap indexSnapshot, query string, topk int) ([]*model.RetrievalResult, error) {
	semantic, err := r.semanticScores(ctx, snap, query, topk)
	if err != nil {
		return nil, err
	}
	lexical := lexicalScores(snap, query, topk)

	maxLex := 0.0
	for _, score := range lexical {
		if score > maxLex {
			maxLex = score
		}
	}

	candidates := make(map[int]struct{}, len(semantic)+len(lexical))
	for pos := range semantic {
		candidates[pos] = struct{}{}
	}
	for pos := range lexical {
		candidates[pos] = struct{}{}
	}

	results := make([]*model.RetrievalResult, 0, len(candidates))
	for pos := range candidates {
		semScore := semantic[pos]
		lexScore := lexical[pos]
		lexNorm := 0.0
		if maxLex > 0 {
			lexNorm = lexScore / maxLex
		}
		results = append(results, &model.RetrievalResult{
			Chunk:         *snap.chunks[pos],
			SemanticScore: semScore,
			LexicalScore:  lexScore,
			FusedScore:    r.semanticWeight*semScore + (1-r.semanticWeight)*lexNorm,
		})
	}
	return results, nil
}

// semanticScores embeds the query and returns the topk positions by inner
// product against the normalized chunk vectors.
func (r *Retriever) semanticScores(ctx context.Context, snap indexSnapshot, query string, topk int) (map[int]float64, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vec = l2Normalize(vec)

	type scored struct {
		pos   int
		score float64
	}
	all := make([]scored, 0, len(snap.vectors))
	for pos, chunkVec := range snap.vectors {
		all = append(all, scored{pos: pos, score: innerProduct(vec, chunkVec)})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].score > all[j].score
	})
	if len(all) > topk {
		all = all[:topk]
	}
	out := make(map[int]float64, len(all))
	for _, s := range all {
		out[s.pos] = s.score
	}
	return out, nil
}

// lexicalScores returns the topk positions with BM25 score > 0.
func lexicalScores(snap indexSnapshot, query string, topk int) map[int]float64 {
	if snap.lexical == nil {
		return nil
	}
	scores := snap.lexical.Scores(tokenize(query))

	type scored struct {
		pos   int
		score float64
	}
	positive := make([]scored, 0, len(scores))
	for pos, score := range scores {
		if score > 0 {
			positive = append(positive, scored{pos: pos, score: score})
		}
	}
	sort.Slice(positive, func(i, j int) bool {
		return positive[i].score > positive[j].score
	})
	if len(positive) > topk {
		positive = positive[:topk]
	}
	out := make(map[int]float64, len(positive))
	for _, s := range positive {
		out[s.pos] = s.score
	}
	return out
}

// expandQuery asks the generator for related terms. The expansion is used
// only when it is strictly longer than the original; any failure falls back
// to the original query silently.
func (r *Retriever) expandQuery(ctx context.Context, query string) string {
	if !r.expandQueries || r.gen == nil {
		return ""
	}
	expanded, err := r.gen.Complete(ctx, []ai.Message{
		{Role: ai.RoleUser, Content: fmt.Sprintf(expansionPrompt, query)},
	})
	if err != nil {
		logutil.GetLogger(ctx).Debug("query expansion failed, using original", zap.Error(err))
		return ""
	}
	expanded = strings.TrimSpace(expanded)
	if len(expanded) <= len(query) {
		return ""
	}
	return expanded
}
