package rag

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/ragchat/internal/model"
)

func TestRetrieverEmptyCorpus(t *testing.T) {
	ctx := context.Background()
	store := NewIndexStore(&fakeEmbedder{})
	r := NewRetriever(store, &fakeEmbedder{}, nil, 0.7, false)

	results, err := r.Search(ctx, "nobody", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieverFusionLexicalOnlyMatch(t *testing.T) {
	ctx := context.Background()
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"alpha beta":   {1, 0, 0},
			"gamma delta":  {0, 1, 0},
			"epsilon zeta": {0, 0, 1},
			"gamma":        {1, 0, 0},
		},
	}
	store := NewIndexStore(embedder)
	require.NoError(t, store.Ingest(ctx, "u1", []*model.Chunk{
		testChunk("u1", "a.txt", "c1", "alpha beta"),
		testChunk("u1", "b.txt", "c2", "gamma delta"),
		testChunk("u1", "c.txt", "c3", "epsilon zeta"),
	}))

	r := NewRetriever(store, embedder, nil, 0.7, false)
	results, err := r.Search(ctx, "u1", "gamma", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	var lexicalHit *model.RetrievalResult
	for _, res := range results {
		if res.Chunk.ChunkID == "c2" {
			lexicalHit = res
		}
	}
	require.NotNil(t, lexicalHit)
	// The only lexical match normalizes to 1.0, and its embedding is
	// orthogonal to the query, so fused = (1 - 0.7) * 1.0.
	assert.Equal(t, 0.0, lexicalHit.SemanticScore)
	assert.Greater(t, lexicalHit.LexicalScore, 0.0)
	assert.InDelta(t, 0.3, lexicalHit.FusedScore, 1e-9)
}

func TestRetrieverRankingBestFirst(t *testing.T) {
	ctx := context.Background()
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"about cats":  {1, 0},
			"about dogs":  {0, 1},
			"cats please": {1, 0},
		},
	}
	store := NewIndexStore(embedder)
	require.NoError(t, store.Ingest(ctx, "u1", []*model.Chunk{
		testChunk("u1", "cats.txt", "c1", "about cats"),
		testChunk("u1", "dogs.txt", "c2", "about dogs"),
	}))

	r := NewRetriever(store, embedder, nil, 0.7, false)
	results, err := r.Search(ctx, "u1", "cats please", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c1", results[0].Chunk.ChunkID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].FusedScore, results[i].FusedScore)
	}
}

func TestRetrieverTopKClamped(t *testing.T) {
	ctx := context.Background()
	embedder := &fakeEmbedder{}
	store := NewIndexStore(embedder)
	require.NoError(t, store.Ingest(ctx, "u1", []*model.Chunk{
		testChunk("u1", "a.txt", "c1", "only one chunk"),
	}))

	r := NewRetriever(store, embedder, nil, 0.7, false)
	results, err := r.Search(ctx, "u1", "chunk", 50)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestRetrieverExpansionDeduplicates(t *testing.T) {
	ctx := context.Background()
	embedder := &fakeEmbedder{}
	store := NewIndexStore(embedder)
	require.NoError(t, store.Ingest(ctx, "u1", []*model.Chunk{
		testChunk("u1", "a.txt", "c1", "shared topic text"),
		testChunk("u1", "b.txt", "c2", "another topic text"),
	}))

	gen := &fakeGenerator{completion: "topic text related synonyms and more"}
	r := NewRetriever(store, embedder, gen, 0.7, true)
	results, err := r.Search(ctx, "u1", "topic", 5)
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, res := range results {
		seen[res.Chunk.ChunkID]++
	}
	for id, count := range seen {
		assert.Equalf(t, 1, count, "chunk %s returned more than once", id)
	}
}

func TestRetrieverExpansionFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	embedder := &fakeEmbedder{}
	store := NewIndexStore(embedder)
	require.NoError(t, store.Ingest(ctx, "u1", []*model.Chunk{
		testChunk("u1", "a.txt", "c1", "some content"),
	}))

	gen := &fakeGenerator{completeErr: fmt.Errorf("provider down")}
	r := NewRetriever(store, embedder, gen, 0.7, true)
	results, err := r.Search(ctx, "u1", "content", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}
