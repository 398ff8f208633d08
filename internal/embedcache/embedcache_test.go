package embedcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	batchCalls int
	embedded   [][]string
	short      bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batchCalls++
	f.embedded = append(f.embedded, texts)
	n := len(texts)
	if f.short {
		n = n - 1
	}
	out := make([][]float32, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, []float32{float32(len(texts[i]))})
	}
	return out, nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-embed"
}

func TestEmbedBatchOnlyEmbedsMisses(t *testing.T) {
	ctx := context.Background()
	inner := &fakeEmbedder{}
	e := WrapLruCacheToEmbedder(inner, 16, time.Minute)

	first, err := e.EmbedBatch(ctx, []string{"aa", "bbb"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, 1, inner.batchCalls)

	second, err := e.EmbedBatch(ctx, []string{"aa", "cccc", "bbb"})
	require.NoError(t, err)
	require.Len(t, second, 3)
	assert.Equal(t, 2, inner.batchCalls)
	assert.Equal(t, []string{"cccc"}, inner.embedded[1])
	assert.Equal(t, []float32{2}, second[0])
	assert.Equal(t, []float32{4}, second[1])
	assert.Equal(t, []float32{3}, second[2])
}

func TestEmbedBatchRejectsShortProviderResponse(t *testing.T) {
	ctx := context.Background()
	e := WrapLruCacheToEmbedder(&fakeEmbedder{short: true}, 16, time.Minute)

	vectors, err := e.EmbedBatch(ctx, []string{"one", "two"})
	require.Error(t, err)
	assert.Nil(t, vectors)
	assert.Contains(t, err.Error(), "1 vectors for 2 texts")
}
