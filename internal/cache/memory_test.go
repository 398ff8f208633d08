package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(16)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "k1", "v1", time.Minute))
	value, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", value)

	_, ok, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(16)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "k1", "v1", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(16)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "k1", "v1", 0))
	require.NoError(t, store.Delete(ctx, "k1"))
	_, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStorePushListBounded(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(16)
	require.NoError(t, err)

	for _, v := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.PushList(ctx, "lst", v, 3, time.Minute))
	}
	values, ok, err := store.RangeList(ctx, "lst")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"b", "c", "d"}, values)
}

func TestMemoryStoreListExpiry(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(16)
	require.NoError(t, err)

	require.NoError(t, store.PushList(ctx, "lst", "a", 10, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok, err := store.RangeList(ctx, "lst")
	require.NoError(t, err)
	assert.False(t, ok)
}
