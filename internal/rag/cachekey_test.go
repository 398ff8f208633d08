package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheKeyDeterministic(t *testing.T) {
	k1 := CacheKey("what is the capital of France?", "u1", "")
	k2 := CacheKey("what is the capital of France?", "u1", "")
	assert.Equal(t, k1, k2)
	assert.True(t, strings.HasPrefix(k1, "rag:"))
}

func TestCacheKeyNormalizesQuery(t *testing.T) {
	base := CacheKey("what is go", "u1", "")
	assert.Equal(t, base, CacheKey("  What   IS   go  ", "u1", ""))
}

func TestCacheKeyScopedToIdentity(t *testing.T) {
	base := CacheKey("same query", "u1", "")
	assert.NotEqual(t, base, CacheKey("same query", "u2", ""))
	assert.NotEqual(t, base, CacheKey("same query", "u1", "42"))
}
