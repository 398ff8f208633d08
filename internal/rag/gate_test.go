package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xxxsen/ragchat/internal/model"
)

func TestGateEmptyResults(t *testing.T) {
	assert.False(t, Groundable(nil, 0.3))
	assert.False(t, Groundable([]*model.RetrievalResult{}, 0.3))
}

func TestGateThresholdIsStrict(t *testing.T) {
	at := []*model.RetrievalResult{{SemanticScore: 0.3, LexicalScore: 0.1, FusedScore: 0.25}}
	assert.False(t, Groundable(at, 0.3))

	above := []*model.RetrievalResult{{SemanticScore: 0.31, LexicalScore: 0.1, FusedScore: 0.25}}
	assert.True(t, Groundable(above, 0.3))
}

func TestGateTakesMaxAcrossAllSignals(t *testing.T) {
	results := []*model.RetrievalResult{
		{SemanticScore: 0.05, LexicalScore: 0.9, FusedScore: 0.2},
		{SemanticScore: 0.1, LexicalScore: 0.0, FusedScore: 0.15},
	}
	assert.Equal(t, 0.9, MaxRelevanceScore(results))
	assert.True(t, Groundable(results, 0.3))
}
