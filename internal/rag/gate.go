package rag

import "github.com/xxxsen/ragchat/internal/model"

// MaxRelevanceScore takes the maximum over the semantic, lexical and fused
// scores of every result. The three live on different scales; the gate is
// deliberately permissive so that any one strong signal qualifies.
func MaxRelevanceScore(results []*model.RetrievalResult) float64 {
	best := 0.0
	for _, res := range results {
		if res.SemanticScore > best {
			best = res.SemanticScore
		}
		if res.LexicalScore > best {
			best = res.LexicalScore
		}
		if res.FusedScore > best {
			best = res.FusedScore
		}
	}
	return best
}

// Groundable reports whether the retrieved passages are strong enough to
// ground an answer. Not groundable means fall back to general knowledge,
// never an error. The threshold comparison is strict.
func Groundable(results []*model.RetrievalResult, threshold float64) bool {
	if len(results) == 0 {
		return false
	}
	return MaxRelevanceScore(results) > threshold
}
