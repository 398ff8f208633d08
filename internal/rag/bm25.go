package rag

import (
	"math"
	"strings"
)

const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// bm25Index is an Okapi BM25 scorer over a fixed document collection. It is
// rebuilt from scratch on every ingestion batch because its idf statistics
// depend on the full corpus composition; once built it is immutable.
type bm25Index struct {
	docFreqs  []map[string]int
	docLens   []int
	avgDocLen float64
	idf       map[string]float64
}

func newBM25Index(docs [][]string) *bm25Index {
	idx := &bm25Index{
		docFreqs: make([]map[string]int, 0, len(docs)),
		docLens:  make([]int, 0, len(docs)),
		idf:      make(map[string]float64),
	}
	totalLen := 0
	termDocs := make(map[string]int)
	for _, tokens := range docs {
		freqs := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freqs[tok]++
		}
		for term := range freqs {
			termDocs[term]++
		}
		idx.docFreqs = append(idx.docFreqs, freqs)
		idx.docLens = append(idx.docLens, len(tokens))
		totalLen += len(tokens)
	}
	if len(docs) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(docs))
	}

	// idf can go negative for terms present in most documents; those are
	// floored to epsilon times the average of the positive idf values.
	n := float64(len(docs))
	idfSum := 0.0
	var negative []string
	for term, df := range termDocs {
		idf := math.Log((n - float64(df) + 0.5) / (float64(df) + 0.5))
		idx.idf[term] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, term)
		}
	}
	if len(termDocs) > 0 {
		avgIDF := idfSum / float64(len(termDocs))
		floor := bm25Epsilon * avgIDF
		for _, term := range negative {
			idx.idf[term] = floor
		}
	}
	return idx
}

func (idx *bm25Index) Len() int {
	return len(idx.docFreqs)
}

// Scores returns one BM25 score per document for the given query tokens.
func (idx *bm25Index) Scores(query []string) []float64 {
	scores := make([]float64, len(idx.docFreqs))
	if len(query) == 0 || len(idx.docFreqs) == 0 {
		return scores
	}
	for _, term := range query {
		idf, ok := idx.idf[term]
		if !ok {
			continue
		}
		for i, freqs := range idx.docFreqs {
			tf := float64(freqs[term])
			if tf == 0 {
				continue
			}
			norm := 1 - bm25B + bm25B*float64(idx.docLens[i])/idx.avgDocLen
			scores[i] += idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
		}
	}
	return scores
}

// tokenize lower-cases the text and splits on whitespace. Punctuation stays
// attached to its word, so "paris." and "paris" are distinct terms.
func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
