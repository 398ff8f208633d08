package model

type ChunkType string

const (
	ChunkTypeText     ChunkType = "text"
	ChunkTypeMarkdown ChunkType = "markdown"
	ChunkTypePDF      ChunkType = "pdf"
	ChunkTypeImage    ChunkType = "image"
)

func (t ChunkType) Valid() bool {
	switch t {
	case ChunkTypeText, ChunkTypeMarkdown, ChunkTypePDF, ChunkTypeImage:
		return true
	}
	return false
}

// Chunk is one indexed passage of a user's document. Immutable once created;
// owned by exactly one user's index collection.
type Chunk struct {
	Source  string    `json:"source"`
	ChunkID string    `json:"chunk_id"`
	Type    ChunkType `json:"type"`
	UserID  string    `json:"user_id"`
	Text    string    `json:"text"`
	Ctime   int64     `json:"ctime"`
}

// RetrievalResult is a per-query scored chunk. Never persisted.
type RetrievalResult struct {
	Chunk         Chunk   `json:"chunk"`
	SemanticScore float64 `json:"semantic_score"`
	LexicalScore  float64 `json:"lexical_score"`
	FusedScore    float64 `json:"fused_score"`
}

// UserIndexStats summarizes one user's loaded documents.
type UserIndexStats struct {
	UserID        string   `json:"user_id"`
	HasDocuments  bool     `json:"has_documents"`
	DocumentCount int      `json:"document_count"`
	TotalChunks   int      `json:"total_chunks"`
	Sources       []string `json:"sources"`
}
