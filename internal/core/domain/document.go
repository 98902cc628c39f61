package domain

import "time"

// Document is the text of one page (or sheet) of a source file.
type Document struct {
	Source string `json:"source"`
	Page   int    `json:"page"`
	Text   string `json:"text"`
}

// Chunk is a bounded, overlapping window over a Document's text.
type Chunk struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Page    int    `json:"page"`
	Ordinal int    `json:"ordinal"`
	Text    string `json:"text"`
}

// NoPage is stored when the origin of a chunk has no page number.
const NoPage = 0

type IngestionFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type ProcessReport struct {
	Documents int                `json:"count"`
	Chunks    int                `json:"chunks"`
	Failed    []IngestionFailure `json:"failed,omitempty"`
}

type IndexStatus struct {
	Ready          bool      `json:"ready"`
	Entries        int       `json:"entries"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	Dimension      int       `json:"dimension,omitempty"`
	ChunkSize      int       `json:"chunk_size,omitempty"`
	ChunkOverlap   int       `json:"chunk_overlap,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}
