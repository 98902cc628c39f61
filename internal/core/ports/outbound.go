package ports

import (
	"context"
	"time"

	"github.com/kirillkom/uniconnect/internal/core/domain"
)

// DocumentLoader turns source files into page-level documents.
type DocumentLoader interface {
	// LoadDirectory walks dir recursively. A missing dir is created and yields
	// no documents. Files that fail to parse are reported, not fatal.
	LoadDirectory(ctx context.Context, dir string) ([]domain.Document, []domain.IngestionFailure, error)
	LoadFile(ctx context.Context, path string) ([]domain.Document, error)
	Supports(path string) bool
}

// Chunker splits text into bounded, overlapping windows.
type Chunker interface {
	Split(text string) []string
	Size() int
	Overlap() int
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// ModelID identifies the embedding model; it is pinned in the index.
	ModelID() string
}

// AnswerGenerator creates the final user-facing answer.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, req domain.GenerationRequest) (string, error)
}

// IndexRepository persists the semantic index artifact.
type IndexRepository interface {
	Save(ctx context.Context, idx *domain.SemanticIndex) error
	// Load returns (nil, nil) when no artifact exists yet.
	Load(ctx context.Context) (*domain.SemanticIndex, error)
}

// IngestQueue carries asynchronous add-document requests.
type IngestQueue interface {
	PublishDocumentAdded(ctx context.Context, path string) error
	SubscribeDocumentAdded(ctx context.Context, handler func(context.Context, string) error) error
}

// ChunkerFactory builds a Chunker for an explicit size/overlap pair.
type ChunkerFactory func(size, overlap int) Chunker

// PipelineObserver receives indexing and answering measurements.
type PipelineObserver interface {
	ObserveIndexing(operation string, documents, chunks int, duration time.Duration, err error)
	ObserveAsk(retrieved int, duration time.Duration, err error)
}
