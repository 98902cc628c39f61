package ports

import (
	"context"

	"github.com/kirillkom/uniconnect/internal/core/domain"
)

// DocumentIndexer is the inbound contract for (re)building the index.
type DocumentIndexer interface {
	ProcessDocuments(ctx context.Context) (*domain.ProcessReport, error)
	Initialize(ctx context.Context) (bool, error)
	AddDocument(ctx context.Context, path string) (int, error)
}

// QuestionAnswerer is the inbound contract for grounded answering.
type QuestionAnswerer interface {
	Ask(ctx context.Context, question string) (*domain.Answer, error)
	ClearMemory()
	History() []domain.ConversationTurn
}

// Assistant is everything the front-end boundary may call.
type Assistant interface {
	DocumentIndexer
	QuestionAnswerer
	Status() domain.IndexStatus
}
