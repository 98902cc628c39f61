package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/uniconnect/internal/core/domain"
	"github.com/kirillkom/uniconnect/internal/core/ports"
)

const (
	DefaultTopK         = 4
	DefaultPreviewChars = 300
	previewMarker       = "..."
)

// SystemFraming is sent with every generation request.
const SystemFraming = `You are UniConnect, an assistant that helps international students with university processes, immigration documents and academic requirements.
Answer the question using the context taken from university documents.
If the context does not contain the answer, say so honestly and then offer general guidance.
Keep the answer accurate and friendly, and name the source document when you rely on a specific policy.`

type AnswerConfig struct {
	TopK         int
	PreviewChars int
}

func (c AnswerConfig) normalize() AnswerConfig {
	out := c
	if out.TopK <= 0 {
		out.TopK = DefaultTopK
	}
	if out.PreviewChars <= 0 {
		out.PreviewChars = DefaultPreviewChars
	}
	return out
}

// AnsweringEngine answers questions against one fixed index.
type AnsweringEngine struct {
	index     *domain.SemanticIndex
	embedder  ports.Embedder
	generator ports.AnswerGenerator
	history   *ConversationLog
	cfg       AnswerConfig
	now       func() time.Time
}

// NewAnsweringEngine fails when no index is given or when the index was
// built with another embedding model. An empty index is accepted.
func NewAnsweringEngine(
	index *domain.SemanticIndex,
	embedder ports.Embedder,
	generator ports.AnswerGenerator,
	history *ConversationLog,
	cfg AnswerConfig,
) (*AnsweringEngine, error) {
	if index == nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "create answering engine", errors.New("no index loaded"))
	}
	if model := index.Manifest().EmbeddingModel; model != "" && model != embedder.ModelID() {
		return nil, domain.WrapError(
			domain.ErrIndexVersionMismatch,
			"create answering engine",
			fmt.Errorf("index built with %q, query embedder is %q", model, embedder.ModelID()),
		)
	}
	if history == nil {
		history = NewConversationLog()
	}
	return &AnsweringEngine{
		index:     index,
		embedder:  embedder,
		generator: generator,
		history:   history,
		cfg:       cfg.normalize(),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (e *AnsweringEngine) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("question is required"))
	}

	retrieved, err := e.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	text, err := e.generator.GenerateAnswer(ctx, domain.GenerationRequest{
		SystemFraming: SystemFraming,
		Context:       composeContext(retrieved),
		Question:      question,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrGeneration, "generate answer", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrGeneration, "generate answer", errors.New("empty completion"))
	}

	answer := &domain.Answer{
		Text:    text,
		Sources: attribute(retrieved, e.cfg.PreviewChars),
	}
	e.history.Append(domain.ConversationTurn{
		Question: question,
		Answer:   text,
		AskedAt:  e.now(),
	})
	return answer, nil
}

func (e *AnsweringEngine) retrieve(ctx context.Context, question string) ([]domain.RetrievedChunk, error) {
	if e.index.Len() == 0 {
		return []domain.RetrievedChunk{}, nil
	}
	vector, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, domain.WrapError(domain.ErrGeneration, "embed question", err)
	}
	retrieved, err := e.index.Search(vector, e.cfg.TopK)
	if err != nil {
		return nil, domain.WrapError(domain.ErrGeneration, "search index", err)
	}
	return retrieved, nil
}

func (e *AnsweringEngine) ClearMemory() {
	e.history.Clear()
}

func (e *AnsweringEngine) History() []domain.ConversationTurn {
	return e.history.Turns()
}

func composeContext(chunks []domain.RetrievedChunk) string {
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = chunk.Text
	}
	return strings.Join(parts, "\n\n")
}

func attribute(chunks []domain.RetrievedChunk, previewChars int) []domain.SourceAttribution {
	out := make([]domain.SourceAttribution, 0, len(chunks))
	for _, chunk := range chunks {
		source := chunk.Source
		if source == "" {
			source = domain.UnknownSource
		}
		page := domain.PageNotAvailable
		if chunk.Page != domain.NoPage {
			page = strconv.Itoa(chunk.Page)
		}
		out = append(out, domain.SourceAttribution{
			Content: preview(chunk.Text, previewChars),
			Source:  source,
			Page:    page,
		})
	}
	return out
}

func preview(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + previewMarker
}
