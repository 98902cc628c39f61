package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/uniconnect/internal/core/domain"
	"github.com/kirillkom/uniconnect/internal/core/ports"
)

type AssistantConfig struct {
	DocumentsDir string
	Answer       AnswerConfig
}

// Assistant is the boundary used by the HTTP, MCP and CLI adapters. It owns
// the current index and its answering engine. Rebuilds and appends are
// serialized; queries only take a read lock long enough to grab the engine.
type Assistant struct {
	indexer   *Indexer
	embedder  ports.Embedder
	generator ports.AnswerGenerator
	history   *ConversationLog
	cfg       AssistantConfig
	observer  ports.PipelineObserver
	logger    *slog.Logger

	writeMu sync.Mutex

	mu     sync.RWMutex
	index  *domain.SemanticIndex
	engine *AnsweringEngine
}

func NewAssistant(
	indexer *Indexer,
	embedder ports.Embedder,
	generator ports.AnswerGenerator,
	cfg AssistantConfig,
	observer ports.PipelineObserver,
	logger *slog.Logger,
) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &Assistant{
		indexer:   indexer,
		embedder:  embedder,
		generator: generator,
		history:   NewConversationLog(),
		cfg:       cfg,
		observer:  observer,
		logger:    logger,
	}
}

// ProcessDocuments rebuilds the index from the documents directory. The
// previous index stays in service until the new one is persisted.
func (a *Assistant) ProcessDocuments(ctx context.Context) (report *domain.ProcessReport, err error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	start := time.Now()
	report = &domain.ProcessReport{}
	defer func() {
		a.observer.ObserveIndexing("process", report.Documents, report.Chunks, time.Since(start), err)
	}()

	docs, failures, err := a.indexer.LoadDocuments(ctx, a.cfg.DocumentsDir)
	if err != nil {
		return report, err
	}
	report.Failed = failures
	if len(docs) == 0 {
		a.logger.Warn("no_documents_found", "dir", a.cfg.DocumentsDir, "failed", len(failures))
		return report, nil
	}

	chunks := a.indexer.SplitIntoChunks(docs)
	idx, err := a.indexer.BuildIndex(ctx, chunks)
	if err != nil {
		return report, err
	}
	if err := a.indexer.Persist(ctx, idx); err != nil {
		return report, err
	}
	if err := a.install(idx); err != nil {
		return report, err
	}

	report.Documents = len(docs)
	report.Chunks = len(chunks)
	a.logger.Info("index_built",
		"documents", report.Documents,
		"chunks", report.Chunks,
		"failed", len(failures),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return report, nil
}

// Initialize loads a persisted index without reprocessing documents. It
// reports false, without error, when nothing has been persisted yet.
func (a *Assistant) Initialize(ctx context.Context) (bool, error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	idx, err := a.indexer.Reload(ctx)
	if err != nil {
		return false, err
	}
	if idx == nil {
		a.logger.Info("index_not_found")
		return false, nil
	}
	if err := a.install(idx); err != nil {
		return false, err
	}
	a.logger.Info("index_loaded", "entries", idx.Len(), "embedding_model", idx.Manifest().EmbeddingModel)
	return true, nil
}

func (a *Assistant) AddDocument(ctx context.Context, path string) (count int, err error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	start := time.Now()
	defer func() {
		a.observer.ObserveIndexing("add", 1, count, time.Since(start), err)
	}()

	next, count, err := a.indexer.AddDocument(ctx, a.currentIndex(), path)
	if err != nil {
		return 0, err
	}
	if err := a.install(next); err != nil {
		return 0, err
	}
	return count, nil
}

func (a *Assistant) Ask(ctx context.Context, question string) (answer *domain.Answer, err error) {
	start := time.Now()
	defer func() {
		retrieved := 0
		if answer != nil {
			retrieved = len(answer.Sources)
		}
		a.observer.ObserveAsk(retrieved, time.Since(start), err)
	}()

	a.mu.RLock()
	engine := a.engine
	a.mu.RUnlock()
	if engine == nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "ask", errors.New("documents have not been processed yet"))
	}
	return engine.Ask(ctx, question)
}

func (a *Assistant) ClearMemory() {
	a.history.Clear()
}

func (a *Assistant) History() []domain.ConversationTurn {
	return a.history.Turns()
}

func (a *Assistant) Status() domain.IndexStatus {
	idx := a.currentIndex()
	if idx == nil {
		return domain.IndexStatus{}
	}
	manifest := idx.Manifest()
	return domain.IndexStatus{
		Ready:          true,
		Entries:        idx.Len(),
		EmbeddingModel: manifest.EmbeddingModel,
		Dimension:      manifest.Dimension,
		ChunkSize:      manifest.ChunkSize,
		ChunkOverlap:   manifest.ChunkOverlap,
		UpdatedAt:      manifest.UpdatedAt,
	}
}

func (a *Assistant) currentIndex() *domain.SemanticIndex {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.index
}

// install swaps in idx together with a fresh engine sharing the log.
func (a *Assistant) install(idx *domain.SemanticIndex) error {
	engine, err := NewAnsweringEngine(idx, a.embedder, a.generator, a.history, a.cfg.Answer)
	if err != nil {
		return fmt.Errorf("install index: %w", err)
	}
	a.mu.Lock()
	a.index = idx
	a.engine = engine
	a.mu.Unlock()
	return nil
}

type noopObserver struct{}

func (noopObserver) ObserveIndexing(string, int, int, time.Duration, error) {}
func (noopObserver) ObserveAsk(int, time.Duration, error)                 {}
