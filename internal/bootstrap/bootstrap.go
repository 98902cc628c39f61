package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/uniconnect/internal/config"
	"github.com/kirillkom/uniconnect/internal/core/ports"
	"github.com/kirillkom/uniconnect/internal/core/usecase"
	"github.com/kirillkom/uniconnect/internal/infrastructure/chunking"
	"github.com/kirillkom/uniconnect/internal/infrastructure/extractor"
	"github.com/kirillkom/uniconnect/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/uniconnect/internal/infrastructure/llm/openai"
	"github.com/kirillkom/uniconnect/internal/infrastructure/queue/nats"
	"github.com/kirillkom/uniconnect/internal/infrastructure/resilience"
	"github.com/kirillkom/uniconnect/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/uniconnect/internal/infrastructure/vector/filestore"
	"github.com/kirillkom/uniconnect/internal/infrastructure/watcher"
	"github.com/kirillkom/uniconnect/internal/observability/metrics"
)

const addDocumentTimeout = 5 * time.Minute

type App struct {
	Config config.Config
	Logger *slog.Logger

	Assistant   *usecase.Assistant
	Loader      *extractor.Loader
	HTTPMetrics *metrics.HTTPServerMetrics
	Pipeline    *metrics.PipelineMetrics

	// Queue is nil when NATS_URL is empty and no queue was injected.
	Queue ports.IngestQueue

	closeFn func()
}

// Options lets tests and commands replace the LLM provider and the queue.
type Options struct {
	Embedder  ports.Embedder
	Generator ports.AnswerGenerator
	Queue     ports.IngestQueue
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	return NewWithOptions(cfg, logger, Options{})
}

func NewWithOptions(cfg config.Config, logger *slog.Logger, options Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	embedder, generator := options.Embedder, options.Generator
	if embedder == nil || generator == nil {
		var err error
		embedder, generator, err = newProvider(cfg)
		if err != nil {
			return nil, err
		}
	}

	storage, err := localfs.New(cfg.IndexDir)
	if err != nil {
		return nil, fmt.Errorf("init index storage: %w", err)
	}
	repo := filestore.New(storage)
	loader := extractor.NewLoader(cfg.DocumentsDir, cfg.DocumentExtensions, extractor.DefaultExtractors(), logger)

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	pipeline := metrics.NewPipelineMetrics("uniconnect", httpMetrics.Registerer())

	indexer := usecase.NewIndexer(loader, chunking.Factory, embedder, repo, usecase.IndexerConfig{
		ChunkSize:        cfg.ChunkSize,
		ChunkOverlap:     cfg.ChunkOverlap,
		EmbedBatchSize:   cfg.EmbedBatchSize,
		EmbedConcurrency: cfg.EmbedConcurrency,
	}, logger)
	assistant := usecase.NewAssistant(indexer, embedder, generator, usecase.AssistantConfig{
		DocumentsDir: cfg.DocumentsDir,
		Answer: usecase.AnswerConfig{
			TopK:         cfg.RAGTopK,
			PreviewChars: cfg.RAGPreviewChars,
		},
	}, pipeline, logger)

	app := &App{
		Config:      cfg,
		Logger:      logger,
		Assistant:   assistant,
		Loader:      loader,
		HTTPMetrics: httpMetrics,
		Pipeline:    pipeline,
		Queue:       options.Queue,
	}

	if app.Queue == nil && cfg.NATSURL != "" {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(cfg.Resilience()),
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.closeFn = queue.Close
	}
	return app, nil
}

func newProvider(cfg config.Config) (ports.Embedder, ports.AnswerGenerator, error) {
	executor := resilience.NewExecutor(cfg.Resilience())
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		temperature := cfg.LLMTemperature
		client := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
			Timeout:            cfg.LLMTimeout(),
			Temperature:        &temperature,
			ResilienceExecutor: executor,
		})
		return ollama.NewEmbedder(client), ollama.NewGenerator(client), nil
	case config.ProviderOpenAI:
		temperature := float32(cfg.LLMTemperature)
		client := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIGenModel, cfg.OpenAIEmbedModel, openai.Options{
			BaseURL:            cfg.OpenAIBaseURL,
			Timeout:            cfg.LLMTimeout(),
			Temperature:        &temperature,
			ResilienceExecutor: executor,
		})
		return openai.NewEmbedder(client), openai.NewGenerator(client), nil
	default:
		return nil, nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}

// Prepare loads the persisted index. With PROCESS_ON_START it builds one
// when nothing was persisted.
func (a *App) Prepare(ctx context.Context) error {
	loaded, err := a.Assistant.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("initialize index: %w", err)
	}
	if loaded || !a.Config.ProcessOnStart {
		return nil
	}
	a.Logger.Info("processing_on_start", "dir", a.Config.DocumentsDir)
	if _, err := a.Assistant.ProcessDocuments(ctx); err != nil {
		return fmt.Errorf("process documents: %w", err)
	}
	return nil
}

// AddDocumentHandler adapts AddDocument for the queue subscriber and the
// directory watcher. origin labels the task metrics.
func (a *App) AddDocumentHandler(origin string) func(context.Context, string) error {
	return func(ctx context.Context, path string) (err error) {
		a.Pipeline.StartTask()
		defer func() { a.Pipeline.FinishTask(origin, err) }()

		taskCtx, cancel := context.WithTimeout(ctx, addDocumentTimeout)
		defer cancel()
		chunks, err := a.Assistant.AddDocument(taskCtx, path)
		if err != nil {
			return err
		}
		a.Logger.Info("document_added", "origin", origin, "path", path, "chunks", chunks)
		return nil
	}
}

// Watcher returns nil unless WATCH_DOCUMENTS is on.
func (a *App) Watcher() *watcher.Watcher {
	if !a.Config.WatchDocuments {
		return nil
	}
	debounce := time.Duration(a.Config.WatchDebounceMS) * time.Millisecond
	return watcher.New(a.Config.DocumentsDir, a.Loader.Supports, debounce, a.Logger)
}

// RunBackground runs the queue subscriber and the watcher, if configured,
// until ctx is done or one of them fails.
func (a *App) RunBackground(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if a.Queue != nil {
		g.Go(func() error {
			return a.Queue.SubscribeDocumentAdded(gctx, a.AddDocumentHandler("nats"))
		})
	}
	if w := a.Watcher(); w != nil {
		g.Go(func() error {
			return w.Run(gctx, a.AddDocumentHandler("watcher"))
		})
	}
	return g.Wait()
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
