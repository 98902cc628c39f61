package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/uniconnect/internal/core/domain"
	"github.com/kirillkom/uniconnect/internal/core/ports"
)

// chunkNamespace seeds the name-based chunk ids.
var chunkNamespace = uuid.MustParse("6f1c7a52-3b0e-4d8e-9a51-2f4b7c9d0e13")

type IndexerConfig struct {
	ChunkSize        int
	ChunkOverlap     int
	EmbedBatchSize   int
	EmbedConcurrency int
}

func (c IndexerConfig) normalize() IndexerConfig {
	out := c
	if out.EmbedBatchSize <= 0 {
		out.EmbedBatchSize = 64
	}
	if out.EmbedConcurrency <= 0 {
		out.EmbedConcurrency = 4
	}
	return out
}

// Indexer turns source documents into a persisted semantic index. It holds
// no index state itself; callers own the current index and swap it in.
type Indexer struct {
	loader     ports.DocumentLoader
	newChunker ports.ChunkerFactory
	embedder   ports.Embedder
	repo       ports.IndexRepository
	cfg        IndexerConfig
	logger     *slog.Logger
	now        func() time.Time
}

func NewIndexer(
	loader ports.DocumentLoader,
	newChunker ports.ChunkerFactory,
	embedder ports.Embedder,
	repo ports.IndexRepository,
	cfg IndexerConfig,
	logger *slog.Logger,
) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		loader:     loader,
		newChunker: newChunker,
		embedder:   embedder,
		repo:       repo,
		cfg:        cfg.normalize(),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (ix *Indexer) LoadDocuments(ctx context.Context, dir string) ([]domain.Document, []domain.IngestionFailure, error) {
	docs, failures, err := ix.loader.LoadDirectory(ctx, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("load documents: %w", err)
	}
	return docs, failures, nil
}

// SplitIntoChunks splits with the configured chunk size and overlap.
func (ix *Indexer) SplitIntoChunks(docs []domain.Document) []domain.Chunk {
	return ix.splitWith(ix.newChunker(ix.cfg.ChunkSize, ix.cfg.ChunkOverlap), docs)
}

// splitWith never carries overlap across document boundaries.
func (ix *Indexer) splitWith(chunker ports.Chunker, docs []domain.Document) []domain.Chunk {
	var out []domain.Chunk
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		for ordinal, text := range chunker.Split(doc.Text) {
			out = append(out, domain.Chunk{
				ID:      chunkID(doc.Source, doc.Page, ordinal, text),
				Source:  doc.Source,
				Page:    doc.Page,
				Ordinal: ordinal,
				Text:    text,
			})
		}
	}
	return out
}

// BuildIndex embeds every chunk and assembles a fresh index. Nothing is
// returned unless every embedding succeeded.
func (ix *Indexer) BuildIndex(ctx context.Context, chunks []domain.Chunk) (*domain.SemanticIndex, error) {
	chunker := ix.newChunker(ix.cfg.ChunkSize, ix.cfg.ChunkOverlap)
	base, err := domain.NewSemanticIndex(domain.IndexManifest{
		EmbeddingModel: ix.embedder.ModelID(),
		ChunkSize:      chunker.Size(),
		ChunkOverlap:   chunker.Overlap(),
	}, nil)
	if err != nil {
		return nil, err
	}
	return ix.extend(ctx, base, chunks)
}

func (ix *Indexer) extend(ctx context.Context, base *domain.SemanticIndex, chunks []domain.Chunk) (*domain.SemanticIndex, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := ix.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.IndexEntry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = domain.IndexEntry{Chunk: chunk, Vector: vectors[i]}
	}
	next, err := base.Append(entries)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingService, "assemble index", err)
	}
	return next.Touch(ix.now()), nil
}

// embedAll sends fixed-size batches concurrently; the first failure cancels
// the batches still in flight.
func (ix *Indexer) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(ix.cfg.EmbedConcurrency)

	for start := 0; start < len(texts); start += ix.cfg.EmbedBatchSize {
		end := min(start+ix.cfg.EmbedBatchSize, len(texts))
		batch := texts[start:end]
		offset := start
		group.Go(func() error {
			out, err := ix.embedder.Embed(groupCtx, batch)
			if err != nil {
				return err
			}
			if len(out) != len(batch) {
				return fmt.Errorf("vectors/chunks mismatch: %d/%d", len(out), len(batch))
			}
			for i, vector := range out {
				if len(vector) == 0 {
					return fmt.Errorf("empty vector for chunk %d", offset+i)
				}
				vectors[offset+i] = vector
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingService, "embed chunks", err)
	}
	return vectors, nil
}

func (ix *Indexer) Persist(ctx context.Context, idx *domain.SemanticIndex) error {
	if idx == nil {
		return domain.WrapError(domain.ErrIndexUnavailable, "persist index", errors.New("nil index"))
	}
	if err := ix.repo.Save(ctx, idx); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	return nil
}

// Reload returns (nil, nil) when no index has been persisted yet.
func (ix *Indexer) Reload(ctx context.Context) (*domain.SemanticIndex, error) {
	idx, err := ix.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload index: %w", err)
	}
	if idx == nil {
		return nil, nil
	}

	manifest := idx.Manifest()
	if manifest.EmbeddingModel != ix.embedder.ModelID() {
		return nil, domain.WrapError(
			domain.ErrIndexVersionMismatch,
			"reload index",
			fmt.Errorf("index built with %q, configured embedder is %q", manifest.EmbeddingModel, ix.embedder.ModelID()),
		)
	}
	configured := ix.newChunker(ix.cfg.ChunkSize, ix.cfg.ChunkOverlap)
	if manifest.ChunkSize != configured.Size() || manifest.ChunkOverlap != configured.Overlap() {
		ix.logger.Warn("chunk_config_differs",
			"index_chunk_size", manifest.ChunkSize,
			"index_chunk_overlap", manifest.ChunkOverlap,
			"configured_chunk_size", configured.Size(),
			"configured_chunk_overlap", configured.Overlap(),
		)
	}
	return idx, nil
}

// AddDocument embeds one file and returns a new index holding current's
// entries plus the file's chunks, already persisted. When current is nil the
// persisted index is reloaded and extended; a new index is started only when
// nothing has been persisted. Chunks already present (same source, page,
// position and text) are not duplicated. The returned count is the number of
// chunks in the file.
func (ix *Indexer) AddDocument(ctx context.Context, current *domain.SemanticIndex, path string) (*domain.SemanticIndex, int, error) {
	docs, err := ix.loader.LoadFile(ctx, path)
	if err != nil {
		return nil, 0, err
	}

	if current == nil {
		current, err = ix.Reload(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("add document: %w", err)
		}
	}

	var chunker ports.Chunker
	if current != nil {
		manifest := current.Manifest()
		if manifest.EmbeddingModel != ix.embedder.ModelID() {
			return nil, 0, domain.WrapError(
				domain.ErrIndexVersionMismatch,
				"add document",
				fmt.Errorf("index built with %q, configured embedder is %q", manifest.EmbeddingModel, ix.embedder.ModelID()),
			)
		}
		chunker = ix.newChunker(manifest.ChunkSize, manifest.ChunkOverlap)
	} else {
		chunker = ix.newChunker(ix.cfg.ChunkSize, ix.cfg.ChunkOverlap)
	}

	chunks := ix.splitWith(chunker, docs)
	if len(chunks) == 0 {
		return nil, 0, domain.WrapError(domain.ErrIngestion, "add document", fmt.Errorf("%s has no extractable text", path))
	}

	base := current
	if base == nil {
		base, err = domain.NewSemanticIndex(domain.IndexManifest{
			EmbeddingModel: ix.embedder.ModelID(),
			ChunkSize:      chunker.Size(),
			ChunkOverlap:   chunker.Overlap(),
		}, nil)
		if err != nil {
			return nil, 0, err
		}
	}

	fresh := withoutKnown(base, chunks)
	if skipped := len(chunks) - len(fresh); skipped > 0 {
		ix.logger.Info("duplicate_chunks_skipped", "path", path, "skipped", skipped)
	}

	next, err := ix.extend(ctx, base, fresh)
	if err != nil {
		return nil, 0, err
	}
	if err := ix.Persist(ctx, next); err != nil {
		return nil, 0, err
	}
	ix.logger.Info("document_added", "path", path, "chunks", len(chunks), "entries", next.Len())
	return next, len(chunks), nil
}

func withoutKnown(idx *domain.SemanticIndex, chunks []domain.Chunk) []domain.Chunk {
	known := make(map[string]struct{}, idx.Len())
	for _, entry := range idx.Entries() {
		known[entry.ID] = struct{}{}
	}
	out := make([]domain.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if _, ok := known[chunk.ID]; ok {
			continue
		}
		known[chunk.ID] = struct{}{}
		out = append(out, chunk)
	}
	return out
}

func chunkID(source string, page, ordinal int, text string) string {
	name := strings.Join([]string{source, strconv.Itoa(page), strconv.Itoa(ordinal), text}, "\x00")
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}
