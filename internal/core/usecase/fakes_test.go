package usecase

import (
	"context"
	"errors"
	"hash/fnv"
	"maps"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/kirillkom/uniconnect/internal/core/domain"
	"github.com/kirillkom/uniconnect/internal/infrastructure/chunking"
)

const fakeDimension = 32

// bagOfWordsEmbedder hashes lower-cased words into a fixed number of buckets,
// so texts sharing words end up close to each other.
type bagOfWordsEmbedder struct {
	model string
	err   error
	// failAfter makes Embed fail once this many batches succeeded (-1 = never).
	failAfter int

	mu       sync.Mutex
	batches  int
	embedded int
	queries  []string
}

func newEmbedder() *bagOfWordsEmbedder {
	return &bagOfWordsEmbedder{model: "fake-embed-v1", failAfter: -1}
}

func (f *bagOfWordsEmbedder) ModelID() string { return f.model }

func (f *bagOfWordsEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.failAfter >= 0 && f.batches >= f.failAfter {
		return nil, errors.New("embedding backend unreachable")
	}
	f.batches++
	f.embedded += len(texts)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = bagOfWords(text)
	}
	return out, nil
}

func (f *bagOfWordsEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return bagOfWords(text), nil
}

func bagOfWords(text string) []float32 {
	vector := make([]float32, fakeDimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vector[h.Sum32()%fakeDimension]++
	}
	return vector
}

type generatorFake struct {
	answer string
	err    error

	mu       sync.Mutex
	requests []domain.GenerationRequest
}

func (f *generatorFake) GenerateAnswer(_ context.Context, req domain.GenerationRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if f.answer == "" {
		return "answer", nil
	}
	return f.answer, nil
}

type loaderFake struct {
	files    map[string][]domain.Document
	failures []domain.IngestionFailure
	dirErr   error
}

func (f *loaderFake) LoadDirectory(_ context.Context, _ string) ([]domain.Document, []domain.IngestionFailure, error) {
	if f.dirErr != nil {
		return nil, nil, f.dirErr
	}
	docs := []domain.Document{}
	for _, path := range slices.Sorted(maps.Keys(f.files)) {
		docs = append(docs, f.files[path]...)
	}
	return docs, f.failures, nil
}

func (f *loaderFake) LoadFile(_ context.Context, path string) ([]domain.Document, error) {
	docs, ok := f.files[path]
	if !ok {
		return nil, domain.WrapError(domain.ErrIngestion, "load document", errors.New("no such file"))
	}
	return docs, nil
}

func (f *loaderFake) Supports(string) bool { return true }

type repoFake struct {
	mu      sync.Mutex
	stored  *domain.SemanticIndex
	saves   int
	saveErr error
	loadErr error
}

func (f *repoFake) Save(_ context.Context, idx *domain.SemanticIndex) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.stored = idx
	return nil
}

func (f *repoFake) Load(context.Context) (*domain.SemanticIndex, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.stored, nil
}

func newTestIndexer(loader *loaderFake, embedder *bagOfWordsEmbedder, repo *repoFake, cfg IndexerConfig) *Indexer {
	return NewIndexer(loader, chunking.Factory, embedder, repo, cfg, nil)
}

func doc(source string, page int, text string) domain.Document {
	return domain.Document{Source: source, Page: page, Text: text}
}
