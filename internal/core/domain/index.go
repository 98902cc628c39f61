package domain

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// IndexFormatVersion is bumped whenever the persisted layout changes.
const IndexFormatVersion = 1

// IndexManifest pins everything that must stay constant across one index.
type IndexManifest struct {
	FormatVersion  int       `json:"format_version"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type IndexEntry struct {
	Chunk
	Vector []float32 `json:"vector"`
}

// SemanticIndex maps chunk embeddings to chunk content. A published index is
// never mutated: Append returns a new index and leaves the receiver intact, so
// readers holding the old pointer keep a consistent view.
type SemanticIndex struct {
	manifest IndexManifest
	entries  []IndexEntry
	norms    []float64
}

func NewSemanticIndex(manifest IndexManifest, entries []IndexEntry) (*SemanticIndex, error) {
	if manifest.FormatVersion == 0 {
		manifest.FormatVersion = IndexFormatVersion
	}
	idx := &SemanticIndex{manifest: manifest}
	return idx.Append(entries)
}

func (idx *SemanticIndex) Manifest() IndexManifest { return idx.manifest }

func (idx *SemanticIndex) Len() int { return len(idx.entries) }

func (idx *SemanticIndex) Dimension() int { return idx.manifest.Dimension }

// Entries returns a copy of the entries in insertion order.
func (idx *SemanticIndex) Entries() []IndexEntry {
	return slices.Clone(idx.entries)
}

// Append returns a new index holding the receiver's entries followed by
// entries. The first vector ever added fixes the dimension.
func (idx *SemanticIndex) Append(entries []IndexEntry) (*SemanticIndex, error) {
	manifest := idx.manifest
	for i, entry := range entries {
		if len(entry.Vector) == 0 {
			return nil, WrapError(ErrInvalidInput, "append index entries", fmt.Errorf("entry %d has empty vector", i))
		}
		if manifest.Dimension == 0 {
			manifest.Dimension = len(entry.Vector)
		}
		if len(entry.Vector) != manifest.Dimension {
			return nil, WrapError(
				ErrIndexVersionMismatch,
				"append index entries",
				fmt.Errorf("entry %d dimension %d, index dimension %d", i, len(entry.Vector), manifest.Dimension),
			)
		}
	}

	next := &SemanticIndex{
		manifest: manifest,
		entries:  append(slices.Clip(idx.entries), entries...),
		norms:    slices.Clip(idx.norms),
	}
	for _, entry := range entries {
		next.norms = append(next.norms, norm(entry.Vector))
	}
	return next, nil
}

// Search returns the k entries most similar to query by cosine similarity.
// Equal scores keep insertion order, so results are deterministic.
func (idx *SemanticIndex) Search(query []float32, k int) ([]RetrievedChunk, error) {
	if k <= 0 || len(idx.entries) == 0 {
		return []RetrievedChunk{}, nil
	}
	if len(query) != idx.manifest.Dimension {
		return nil, WrapError(
			ErrIndexVersionMismatch,
			"search index",
			fmt.Errorf("query dimension %d, index dimension %d", len(query), idx.manifest.Dimension),
		)
	}

	queryNorm := norm(query)
	scores := make([]float64, len(idx.entries))
	for i, entry := range idx.entries {
		scores[i] = cosine(query, entry.Vector, queryNorm, idx.norms[i])
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case scores[a] > scores[b]:
			return -1
		case scores[a] < scores[b]:
			return 1
		default:
			return 0
		}
	})

	if k > len(order) {
		k = len(order)
	}
	out := make([]RetrievedChunk, 0, k)
	for _, i := range order[:k] {
		out = append(out, RetrievedChunk{Chunk: idx.entries[i].Chunk, Score: scores[i]})
	}
	return out, nil
}

// Touch returns a copy of the index with UpdatedAt set.
func (idx *SemanticIndex) Touch(now time.Time) *SemanticIndex {
	next := *idx
	if next.manifest.CreatedAt.IsZero() {
		next.manifest.CreatedAt = now
	}
	next.manifest.UpdatedAt = now
	return &next
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
