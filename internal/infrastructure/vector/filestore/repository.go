// Package filestore persists the semantic index as a single JSON document.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/kirillkom/uniconnect/internal/core/domain"
)

const indexKey = "index.json"

// BlobStore is satisfied by localfs.Storage.
type BlobStore interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type Repository struct {
	store BlobStore
}

func New(store BlobStore) *Repository {
	return &Repository{store: store}
}

type artifact struct {
	domain.IndexManifest
	Entries []domain.IndexEntry `json:"entries"`
}

func (r *Repository) Save(ctx context.Context, idx *domain.SemanticIndex) error {
	doc := artifact{
		IndexManifest: idx.Manifest(),
		Entries:       idx.Entries(),
	}
	if doc.Entries == nil {
		doc.Entries = []domain.IndexEntry{}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := r.store.Save(ctx, indexKey, &buf); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// Load returns (nil, nil) when nothing has been saved yet.
func (r *Repository) Load(ctx context.Context) (*domain.SemanticIndex, error) {
	rc, err := r.store.Open(ctx, indexKey)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer rc.Close()

	var doc artifact
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return nil, domain.WrapError(domain.ErrIndexCorrupt, "decode index", err)
	}
	if doc.FormatVersion != domain.IndexFormatVersion {
		return nil, domain.WrapError(
			domain.ErrIndexCorrupt,
			"decode index",
			fmt.Errorf("format version %d, supported %d", doc.FormatVersion, domain.IndexFormatVersion),
		)
	}
	if doc.EmbeddingModel == "" {
		return nil, domain.WrapError(domain.ErrIndexCorrupt, "decode index", errors.New("embedding model not recorded"))
	}

	idx, err := domain.NewSemanticIndex(doc.IndexManifest, doc.Entries)
	if err != nil {
		if domain.IsKind(err, domain.ErrIndexVersionMismatch) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrIndexCorrupt, "decode index", err)
	}
	return idx, nil
}
