// Package extractor turns files on disk into page-level documents.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/uniconnect/internal/core/domain"
	"github.com/kirillkom/uniconnect/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/uniconnect/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/uniconnect/internal/infrastructure/extractor/xlsx"
)

// FileExtractor parses one file. source is the name recorded on documents.
type FileExtractor interface {
	Extract(ctx context.Context, path, source string) ([]domain.Document, error)
}

// DefaultExtractors maps lower-case extensions to their parser.
func DefaultExtractors() map[string]FileExtractor {
	text := plaintext.NewExtractor()
	return map[string]FileExtractor{
		".pdf":  pdf.NewExtractor(),
		".xlsx": xlsx.NewExtractor(),
		".txt":  text,
		".md":   text,
	}
}

type Loader struct {
	root       string
	extractors map[string]FileExtractor
	logger     *slog.Logger
}

// NewLoader enables only the extensions listed in enabled that have a known
// parser. root is used to derive relative source names.
func NewLoader(root string, enabled []string, extractors map[string]FileExtractor, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if extractors == nil {
		extractors = DefaultExtractors()
	}
	active := make(map[string]FileExtractor, len(enabled))
	for _, ext := range enabled {
		ext = normalizeExt(ext)
		if ex, ok := extractors[ext]; ok {
			active[ext] = ex
		} else {
			logger.Warn("unsupported_extension_ignored", "extension", ext)
		}
	}
	return &Loader{
		root:       root,
		extractors: active,
		logger:     logger,
	}
}

func (l *Loader) Supports(path string) bool {
	_, ok := l.extractors[normalizeExt(filepath.Ext(path))]
	return ok
}

// Extensions lists the enabled extensions in sorted order.
func (l *Loader) Extensions() []string {
	out := make([]string, 0, len(l.extractors))
	for ext := range l.extractors {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func (l *Loader) LoadDirectory(ctx context.Context, dir string) ([]domain.Document, []domain.IngestionFailure, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create documents dir: %w", err)
		}
		l.logger.Info("documents_dir_created", "dir", dir)
		return []domain.Document{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("stat documents dir: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "load documents", fmt.Errorf("%s is not a directory", dir))
	}

	docs := []domain.Document{}
	var failures []domain.IngestionFailure
	walkErr := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			failures = append(failures, domain.IngestionFailure{Path: path, Error: err.Error()})
			l.logger.Warn("document_skipped", "path", path, "error", err)
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() || !l.Supports(path) {
			return nil
		}

		pages, err := l.LoadFile(ctx, path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			failures = append(failures, domain.IngestionFailure{Path: path, Error: err.Error()})
			l.logger.Warn("document_skipped", "path", path, "error", err)
			return nil
		}
		docs = append(docs, pages...)
		return nil
	})
	if walkErr != nil {
		return nil, nil, fmt.Errorf("walk documents dir: %w", walkErr)
	}

	l.logger.Info("documents_loaded", "dir", dir, "documents", len(docs), "failed", len(failures))
	return docs, failures, nil
}

func (l *Loader) LoadFile(ctx context.Context, path string) ([]domain.Document, error) {
	ex, ok := l.extractors[normalizeExt(filepath.Ext(path))]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load document", fmt.Errorf("unsupported file type: %s", path))
	}
	if _, err := os.Stat(path); err != nil {
		return nil, domain.WrapError(domain.ErrIngestion, "load document", err)
	}

	docs, err := ex.Extract(ctx, path, l.sourceName(path))
	if err != nil {
		return nil, domain.WrapError(domain.ErrIngestion, "load document", fmt.Errorf("%s: %w", path, err))
	}
	return docs, nil
}

// sourceName is the path relative to the documents root, or the base name
// for files outside it, so a file keeps one name whichever way it was added.
func (l *Loader) sourceName(path string) string {
	if l.root != "" {
		absRoot, errRoot := filepath.Abs(l.root)
		absPath, errPath := filepath.Abs(path)
		if errRoot == nil && errPath == nil {
			rel, err := filepath.Rel(absRoot, absPath)
			if err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
				return filepath.ToSlash(rel)
			}
		}
	}
	return filepath.Base(path)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
