package plaintext

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/uniconnect/internal/core/domain"
)

// Extractor reads UTF-8 text files as a single page-less document.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, path, source string) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("not valid utf-8 text: %s", source)
	}

	text := string(raw)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []domain.Document{{Source: source, Page: domain.NoPage, Text: text}}, nil
}
