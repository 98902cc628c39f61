package pdf

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/uniconnect/internal/core/domain"
)

// Extractor emits one document per PDF page, numbered from 1.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, path, source string) (docs []domain.Document, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("parse pdf %s: %v", source, r)
		}
	}()

	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	total := reader.NumPage()
	docs = make([]domain.Document, 0, total)
	for pageNum := 1; pageNum <= total; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", pageNum, err)
		}
		docs = append(docs, domain.Document{
			Source: source,
			Page:   pageNum,
			Text:   text,
		})
	}
	return docs, nil
}
