package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/uniconnect/internal/core/domain"
)

type extractorFake struct {
	failOn string
}

func (f extractorFake) Extract(_ context.Context, path, source string) ([]domain.Document, error) {
	if filepath.Base(path) == f.failOn {
		return nil, errors.New("corrupt xref table")
	}
	return []domain.Document{{Source: source, Page: 1, Text: "page of " + source}}, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadDirectoryCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data", "pdfs")
	loader := NewLoader(dir, []string{".pdf"}, nil, nil)

	docs, failures, err := loader.LoadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadDirectory() error = %v", err)
	}
	if docs == nil || len(docs) != 0 || len(failures) != 0 {
		t.Fatalf("expected empty non-nil result, got docs=%v failures=%v", docs, failures)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected dir to be created, stat err = %v", err)
	}
}

func TestLoadDirectorySkipsBrokenFilesAndContinues(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pdf"), "x")
	writeFile(t, filepath.Join(dir, "broken.pdf"), "x")
	writeFile(t, filepath.Join(dir, "visa", "b.pdf"), "x")
	writeFile(t, filepath.Join(dir, "notes.docx"), "x")

	loader := NewLoader(dir, []string{"pdf"}, map[string]FileExtractor{
		".pdf": extractorFake{failOn: "broken.pdf"},
	}, nil)

	docs, failures, err := loader.LoadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadDirectory() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Source != "a.pdf" || docs[1].Source != "visa/b.pdf" {
		t.Fatalf("unexpected sources: %s, %s", docs[0].Source, docs[1].Source)
	}
	if len(failures) != 1 || filepath.Base(failures[0].Path) != "broken.pdf" {
		t.Fatalf("unexpected failures: %#v", failures)
	}
}

func TestLoadFileRejectsUnsupportedType(t *testing.T) {
	loader := NewLoader("", []string{".pdf"}, nil, nil)
	_, err := loader.LoadFile(context.Background(), "/tmp/slides.pptx")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestLoadFileMarksParseFailureAsIngestionError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	writeFile(t, path, "x")
	loader := NewLoader(dir, []string{".pdf"}, map[string]FileExtractor{
		".pdf": extractorFake{failOn: "broken.pdf"},
	}, nil)

	_, err := loader.LoadFile(context.Background(), path)
	if !domain.IsKind(err, domain.ErrIngestion) {
		t.Fatalf("expected ingestion error, got %v", err)
	}
}

func TestLoadFileOutsideRootUsesBaseName(t *testing.T) {
	root := t.TempDir()
	other := filepath.Join(t.TempDir(), "Visa_Guide.txt")
	writeFile(t, other, "F-1 students must maintain full-time enrollment.")

	loader := NewLoader(root, []string{".txt"}, nil, nil)
	docs, err := loader.LoadFile(context.Background(), other)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(docs) != 1 || docs[0].Source != "Visa_Guide.txt" || docs[0].Page != domain.NoPage {
		t.Fatalf("unexpected documents: %#v", docs)
	}
}

func TestSupportsIsCaseInsensitive(t *testing.T) {
	loader := NewLoader("", []string{".PDF", ".md"}, nil, nil)
	if !loader.Supports("Guide.Pdf") || !loader.Supports("readme.MD") || loader.Supports("a.txt") {
		t.Fatalf("unexpected Supports() results, extensions=%v", loader.Extensions())
	}
}
