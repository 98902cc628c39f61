package localfs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveReplacesContentAtomically(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vector_store")
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, "index.json", strings.NewReader(`{"v":1}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, "index.json", strings.NewReader(`{"v":2}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rc, err := store.Open(ctx, "index.json")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != `{"v":2}` {
		t.Fatalf("unexpected content %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestOpenMissingKey(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = store.Open(context.Background(), "index.json")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestPathStaysInsideBase(t *testing.T) {
	base := t.TempDir()
	store, err := New(base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := store.Path("../../etc/passwd"); !strings.HasPrefix(got, base) {
		t.Fatalf("path escaped storage dir: %s", got)
	}
}
