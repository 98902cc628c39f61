// Package watcher turns new or rewritten files in the documents directory
// into add-document calls.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 1500 * time.Millisecond

type Watcher struct {
	root     string
	supports func(path string) bool
	debounce time.Duration
	logger   *slog.Logger
}

// New watches root recursively. supports filters the files worth handling;
// debounce is how long a file must stay quiet before it is handed over, so
// a copy in progress is picked up once.
func New(root string, supports func(path string) bool, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	if supports == nil {
		supports = func(string) bool { return true }
	}
	return &Watcher{
		root:     root,
		supports: supports,
		debounce: debounce,
		logger:   logger,
	}
}

// Run blocks until ctx is done. handler runs on one goroutine at a time.
func (w *Watcher) Run(ctx context.Context, handler func(context.Context, string) error) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return fmt.Errorf("create documents dir: %w", err)
	}
	if err := w.addTree(fsw, w.root); err != nil {
		return err
	}
	w.logger.Info("documents_watch_started", "dir", w.root, "debounce_ms", w.debounce.Milliseconds())

	ready := make(chan string, 16)
	var (
		mu      sync.Mutex
		pending = make(map[string]*time.Timer)
	)
	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if previous, ok := pending[path]; ok {
			previous.Stop()
		}
		var timer *time.Timer
		timer = time.AfterFunc(w.debounce, func() {
			mu.Lock()
			current := pending[path] == timer
			if current {
				delete(pending, path)
			}
			mu.Unlock()
			if !current {
				return
			}
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
		pending[path] = timer
	}
	defer func() {
		mu.Lock()
		for _, timer := range pending {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				if err := w.addTree(fsw, event.Name); err != nil {
					w.logger.Warn("documents_watch_add_failed", "dir", event.Name, "error", err)
				}
				continue
			}
			if path, ok := w.handleFsEvent(event); ok {
				schedule(path)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("documents_watch_error", "error", err)
		case path := <-ready:
			if err := handler(ctx, path); err != nil {
				w.logger.Error("document_add_failed", "origin", "watcher", "path", path, "error", err)
			}
		}
	}
}

// handleFsEvent reports the path to index for a create or write of a
// supported, visible file. Removals are ignored: the index never shrinks.
func (w *Watcher) handleFsEvent(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if isHidden(event.Name) || !w.supports(event.Name) {
		return "", false
	}
	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return "", false
	}
	return event.Name, true
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && isHidden(path) {
			return fs.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") || strings.HasSuffix(base, ".tmp")
}
