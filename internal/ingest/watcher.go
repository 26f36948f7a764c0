package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces editor save bursts into one re-ingest.
const DefaultDebounce = 500 * time.Millisecond

// Watcher re-ingests files as they change on disk. Rapid events for the
// same path are debounced; deletes drop the document from the index.
type Watcher struct {
	ingestor  *Ingestor
	namespace string
	debounce  time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a watcher over the given ingestor.
func NewWatcher(ingestor *Ingestor, namespace string, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		ingestor:  ingestor,
		namespace: namespace,
		debounce:  debounce,
		logger:    logger,
		pending:   make(map[string]*time.Timer),
	}
}

// Run watches dir recursively until the context is cancelled.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	if err := addRecursive(fw, dir); err != nil {
		return err
	}
	w.logger.Info("watching for document changes", slog.String("dir", dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fw, event)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	// New directories need their own watch before files inside them
	// produce events.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !strings.HasPrefix(filepath.Base(event.Name), ".") {
				_ = addRecursive(fw, event.Name)
			}
			return
		}
	}

	if !Supported(event.Name) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		w.schedule(event.Name, func() {
			if err := w.ingestor.RemoveDocument(ctx, DocumentID(event.Name)); err != nil {
				w.logger.Warn("remove on delete failed",
					slog.String("path", event.Name), slog.Any("error", err))
			}
		})

	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		w.schedule(event.Name, func() {
			if _, err := w.ingestor.IngestFile(ctx, event.Name, w.namespace); err != nil {
				w.logger.Warn("re-ingest failed",
					slog.String("path", event.Name), slog.Any("error", err))
			}
		})
	}
}

// schedule debounces fn per path: a burst of events resets the timer and
// only the last one fires.
func (w *Watcher) schedule(path string, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		fn()
	})
}

func addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
