package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// eventQueueSize bounds the buffer between the fsnotify listener and
// the processing worker. Bursts beyond it are dropped with a warning;
// a later scan or write event picks the file up again.
const eventQueueSize = 1024

// Watcher feeds filesystem events into the Indexer. A single worker
// drains a buffered queue so slow extraction or embedding never blocks
// the notification listener.
type Watcher struct {
	ix     *Indexer
	fsw    *fsnotify.Watcher
	queue  chan fsnotify.Event
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher over the given indexer.
func NewWatcher(ix *Indexer, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		ix:     ix,
		fsw:    fsw,
		queue:  make(chan fsnotify.Event, eventQueueSize),
		logger: logger,
	}, nil
}

// Watch registers root and all its non-excluded subdirectories.
// fsnotify watches are not recursive, so every directory is added
// individually; directories created later are added by the worker.
func (w *Watcher) Watch(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("watch walk error", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ix.Rules().ExcludedDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("watch add failed", "path", path, "error", err)
		}
		return nil
	})
}

// Start launches the listener and the processing worker. Both stop when
// ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(2)
	go w.listen(ctx)
	go w.work(ctx)
}

// listen forwards fsnotify events into the buffered queue without ever
// blocking on processing.
func (w *Watcher) listen(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			select {
			case w.queue <- event:
			default:
				w.logger.Warn("event queue full, dropping event",
					"path", event.Name, "op", event.Op.String())
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// work drains the queue one event at a time.
func (w *Watcher) work(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.queue:
			w.handle(ctx, event)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	path := event.Name

	switch {
	case event.Op.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			// Vanished before we got to it
			return
		}
		if info.IsDir() {
			if w.ix.Rules().ExcludedDir(filepath.Base(path)) {
				return
			}
			if err := w.Watch(path); err != nil {
				w.logger.Warn("watch new directory failed", "path", path, "error", err)
			}
			return
		}
		if _, err := w.ix.ProcessFile(ctx, path, false); err != nil {
			w.logger.Error("indexing failed", "path", path, "error", err)
		}

	case event.Op.Has(fsnotify.Write):
		if _, err := w.ix.ProcessFile(ctx, path, true); err != nil {
			w.logger.Error("indexing failed", "path", path, "error", err)
		}

	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		if err := w.ix.DeleteFile(ctx, path); err != nil {
			w.logger.Error("index removal failed", "path", path, "error", err)
		}
	}
}

// Close stops the underlying fsnotify watcher and waits for the
// listener and worker to exit.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}
