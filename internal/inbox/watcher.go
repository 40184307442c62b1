// Package inbox feeds payload files dropped into a directory through a
// recorded pipeline.
//
// Producers should write payloads atomically: write "<name>.tmp", then
// rename to "<name>". Temp files and dot-files are never picked up.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault is the default debounce interval for file events.
const debounceDefault = 200 * time.Millisecond

// maxConcurrentJobs limits how many inbox files are processed simultaneously.
const maxConcurrentJobs = 4

// maxQueueSize is the buffer size for the work queue channel.
// Must be larger than maxConcurrentJobs to absorb bursts without
// blocking the debounce flush.
const maxQueueSize = 128

// Handler processes one inbox file.
type Handler func(ctx context.Context, path string)

// Watcher watches a directory for new payload files using fsnotify.
type Watcher struct {
	dir      string
	handler  Handler
	debounce time.Duration
	workers  int

	// inflight holds paths queued or being handled. A path is claimed
	// once until its handler returns.
	inflight sync.Map
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the watcher waits after the last event before
// handing files to the workers.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) WatcherOption {
	return func(w *Watcher) {
		if n > 0 {
			w.workers = n
		}
	}
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir string, handler Handler, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		dir:      dir,
		handler:  handler,
		debounce: debounceDefault,
		workers:  maxConcurrentJobs,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches the directory until ctx is cancelled. Files already present
// when Run starts are handled first. Files still pending when ctx is
// cancelled are dropped.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	queue := make(chan string, maxQueueSize)

	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range queue {
				w.handle(ctx, path)
				w.inflight.Delete(path)
			}
		}()
	}

	// ready collects paths that saw an event since the last flush.
	// A single timer resets on each event; when it fires, all
	// accumulated paths flush to the work queue.
	ready := make(map[string]bool)

	enqueue := func(paths []string) {
		for _, p := range paths {
			if _, claimed := w.inflight.LoadOrStore(p, struct{}{}); claimed {
				slog.Debug("inbox file already in flight", "path", p)
				continue
			}
			select {
			case queue <- p:
			case <-ctx.Done():
				w.inflight.Delete(p)
				return
			}
		}
	}

	flush := func() {
		batch := make([]string, 0, len(ready))
		for p := range ready {
			batch = append(batch, p)
		}
		clear(ready)
		enqueue(batch)
	}

	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()

	defer func() {
		debounceTimer.Stop()
		close(queue)
		wg.Wait()
	}()

	existing, err := ListPending(w.dir)
	if err != nil {
		return err
	}
	enqueue(existing)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-debounceTimer.C:
			flush()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !IsPayloadFile(event.Name) {
				continue
			}

			ready[event.Name] = true

			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("inbox watcher error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("inbox handler panicked", "path", path, "panic", r)
		}
	}()
	w.handler(ctx, path)
}

// ListPending returns the payload files currently in dir, sorted by name.
// A missing directory has no pending files.
func ListPending(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan inbox: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if IsPayloadFile(path) {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// IsPayloadFile reports whether path names a finished payload: not a .tmp
// partial write and not a dot-file.
func IsPayloadFile(path string) bool {
	name := filepath.Base(path)
	return !strings.HasPrefix(name, ".") && !strings.HasSuffix(name, ".tmp")
}
