// Package inbox gates files that arrive in an upload drop directory. Files
// landing together form one upload gesture and are affirmed or removed as a
// unit.
package inbox

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	debounceDefault = 300 * time.Millisecond
	pollDefault     = 2 * time.Second
	maxQueuedBatch  = 64
)

// BatchFunc handles one batch of new files.
type BatchFunc func(ctx context.Context, batch []string)

// Watcher watches a directory with fsnotify and hands new files to a
// handler in debounced batches. Batches are handled one at a time.
type Watcher struct {
	dir      string
	handler  BatchFunc
	debounce time.Duration
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the watcher waits for more files before
// flushing a batch.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the watcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir string, handler BatchFunc, opts ...Option) *Watcher {
	w := &Watcher{dir: dir, handler: handler, debounce: debounceDefault, logger: slog.Default()}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run watches the directory. Blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}

	queue := make(chan []string, maxQueuedBatch)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for batch := range queue {
			w.handle(ctx, batch)
		}
	}()

	ready := make(map[string]bool)
	flush := func() {
		if len(ready) == 0 {
			return
		}
		batch := sortedKeys(ready)
		ready = make(map[string]bool)
		select {
		case queue <- batch:
		case <-ctx.Done():
		}
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer func() {
		timer.Stop()
		close(queue)
		<-done
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			flush()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) || !isUploadFile(event.Name) {
				continue
			}
			ready[event.Name] = true
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watch error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, batch []string) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("inbox handler panicked", "panic", r)
		}
	}()
	w.handler(ctx, batch)
}

// PollWatcher is the polling fallback for filesystems without change
// notifications. Each scan that finds new files yields one batch.
type PollWatcher struct {
	dir      string
	handler  BatchFunc
	interval time.Duration
	seen     map[string]bool
}

// NewPollWatcher creates a polling watcher for dir.
func NewPollWatcher(dir string, handler BatchFunc, interval time.Duration) *PollWatcher {
	if interval == 0 {
		interval = pollDefault
	}
	return &PollWatcher{dir: dir, handler: handler, interval: interval, seen: make(map[string]bool)}
}

// Run polls the directory. Blocks until ctx is cancelled.
func (w *PollWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *PollWatcher) scan(ctx context.Context) {
	files, err := listUploads(w.dir)
	if err != nil {
		return
	}
	var batch []string
	for _, p := range files {
		if !w.seen[p] {
			w.seen[p] = true
			batch = append(batch, p)
		}
	}
	if len(batch) > 0 {
		w.handler(ctx, batch)
	}
}

// ScanExisting hands files already present in dir to handler as one batch.
func ScanExisting(ctx context.Context, dir string, handler BatchFunc) error {
	files, err := listUploads(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(files) > 0 {
		handler(ctx, files)
	}
	return nil
}

func listUploads(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if isUploadFile(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// isUploadFile excludes hidden files and partial transfers.
func isUploadFile(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	for _, suffix := range []string{".tmp", ".part", ".crdownload"} {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
