package catalog

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

// FileWatcher polls file modification times and triggers a callback on change.
type FileWatcher struct {
	list      func() []string // paths to watch, re-evaluated each scan
	Interval  time.Duration
	onChange  func(string) // called with path that changed
	stopCh    chan struct{}
	stopOnce  sync.Once
	lastMTime map[string]time.Time
}

// NewFileWatcher creates a watcher for the paths list returns.
func NewFileWatcher(list func() []string, interval time.Duration, onChange func(string)) *FileWatcher {
	return &FileWatcher{
		list:      list,
		Interval:  interval,
		onChange:  onChange,
		stopCh:    make(chan struct{}),
		lastMTime: make(map[string]time.Time),
	}
}

// Start primes the mtime cache and begins polling in a goroutine.
func (w *FileWatcher) Start() {
	w.scanAll(true)
	ticker := time.NewTicker(w.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.scanAll(false)
			case <-w.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the watcher. Safe to call more than once.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// scanAll checks mtimes and invokes onChange for files that changed since last scan.
// A path seen for the first time after priming counts as a change.
func (w *FileWatcher) scanAll(prime bool) {
	for _, p := range w.list() {
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		mt := fi.ModTime()
		last, ok := w.lastMTime[p]
		w.lastMTime[p] = mt
		if prime || (ok && !mt.After(last)) {
			continue
		}
		if w.onChange != nil {
			w.onChange(p)
		}
	}
}

// Reloader rebuilds the catalog from disk whenever a watched file changes.
// A reload that fails validation keeps the previous catalog.
type Reloader struct {
	loader  *Loader
	source  *Source
	logger  *slog.Logger
	watcher *FileWatcher
}

// NewReloader wires a loader to a source.
func NewReloader(loader *Loader, source *Source, interval time.Duration, logger *slog.Logger) *Reloader {
	r := &Reloader{
		loader: loader,
		source: source,
		logger: logger.With("component", "catalog_reloader"),
	}
	r.watcher = NewFileWatcher(r.watchedPaths, interval, r.onChange)
	return r
}

func (r *Reloader) watchedPaths() []string {
	paths := []string{r.loader.Paths().DefaultPath(), r.loader.Paths().PoolsDir()}
	files, err := r.loader.PoolFiles()
	if err != nil {
		r.logger.Warn("list pool files failed", "error", err)
		return paths
	}
	return append(paths, files...)
}

func (r *Reloader) onChange(path string) {
	r.logger.Info("catalog file changed", "path", path)
	if err := r.Reload(); err != nil {
		r.logger.Error("catalog reload failed, keeping previous catalog", "error", err)
	}
}

// Reload loads and swaps the catalog now.
func (r *Reloader) Reload() error {
	c, err := r.loader.Load()
	if err != nil {
		return err
	}
	r.source.Swap(c)
	r.logger.Info("catalog reloaded", "version", c.Version(), "pools", len(c.Pools()))
	return nil
}

func (r *Reloader) Start() { r.watcher.Start() }

func (r *Reloader) Stop() { r.watcher.Stop() }
