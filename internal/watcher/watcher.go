// Package watcher re-runs a handler when watched snapshot files change.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handler is called with the absolute path of a changed file. Calls never
// overlap; a returned error is logged and watching continues.
type Handler func(ctx context.Context, path string) error

// Watcher watches files for changes
type Watcher struct {
	paths    []string
	onChange Handler
	debounce time.Duration
	logger   *zap.Logger
}

// New creates a new file watcher
func New(onChange Handler, paths ...string) *Watcher {
	return &Watcher{
		paths:    paths,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		logger:   zap.NewNop(),
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// WithLogger sets the logger
func (w *Watcher) WithLogger(l *zap.Logger) *Watcher {
	if l != nil {
		w.logger = l
	}
	return w
}

// Watch blocks until the context is cancelled or the underlying watcher
// fails to start. Directories are watched rather than files so that editors
// replacing a file are still seen.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	files := make(map[string]bool, len(w.paths))
	dirs := make(map[string]bool)
	for _, path := range w.paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", path, err)
		}
		dir := filepath.Dir(abs)
		if !dirs[dir] {
			if err := fw.Add(dir); err != nil {
				return fmt.Errorf("watch directory %s: %w", dir, err)
			}
			dirs[dir] = true
		}
		files[abs] = true
		w.logger.Info("watching for changes", zap.String("path", abs))
	}

	// pending changes keyed by path, fired together once the debounce
	// window has passed without a new event
	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !files[abs] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending[abs] = true
			timer.Reset(w.debounce)

		case <-timer.C:
			for _, path := range w.paths {
				abs, _ := filepath.Abs(path)
				if !pending[abs] {
					continue
				}
				delete(pending, abs)
				w.logger.Info("file changed", zap.String("path", abs))
				if err := w.onChange(ctx, abs); err != nil {
					w.logger.Error("change handler failed", zap.String("path", abs), zap.Error(err))
				}
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
