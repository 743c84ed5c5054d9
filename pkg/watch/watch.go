// Package watch reruns a callback when source files change.
//
// Linux uses inotify; other platforms poll modification times. Bursts of
// events for one file are debounced into a single callback, and callbacks
// never run concurrently.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/GriffinCanCode/altf4-compiler/pkg/logger"
)

const (
	DefaultDebounce = 300 * time.Millisecond
	pollInterval    = 100 * time.Millisecond
)

type Watcher struct {
	// Debounce is how long a file must stay quiet before the callback runs.
	Debounce time.Duration

	onChange func(path string)
	backend  *backend

	mu      sync.Mutex
	pending map[string]*time.Timer
	running sync.Mutex
}

// New creates a watcher calling onChange with the absolute path of each
// changed file.
func New(onChange func(path string)) (*Watcher, error) {
	b, err := newBackend()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		Debounce: DefaultDebounce,
		onChange: onChange,
		backend:  b,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Add starts watching path.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.backend.add(abs); err != nil {
		return fmt.Errorf("watch %s: %w", abs, err)
	}
	logger.Debug("Watching file", "path", abs)
	return nil
}

// Watch blocks, dispatching change events until ctx is done.
func (w *Watcher) Watch(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.stopPending()
			return nil
		case <-ticker.C:
			changed, err := w.backend.poll()
			if err != nil {
				logger.Warn("Reading file events failed", "error", err)
				continue
			}
			for _, path := range changed {
				w.schedule(path)
			}
		}
	}
}

// Close releases the platform watch handle.
func (w *Watcher) Close() error {
	w.stopPending()
	return w.backend.close()
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		w.running.Lock()
		defer w.running.Unlock()
		logger.Debug("File changed", "path", path)
		w.onChange(path)
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}
