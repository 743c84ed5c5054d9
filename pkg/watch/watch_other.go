//go:build !linux

package watch

import (
	"os"
	"sync"
	"time"
)

type backend struct {
	mu    sync.Mutex
	mtime map[string]time.Time
}

func newBackend() (*backend, error) {
	return &backend{mtime: make(map[string]time.Time)}, nil
}

func (b *backend) add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.mtime[path] = info.ModTime()
	b.mu.Unlock()
	return nil
}

// poll compares modification times with the previous poll.
func (b *backend) poll() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var changed []string
	for path, last := range b.mtime {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().After(last) {
			changed = append(changed, path)
			b.mtime[path] = info.ModTime()
		}
	}
	return changed, nil
}

func (b *backend) close() error {
	return nil
}
