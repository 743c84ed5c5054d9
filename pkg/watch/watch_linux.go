//go:build linux

package watch

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

const watchMask = unix.IN_MODIFY | unix.IN_CLOSE_WRITE | unix.IN_ATTRIB

type backend struct {
	fd    int
	mu    sync.Mutex
	paths map[int]string
	buf   []byte
}

func newBackend() (*backend, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify_init failed: %w", err)
	}
	return &backend{
		fd:    fd,
		paths: make(map[int]string),
		buf:   make([]byte, (unix.SizeofInotifyEvent+256)*16),
	}, nil
}

func (b *backend) add(path string) error {
	wd, err := unix.InotifyAddWatch(b.fd, path, watchMask)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.paths[wd] = path
	b.mu.Unlock()
	return nil
}

// poll drains every queued event without blocking.
func (b *backend) poll() ([]string, error) {
	var changed []string
	for {
		n, err := unix.Read(b.fd, b.buf)
		if errors.Is(err, unix.EAGAIN) || n == 0 {
			return changed, nil
		}
		if err != nil {
			return changed, err
		}

		for offset := 0; offset+unix.SizeofInotifyEvent <= n; {
			event := (*unix.InotifyEvent)(unsafe.Pointer(&b.buf[offset]))
			offset += unix.SizeofInotifyEvent + int(event.Len)
			if event.Mask&watchMask == 0 {
				continue
			}
			b.mu.Lock()
			path := b.paths[int(event.Wd)]
			b.mu.Unlock()
			if path != "" {
				changed = append(changed, path)
			}
		}
	}
}

func (b *backend) close() error {
	return unix.Close(b.fd)
}
