//go:build linux

package ws

import (
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Epoll multiplexes read readiness for every registered connection through a
// single kernel epoll instance, so idle sockets cost no goroutines.
type Epoll struct {
	pollFd int
	mu     sync.RWMutex
	conns  map[int]net.Conn  // socket fd -> connection
	buf    []unix.EpollEvent // reused across Wait calls
}

// NewEpoll opens an epoll instance via epoll_create1.
func NewEpoll() (*Epoll, error) {
	pollFd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &Epoll{
		pollFd: pollFd,
		conns:  make(map[int]net.Conn),
		buf:    make([]unix.EpollEvent, 128),
	}, nil
}

// Add puts the connection's socket on the interest list, watching for
// readable data and hangups.
func (e *Epoll) Add(conn net.Conn) error {
	fd := socketFD(conn)
	event := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLHUP, Fd: int32(fd)}
	if err := unix.EpollCtl(e.pollFd, syscall.EPOLL_CTL_ADD, fd, &event); err != nil {
		return err
	}

	e.mu.Lock()
	e.conns[fd] = conn
	e.mu.Unlock()
	return nil
}

// Remove takes the connection's socket off the interest list.
func (e *Epoll) Remove(conn net.Conn) error {
	fd := socketFD(conn)
	if err := unix.EpollCtl(e.pollFd, syscall.EPOLL_CTL_DEL, fd, nil); err != nil {
		return err
	}

	e.mu.Lock()
	delete(e.conns, fd)
	e.mu.Unlock()
	return nil
}

// Wait blocks until at least one registered socket is readable and returns
// the matching connections. A socket removed between the kernel wakeup and
// the map lookup is skipped.
func (e *Epoll) Wait() ([]net.Conn, error) {
	n, err := unix.EpollWait(e.pollFd, e.buf, -1)
	if err != nil {
		return nil, err
	}

	ready := make([]net.Conn, 0, n)
	e.mu.RLock()
	for _, ev := range e.buf[:n] {
		if conn, ok := e.conns[int(ev.Fd)]; ok {
			ready = append(ready, conn)
		}
	}
	e.mu.RUnlock()
	return ready, nil
}

// Close drops the connection map and closes the epoll fd.
func (e *Epoll) Close() error {
	e.mu.Lock()
	e.conns = nil
	e.mu.Unlock()
	return unix.Close(e.pollFd)
}

// socketFD digs the raw file descriptor out of a net.Conn without
// duplicating it. File() would dup the descriptor, leaving epoll registered
// on a different fd than the one the connection reads from.
func socketFD(conn net.Conn) int {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1
	}

	fd := -1
	_ = raw.Control(func(u uintptr) { fd = int(u) })
	return fd
}
