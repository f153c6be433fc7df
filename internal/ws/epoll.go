//go:build linux

package ws

import (
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// eventBatchSize caps how many ready fds a single epoll_wait returns.
const eventBatchSize = 128

// Epoll multiplexes read readiness for all client sockets through a single
// kernel epoll instance, so idle connections cost no goroutines. A level
// triggered registration keeps the read path simple: a ready fd is reported
// again on the next Wait if its frame was not fully consumed.
type Epoll struct {
	epfd   int
	mu     sync.RWMutex
	conns  map[int]net.Conn // registered sockets by fd
	events []unix.EpollEvent
}

// NewEpoll creates the epoll instance.
func NewEpoll() (*Epoll, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &Epoll{
		epfd:   epfd,
		conns:  make(map[int]net.Conn),
		events: make([]unix.EpollEvent, eventBatchSize),
	}, nil
}

// Add registers a socket for read and hangup notifications.
func (e *Epoll) Add(conn net.Conn) error {
	fd := socketFD(conn)
	event := &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLHUP | unix.EPOLLRDHUP,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(e.epfd, syscall.EPOLL_CTL_ADD, fd, event); err != nil {
		return err
	}

	e.mu.Lock()
	e.conns[fd] = conn
	e.mu.Unlock()
	return nil
}

// Remove drops a socket from the interest list.
func (e *Epoll) Remove(conn net.Conn) error {
	fd := socketFD(conn)
	if err := unix.EpollCtl(e.epfd, syscall.EPOLL_CTL_DEL, fd, nil); err != nil {
		return err
	}

	e.mu.Lock()
	delete(e.conns, fd)
	e.mu.Unlock()
	return nil
}

// Wait blocks until at least one registered socket is ready and returns the
// matching connections. Fds removed between the kernel reporting them and
// the map lookup are skipped; their cleanup already happened elsewhere.
func (e *Epoll) Wait() ([]net.Conn, error) {
	n, err := unix.EpollWait(e.epfd, e.events, -1)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	ready := make([]net.Conn, 0, n)
	for i := 0; i < n; i++ {
		if conn, ok := e.conns[int(e.events[i].Fd)]; ok {
			ready = append(ready, conn)
		}
	}
	e.mu.RUnlock()
	return ready, nil
}

// Close releases the epoll file descriptor. Registered sockets are closed by
// their owners, not here.
func (e *Epoll) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conns = nil
	return unix.Close(e.epfd)
}

// socketFD returns the raw fd behind a net.Conn without duplicating it the
// way File() would, so the fd stays valid for epoll registration.
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
	_ = raw.Control(func(sfd uintptr) {
		fd = int(sfd)
	})
	return fd
}
