//go:build !linux

package ws

import (
	"net"
	"sync"
)

// eventBatchSize caps the ready channel depth, mirroring the Linux batch.
const eventBatchSize = 128

// Epoll on non-Linux platforms is a goroutine-per-connection stand-in with
// the same interface as the real epoll wrapper. It exists so the gateway
// runs on development machines; production deployments are Linux.
type Epoll struct {
	mu    sync.RWMutex
	conns map[net.Conn]struct{}
	ready chan net.Conn
	done  chan struct{}
}

// NewEpoll creates the fallback instance.
func NewEpoll() (*Epoll, error) {
	return &Epoll{
		conns: make(map[net.Conn]struct{}),
		ready: make(chan net.Conn, eventBatchSize),
		done:  make(chan struct{}),
	}, nil
}

// Add registers a connection and starts a goroutine that parks on a 1-byte
// read to detect incoming data.
func (e *Epoll) Add(conn net.Conn) error {
	e.mu.Lock()
	e.conns[conn] = struct{}{}
	e.mu.Unlock()

	go e.watch(conn)
	return nil
}

// watch blocks on a single-byte read until data arrives or the connection
// dies, then reports the connection as ready. One consumed byte per signal
// is the cost of the fallback; the Linux path consumes nothing.
func (e *Epoll) watch(conn net.Conn) {
	buf := make([]byte, 1)
	for {
		_, err := conn.Read(buf)
		if err != nil {
			// Signal readiness once more so the read path observes the
			// closed connection and cleans up.
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

// Remove unregisters a connection.
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

	batch := []net.Conn{first}
	for {
		select {
		case conn := <-e.ready:
			batch = append(batch, conn)
		default:
			return batch, nil
		}
	}
}

// Close stops all watcher goroutines.
func (e *Epoll) Close() error {
	close(e.done)
	e.mu.Lock()
	e.conns = nil
	e.mu.Unlock()
	return nil
}

// socketFD has no meaning without epoll; the fallback never looks up
// connections by fd.
func socketFD(conn net.Conn) int {
	return -1
}
