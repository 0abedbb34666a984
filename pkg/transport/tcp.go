package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/marmos91/mtpd/internal/logger"
)

// TCP serves MTP containers over a stream socket, one host at a time. It is
// meant for development against test initiators. A stream has no transfer
// boundaries, so data phases must carry their length.
type TCP struct {
	addr string

	mu       sync.Mutex
	listener net.Listener
	conn     net.Conn
	closed   bool
	ready    chan struct{}
}

// NewTCP creates a TCP transport listening on addr ("host:port").
func NewTCP(addr string) *TCP {
	return &TCP{addr: addr, ready: make(chan struct{})}
}

// Addr returns the bound address once the first Open has started
// listening, or nil.
func (t *TCP) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Ready is closed once the listener is bound.
func (t *TCP) Ready() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready
}

func (t *TCP) listen(ctx context.Context) (net.Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	if t.listener != nil {
		return t.listener, nil
	}

	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", t.addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", t.addr, err)
	}
	t.listener = l
	close(t.ready)
	logger.Info("MTP TCP transport listening", logger.KeyAddress, l.Addr().String())
	return l, nil
}

// Open accepts the next host connection.
func (t *TCP) Open(ctx context.Context) (Conn, error) {
	l, err := t.listen(ctx)
	if err != nil {
		return nil, err
	}

	type result struct {
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		c, err := l.Accept()
		done <- result{c, err}
	}()

	select {
	case <-ctx.Done():
		// Unblock Accept; the next Open listens again.
		t.mu.Lock()
		_ = l.Close()
		if t.listener == l {
			t.listener = nil
			t.ready = make(chan struct{})
		}
		t.mu.Unlock()
		if r := <-done; r.conn != nil {
			_ = r.conn.Close()
		}
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if closed {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("accept: %w", r.err)
		}
		if tc, ok := r.conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		t.mu.Lock()
		t.conn = r.conn
		t.mu.Unlock()
		logger.Info("MTP host connected", logger.KeyRemote, r.conn.RemoteAddr().String())
		return streamConn{r.conn}, nil
	}
}

// Close stops listening and drops the current connection.
func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true

	var err error
	if t.listener != nil {
		err = t.listener.Close()
		t.listener = nil
	}
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	return err
}

func (t *TCP) String() string {
	return "tcp:" + t.addr
}

// streamConn marks a TCP connection as having no transfer boundaries.
type streamConn struct {
	net.Conn
}

func (streamConn) Stream() bool { return true }
