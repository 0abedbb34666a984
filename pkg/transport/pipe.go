package transport

import (
	"context"
	"io"
	"sync"
)

// pipeDepth is the number of transfers a pipe direction buffers before
// Write blocks.
const pipeDepth = 256

// PipeEnd is one side of an in-memory, packet-oriented pipe. Every Write is
// delivered as one transfer; a Read returns at most the rest of one
// transfer. A zero-length Write is delivered as a zero-length packet.
type PipeEnd struct {
	in   <-chan []byte
	out  chan<- []byte
	rest []byte

	done      chan struct{}
	closeOnce *sync.Once
}

// Pipe returns two connected ends. Closing either closes both.
func Pipe() (*PipeEnd, *PipeEnd) {
	ab := make(chan []byte, pipeDepth)
	ba := make(chan []byte, pipeDepth)
	done := make(chan struct{})
	once := &sync.Once{}

	a := &PipeEnd{in: ba, out: ab, done: done, closeOnce: once}
	b := &PipeEnd{in: ab, out: ba, done: done, closeOnce: once}
	return a, b
}

func (p *PipeEnd) Read(b []byte) (int, error) {
	if len(p.rest) == 0 {
		select {
		case msg := <-p.in:
			if len(msg) == 0 {
				return 0, nil
			}
			p.rest = msg
		case <-p.done:
			// Drain what was sent before the close.
			select {
			case msg := <-p.in:
				p.rest = msg
				if len(msg) == 0 {
					return 0, nil
				}
			default:
				return 0, io.EOF
			}
		}
	}
	n := copy(b, p.rest)
	p.rest = p.rest[n:]
	return n, nil
}

func (p *PipeEnd) Write(b []byte) (int, error) {
	msg := make([]byte, len(b))
	copy(msg, b)

	select {
	case <-p.done:
		return 0, io.ErrClosedPipe
	default:
	}
	select {
	case p.out <- msg:
		return len(b), nil
	case <-p.done:
		return 0, io.ErrClosedPipe
	}
}

// Close closes both ends.
func (p *PipeEnd) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

// PipeTransport hands out the device ends of pipes created by Dial, so a
// test can attach and detach hosts.
type PipeTransport struct {
	conns chan *PipeEnd

	mu     sync.Mutex
	open   []*PipeEnd
	closed chan struct{}
	once   sync.Once
}

// NewPipeTransport creates an in-memory transport.
func NewPipeTransport() *PipeTransport {
	return &PipeTransport{
		conns:  make(chan *PipeEnd),
		closed: make(chan struct{}),
	}
}

// Dial attaches a new host and returns its end. It blocks until the device
// side calls Open.
func (t *PipeTransport) Dial(ctx context.Context) (*PipeEnd, error) {
	host, device := Pipe()
	select {
	case t.conns <- device:
		t.mu.Lock()
		t.open = append(t.open, device)
		t.mu.Unlock()
		return host, nil
	case <-t.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Open waits for the next Dial.
func (t *PipeTransport) Open(ctx context.Context) (Conn, error) {
	select {
	case c := <-t.conns:
		return c, nil
	case <-t.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the transport and every pipe it handed out.
func (t *PipeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.open {
		_ = c.Close()
	}
	t.open = nil
	return nil
}

func (t *PipeTransport) String() string {
	return "pipe"
}
