package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
	"github.com/marmos91/mtpd/internal/bufpool"
)

// DefaultMaxTransferSize matches the 16KiB bulk buffer used by MTP gadget
// drivers.
const DefaultMaxTransferSize = 16 << 10

// EventWriter is implemented by transports that deliver events on a channel
// separate from the bulk pipe (the USB interrupt endpoint).
type EventWriter interface {
	WriteEvent(b []byte) error
}

// Streamer is implemented by transports without transfer boundaries, such
// as TCP. On a stream, data phases are framed by their declared length
// alone and a container of unknown length cannot be read.
type Streamer interface {
	Stream() bool
}

// Options configures a Codec.
type Options struct {
	// MaxTransferSize is the largest single transport read or write.
	MaxTransferSize int

	// MaxRequestSize is the largest command container accepted. Defaults to
	// MaxCommandSize.
	MaxRequestSize uint32
}

// Codec reads and writes MTP containers on a transport. Reads are meant for
// a single goroutine (the run loop). Writes are serialized internally so a
// container is never interleaved with another.
type Codec struct {
	rw          io.ReadWriter
	events      EventWriter
	rd          *transferReader
	readBuf     []byte
	maxTransfer int
	maxRequest  uint32
	stream      bool

	// remaining is the number of unread payload bytes of the container
	// being read; -1 means "until the transport ends the transfer".
	remaining int64

	// pending holds a command container that arrived while a data phase
	// was expected.
	pending *Request

	wmu sync.Mutex
}

// New creates a Codec on rw. If rw implements EventWriter, events are sent
// through it instead of in band.
func New(rw io.ReadWriter, opts Options) *Codec {
	if opts.MaxTransferSize < MaxCommandSize {
		opts.MaxTransferSize = DefaultMaxTransferSize
	}
	if opts.MaxRequestSize < HeaderSize {
		opts.MaxRequestSize = MaxCommandSize
	}

	buf := bufpool.Get(opts.MaxTransferSize)
	c := &Codec{
		rw:          rw,
		readBuf:     buf,
		rd:          newTransferReader(rw, buf),
		maxTransfer: opts.MaxTransferSize,
		maxRequest:  opts.MaxRequestSize,
	}
	if ew, ok := rw.(EventWriter); ok {
		c.events = ew
	}
	if st, ok := rw.(Streamer); ok {
		c.stream = st.Stream()
	}
	return c
}

// Release returns the codec's read buffer to the pool. The codec must not be
// used afterwards.
func (c *Codec) Release() {
	if c.readBuf != nil {
		bufpool.Put(c.readBuf)
		c.readBuf = nil
	}
}

// MaxTransferSize returns the transfer unit used for reads and writes.
func (c *Codec) MaxTransferSize() int {
	return c.maxTransfer
}

func (c *Codec) readHeader() (Header, error) {
	var b [HeaderSize]byte
	if _, err := io.ReadFull(c.rd, b[:]); err != nil {
		return Header{}, &TransportError{Op: "read", Err: err}
	}
	h, _ := ParseHeader(b[:])
	return h, nil
}

// ReadRequest blocks until the next command container arrives.
//
// A container of another type yields ErrUnexpectedContainer and a declared
// length outside [HeaderSize, MaxRequestSize] yields ErrMalformedPacket; in
// both cases the caller should Discard and read again. Transport failures
// are returned as *TransportError.
func (c *Codec) ReadRequest() (*Request, error) {
	if c.pending != nil {
		req := c.pending
		c.pending = nil
		return req, nil
	}

	h, err := c.readHeader()
	if err != nil {
		return nil, err
	}
	c.remaining = h.payloadLength()

	if h.Type != types.ContainerCommand {
		return nil, fmt.Errorf("%w: %s (code 0x%04X, length %d) while waiting for a request",
			ErrUnexpectedContainer, h.Type, h.Code, h.Length)
	}
	return c.readCommandBody(h)
}

func (c *Codec) readCommandBody(h Header) (*Request, error) {
	if h.Length < HeaderSize || h.Length > c.maxRequest || (h.Length-HeaderSize)%4 != 0 {
		if h.Length > c.maxRequest && !c.stream {
			c.remaining = -1
		}
		return nil, fmt.Errorf("%w: command length %d", ErrMalformedPacket, h.Length)
	}

	var raw [MaxParams * 4]byte
	n := int(h.Length-HeaderSize) / 4
	keep := min(n, MaxParams)
	if _, err := io.ReadFull(c.rd, raw[:keep*4]); err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	c.remaining -= int64(keep * 4)
	if extra := int64(n-keep) * 4; extra > 0 {
		if _, err := io.CopyN(io.Discard, c.rd, extra); err != nil {
			return nil, &TransportError{Op: "read", Err: err}
		}
		c.remaining -= extra
	}

	params := make([]uint32, keep)
	for i := range params {
		params[i] = binary.LittleEndian.Uint32(raw[4*i:])
	}
	return &Request{
		Code:          types.OperationCode(h.Code),
		TransactionID: h.TransactionID,
		Params:        params,
	}, nil
}

// Discard drops whatever is left of the container being read, so the next
// read starts on a container boundary. It returns the number of bytes
// dropped. On packet transports it never reads past the end of the current
// transfer. On a stream, a container of unknown length cannot be skipped and
// yields a *TransportError wrapping ErrUnframed.
func (c *Codec) Discard() (int64, error) {
	var dropped int64
	switch {
	case c.remaining > 0:
		buf := bufpool.Get(c.maxTransfer)
		defer bufpool.Put(buf)
		for c.remaining > 0 {
			n, err := c.readPart(buf[:min(int64(len(buf)), c.remaining)])
			dropped += int64(n)
			c.remaining -= int64(n)
			if errors.Is(err, ErrLengthMismatch) {
				break
			}
			if err != nil {
				c.remaining = 0
				return dropped, err
			}
		}
	case c.remaining < 0 && c.stream:
		c.remaining = 0
		return 0, &TransportError{Op: "read", Err: ErrUnframed}
	case c.remaining < 0:
		n, err := c.rd.readTransfer(io.Discard)
		dropped = n
		if err != nil {
			c.remaining = 0
			return dropped, err
		}
	}
	c.remaining = 0
	return dropped, nil
}

// readPart reads payload bytes of the container being read. On packet
// transports a transfer that ends before the payload does yields
// ErrLengthMismatch; transport failures come back as *TransportError.
func (c *Codec) readPart(p []byte) (int, error) {
	if c.stream {
		n, err := c.rd.Read(p)
		if err != nil {
			return n, &TransportError{Op: "read", Err: err}
		}
		return n, nil
	}
	n, err := c.rd.readPayload(p)
	switch {
	case errors.Is(err, errTransferEnded):
		return n, ErrLengthMismatch
	case err != nil:
		return n, &TransportError{Op: "read", Err: err}
	}
	return n, nil
}

// beginData reads the header of the data container expected for
// transaction tid and returns its declared payload length (-1 if unknown).
func (c *Codec) beginData(tid uint32) (int64, error) {
	if c.pending != nil {
		return 0, fmt.Errorf("%w: request %s pending", ErrUnexpectedContainer, c.pending.Code)
	}

	h, err := c.readHeader()
	if err != nil {
		return 0, err
	}
	c.remaining = h.payloadLength()

	switch {
	case h.Type == types.ContainerCommand:
		// The host skipped the data phase. Keep the request for the next
		// ReadRequest.
		req, err := c.readCommandBody(h)
		if err != nil {
			return 0, err
		}
		c.pending = req
		return 0, fmt.Errorf("%w: got command %s instead of data", ErrUnexpectedContainer, req.Code)
	case h.Type != types.ContainerData:
		return 0, fmt.Errorf("%w: got %s instead of data", ErrUnexpectedContainer, h.Type)
	case h.TransactionID != tid:
		return 0, fmt.Errorf("%w: data for %d during %d", ErrTransactionMismatch, h.TransactionID, tid)
	case h.Length == UnknownLength && c.stream:
		c.remaining = 0
		return 0, &TransportError{Op: "read", Err: ErrUnframed}
	case h.Length != UnknownLength && h.Length < HeaderSize:
		c.remaining = -1
		return 0, fmt.Errorf("%w: data length %d", ErrMalformedPacket, h.Length)
	}

	// A header sent in a transfer of its own is followed by the payload
	// in the next one.
	if c.remaining > 0 && !c.stream && c.rd.buffered() == 0 {
		c.rd.ended = false
	}
	return c.remaining, nil
}

// ReadData reads the data container of transaction tid and streams its
// payload to w. limit bounds the accepted payload size; a negative limit
// accepts any size. A failing w yields *SinkError with the rest of the
// container left unread. A transfer that ends short of the declared length
// yields ErrLengthMismatch and nothing beyond it is read.
func (c *Codec) ReadData(tid uint32, w io.Writer, limit int64) (int64, error) {
	size, err := c.beginData(tid)
	if err != nil {
		return 0, err
	}
	if limit >= 0 && size > limit {
		return 0, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, size, limit)
	}

	if size < 0 {
		n, err := c.rd.readTransfer(w)
		if err == nil || !errors.As(err, new(*SinkError)) {
			c.remaining = 0
		}
		return n, err
	}

	buf := bufpool.Get(c.maxTransfer)
	defer bufpool.Put(buf)

	var written int64
	for c.remaining > 0 {
		chunk := buf[:min(int64(len(buf)), c.remaining)]
		n, err := c.readPart(chunk)
		c.remaining -= int64(n)
		if n > 0 {
			wn, werr := w.Write(chunk[:n])
			written += int64(wn)
			if werr != nil {
				return written, &SinkError{Written: written, Err: werr}
			}
		}
		if err != nil {
			c.remaining = 0
			if errors.Is(err, ErrLengthMismatch) {
				return written, fmt.Errorf("%w: %d of %d bytes", err, written, size)
			}
			return written, err
		}
	}
	return written, nil
}

// ReadDataBytes reads the data container of transaction tid into memory.
// The declared length is checked against limit before anything is allocated.
func (c *Codec) ReadDataBytes(tid uint32, limit int) ([]byte, error) {
	size, err := c.beginData(tid)
	if err != nil {
		return nil, err
	}
	if size > int64(limit) {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, size, limit)
	}

	if size < 0 {
		var buf bytes.Buffer
		if _, err := c.rd.readTransfer(&limitedBuffer{buf: &buf, limit: limit}); err != nil {
			var se *SinkError
			if errors.As(err, &se) {
				return nil, fmt.Errorf("%w: more than %d bytes", ErrPayloadTooLarge, limit)
			}
			c.remaining = 0
			return nil, err
		}
		c.remaining = 0
		return buf.Bytes(), nil
	}

	payload := make([]byte, size)
	var got int
	for got < len(payload) {
		n, err := c.readPart(payload[got:])
		got += n
		if err != nil {
			c.remaining = 0
			if errors.Is(err, ErrLengthMismatch) {
				return nil, fmt.Errorf("%w: %d of %d bytes", err, got, size)
			}
			return nil, err
		}
	}
	c.remaining = 0
	return payload, nil
}

type limitedBuffer struct {
	buf   *bytes.Buffer
	limit int
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if l.buf.Len()+len(p) > l.limit {
		return 0, ErrPayloadTooLarge
	}
	return l.buf.Write(p)
}

// WriteResponse sends a response container.
func (c *Codec) WriteResponse(r *Response) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.write(r.Marshal())
}

// WriteEvent sends an event container, through the transport's event
// channel when it has one.
func (c *Codec) WriteEvent(e *Event) error {
	b := e.Marshal()

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.events != nil {
		if err := c.events.WriteEvent(b); err != nil {
			return &TransportError{Op: "write", Err: err}
		}
		return nil
	}
	return c.write(b)
}

// WriteDataBytes sends payload as the data container of transaction tid.
func (c *Codec) WriteDataBytes(code types.OperationCode, tid uint32, payload []byte) error {
	_, err := c.WriteData(code, tid, bytes.NewReader(payload), int64(len(payload)))
	return err
}

// WriteData sends size bytes read from src as the data container of
// transaction tid, in chunks of at most MaxTransferSize bytes. The header
// travels with the first chunk.
//
// If src fails or ends early the announced length is still honoured by
// padding with zeros, and a *SourceError is returned.
func (c *Codec) WriteData(code types.OperationCode, tid uint32, src io.Reader, size int64) (int64, error) {
	length := UnknownLength
	if size+HeaderSize < int64(UnknownLength) {
		length = uint32(size + HeaderSize)
	}

	buf := bufpool.Get(c.maxTransfer)
	defer bufpool.Put(buf)

	c.wmu.Lock()
	defer c.wmu.Unlock()

	PutHeader(buf, Header{Length: length, Type: types.ContainerData, Code: uint16(code), TransactionID: tid})
	off := HeaderSize

	var (
		sent   int64
		srcErr error
	)
	for {
		want := min(int64(len(buf)-off), size-sent)
		chunk := buf[off : off+int(want)]
		if srcErr == nil {
			n, err := io.ReadFull(src, chunk)
			if err != nil {
				srcErr = &SourceError{Written: sent + int64(n), Err: err}
				clear(chunk[n:])
			}
		} else {
			clear(chunk)
		}
		sent += want

		if err := c.write(buf[:off+int(want)]); err != nil {
			return sent, err
		}
		off = 0
		if sent >= size {
			break
		}
	}

	if srcErr != nil {
		return sent, srcErr
	}
	return sent, nil
}

func (c *Codec) write(b []byte) error {
	for len(b) > 0 {
		n, err := c.rw.Write(b)
		if err != nil {
			return &TransportError{Op: "write", Err: err}
		}
		b = b[n:]
	}
	return nil
}
