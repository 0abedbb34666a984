package codec

import (
	"io"
)

// maxEmptyReads bounds consecutive zero-length reads before giving up.
const maxEmptyReads = 100

// transferReader reads whole transport transfers into buf and serves them
// byte by byte. It remembers whether the last transfer was shorter than buf,
// which on USB bulk endpoints marks the end of a transfer.
type transferReader struct {
	r          io.Reader
	buf        []byte
	start, end int
	ended      bool
}

func newTransferReader(r io.Reader, buf []byte) *transferReader {
	return &transferReader{r: r, buf: buf, ended: true}
}

// fill performs one transport read. n == 0 with a nil error is a
// zero-length packet, which also ends a transfer.
func (t *transferReader) fill() (int, error) {
	n, err := t.r.Read(t.buf)
	t.start, t.end = 0, n
	t.ended = n < len(t.buf)
	if n > 0 {
		return n, nil
	}
	if err == nil {
		return 0, nil
	}
	return 0, err
}

func (t *transferReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	empty := 0
	for t.start == t.end {
		n, err := t.fill()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			empty++
			if empty >= maxEmptyReads {
				return 0, io.ErrNoProgress
			}
		}
	}
	n := copy(p, t.buf[t.start:t.end])
	t.start += n
	return n, nil
}

// readPayload is Read for a data phase of known length on a packet
// transport. Once the current transfer has ended no further transfer is
// read, and errTransferEnded is returned instead.
func (t *transferReader) readPayload(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for t.start == t.end {
		if t.ended {
			return 0, errTransferEnded
		}
		if _, err := t.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, t.buf[t.start:t.end])
	t.start += n
	return n, nil
}

// buffered returns the number of bytes read from the transport but not yet
// consumed.
func (t *transferReader) buffered() int {
	return t.end - t.start
}

// drop discards buffered bytes.
func (t *transferReader) drop() int {
	n := t.end - t.start
	t.start = t.end
	return n
}

// readTransfer copies the rest of the current transfer to w: buffered bytes
// first, then further transport reads until one comes back short.
func (t *transferReader) readTransfer(w io.Writer) (int64, error) {
	var total int64
	for {
		if t.start < t.end {
			n, err := w.Write(t.buf[t.start:t.end])
			total += int64(n)
			t.start += n
			if err != nil {
				return total, &SinkError{Written: total, Err: err}
			}
		}
		if t.ended {
			return total, nil
		}
		if _, err := t.fill(); err != nil {
			return total, &TransportError{Op: "read", Err: err}
		}
	}
}
