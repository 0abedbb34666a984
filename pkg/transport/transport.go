// Package transport provides the byte channels an MTP responder runs on.
//
// A Transport hands out one Conn per host attachment. The USB gadget device
// is the production transport; TCP and the in-memory pipe serve development
// and tests. Conns are packet oriented where the medium allows it: a Read
// returns at most one transfer, and a transfer shorter than the reader's
// buffer ends the data phase. TCP conns have no transfers; they implement
// Stream() bool and data phases on them are framed by declared length only.
package transport

import (
	"context"
	"errors"
	"io"
)

// ErrClosed is returned by Open after Close.
var ErrClosed = errors.New("transport closed")

// Conn is one host attachment.
type Conn interface {
	io.ReadWriteCloser
}

// Transport opens host attachments.
type Transport interface {
	// Open blocks until a host is attached or ctx is cancelled.
	Open(ctx context.Context) (Conn, error)

	// Close releases the transport and unblocks a pending Open. Conns already
	// handed out are closed too.
	Close() error

	// String describes the transport for logs, e.g. "usb:/dev/mtp_usb".
	String() string
}

// Type names accepted by configuration.
const (
	TypeDevice = "device"
	TypeTCP    = "tcp"
	TypePipe   = "pipe"
)
