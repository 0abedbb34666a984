package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPacket is returned when a header declares an impossible or
	// over-limit length. Nothing is allocated for the payload.
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrUnexpectedContainer is returned when the container type does not
	// match the phase of the transaction.
	ErrUnexpectedContainer = errors.New("unexpected container type")

	// ErrTransactionMismatch is returned when a data container carries a
	// transaction ID different from the current request.
	ErrTransactionMismatch = errors.New("transaction id mismatch")

	// ErrPayloadTooLarge is returned when a data payload exceeds the limit
	// the caller accepts.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrLengthMismatch is returned when the transport ends a data transfer
	// before the length declared in the container header was received.
	ErrLengthMismatch = errors.New("container length mismatch")

	// ErrUnframed is returned on stream transports for a container whose
	// length is unknown. A stream has no transfer boundaries to resync on,
	// so it is reported as a transport failure.
	ErrUnframed = errors.New("container length unknown on a stream transport")

	// errTransferEnded is the internal signal of readPayload.
	errTransferEnded = errors.New("transfer ended")

	// ErrShortDataset is returned by the Decoder when a dataset ends early.
	ErrShortDataset = errors.New("dataset truncated")
)

// TransportError wraps a read or write failure of the underlying transport,
// including truncated reads. It is fatal to the run loop.
type TransportError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SourceError reports that the reader feeding an outbound data container
// failed. The container was completed with zero padding so framing is
// intact.
type SourceError struct {
	Written int64 // payload bytes taken from the source before it failed
	Err     error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("data source failed after %d bytes: %v", e.Written, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// SinkError reports that the writer receiving an inbound data payload
// failed. The rest of the payload is left unread; call Discard.
type SinkError struct {
	Written int64
	Err     error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("data sink failed after %d bytes: %v", e.Written, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err was caused by the transport.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
