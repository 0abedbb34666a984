package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so logs can be
// aggregated and queried by transaction, session or object.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// Protocol & Transaction
	// ========================================================================
	KeyOperation     = "operation"      // Operation name: GetObject, OpenSession, ...
	KeyOpCode        = "op_code"        // Raw operation code (hex)
	KeyTransactionID = "transaction_id" // Transaction ID of the current exchange
	KeySessionID     = "session_id"     // Open session ID
	KeyResponse      = "response"       // Response code name
	KeyEvent         = "event"          // Event code name
	KeyContainer     = "container"      // Container type: command, data, response, event
	KeyParams        = "params"         // Request/response parameters

	// ========================================================================
	// Objects & Storage
	// ========================================================================
	KeyStorageID = "storage_id" // Storage ID (hex)
	KeyHandle    = "handle"     // Object handle
	KeyParent    = "parent"     // Parent object handle
	KeyFormat    = "format"     // Object format name
	KeyProperty  = "property"   // Object or device property name
	KeyPath      = "path"       // Absolute filesystem path
	KeyFilename  = "filename"   // Object file name
	KeySize      = "size"       // Object size in bytes
	KeyOffset    = "offset"     // Offset for partial transfers
	KeyBytes     = "bytes"      // Bytes moved over the transport
	KeyCount     = "count"      // Number of objects/entries

	// ========================================================================
	// Transport
	// ========================================================================
	KeyTransport = "transport" // Transport type: device, tcp, pipe
	KeyAddress   = "address"   // Device path or listen address
	KeyRemote    = "remote"    // Remote address for stream transports

	// ========================================================================
	// Backends
	// ========================================================================
	KeyStoreType = "store_type" // Metadata store type: memory, badger, sqlite, postgres

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Operation returns an attr carrying the operation name.
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// OpCode renders an operation code as 0xXXXX.
func OpCode(code uint16) slog.Attr {
	return slog.String(KeyOpCode, fmt.Sprintf("0x%04X", code))
}

func TransactionID(id uint32) slog.Attr {
	return slog.Any(KeyTransactionID, id)
}

func SessionID(id uint32) slog.Attr {
	return slog.Any(KeySessionID, id)
}

func Response(name string) slog.Attr {
	return slog.String(KeyResponse, name)
}

func Event(name string) slog.Attr {
	return slog.String(KeyEvent, name)
}

// StorageID renders a storage ID as 0xXXXXXXXX.
func StorageID(id uint32) slog.Attr {
	return slog.String(KeyStorageID, fmt.Sprintf("0x%08X", id))
}

func Handle(h uint32) slog.Attr {
	return slog.Any(KeyHandle, h)
}

func Parent(h uint32) slog.Attr {
	return slog.Any(KeyParent, h)
}

func Format(name string) slog.Attr {
	return slog.String(KeyFormat, name)
}

func Property(name string) slog.Attr {
	return slog.String(KeyProperty, name)
}

func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

func Size(s uint64) slog.Attr {
	return slog.Uint64(KeySize, s)
}

func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns an error attr, or an empty attr for a nil error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
