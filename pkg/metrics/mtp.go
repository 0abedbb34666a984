package metrics

import (
	"time"
)

// MTPMetrics provides observability for the MTP responder.
//
// Implementations must be nil-safe so that a disabled metrics layer can be
// passed around as a nil interface value with zero overhead.
//
// Example usage:
//
//	metrics.InitRegistry()
//	m := metrics.NewMTPMetrics()
//	server := mtp.NewServer(cfg, store, reg, mtp.WithMetrics(m))
type MTPMetrics interface {
	// RecordOperation records a completed transaction.
	//
	// Parameters:
	//   - operation: operation name (e.g., "GetObject", "SendObjectInfo")
	//   - response: response name (e.g., "OK", "InvalidObjectHandle")
	//   - duration: time from request to response
	RecordOperation(operation, response string, duration time.Duration)

	// RecordBytes records payload bytes moved in a data phase.
	// direction is "in" (host to device) or "out".
	RecordBytes(operation, direction string, bytes int64)

	// RecordEvent records an event sent to the host.
	RecordEvent(event string)

	// RecordEventDropped records an event that could not be delivered.
	RecordEventDropped(event string)

	// RecordCodecError records a framing error that forced a resync.
	// kind is "malformed", "unexpected_container", "transaction_mismatch".
	RecordCodecError(kind string)

	// SetSessionOpen reports whether a session is currently open.
	SetSessionOpen(open bool)

	// SetStorages reports the number of registered storages.
	SetStorages(count int)

	// RecordHostAttached counts host attachments seen by the adapter.
	RecordHostAttached()
}

// Data phase directions.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// NewMTPMetrics creates a Prometheus-backed MTPMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or the
// prometheus implementation is not linked in.
func NewMTPMetrics() MTPMetrics {
	if !IsEnabled() || newPrometheusMTPMetrics == nil {
		return nil
	}
	return newPrometheusMTPMetrics()
}

// newPrometheusMTPMetrics is set by pkg/metrics/prometheus during package
// initialization. The indirection avoids an import cycle.
var newPrometheusMTPMetrics func() MTPMetrics

// RegisterMTPMetricsConstructor registers the Prometheus MTP metrics
// constructor.
func RegisterMTPMetricsConstructor(constructor func() MTPMetrics) {
	newPrometheusMTPMetrics = constructor
}
