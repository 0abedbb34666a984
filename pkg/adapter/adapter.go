package adapter

import (
	"context"
)

// Adapter is a protocol front-end managed by the mtpd server: it owns a
// transport, runs the protocol engine on it and restarts the engine when the
// host goes away.
//
// Lifecycle:
//  1. Creation: the adapter is built with its transport, store and registry
//  2. Startup: Serve() runs the protocol and blocks until shutdown
//  3. Shutdown: Stop() tears down the transport, which unblocks Serve()
//
// Thread safety:
// Stop() may be called concurrently with Serve() and more than once.
type Adapter interface {
	// Serve runs the protocol and blocks until ctx is cancelled or an
	// unrecoverable error occurs.
	//
	// Returns:
	//   - nil on graceful shutdown
	//   - error if the transport cannot be opened at all or the engine fails
	//     in a way a reconnect cannot fix
	Serve(ctx context.Context) error

	// Stop initiates shutdown. It must be idempotent and respect the ctx
	// deadline.
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging and
	// metrics, e.g. "MTP".
	Protocol() string
}
