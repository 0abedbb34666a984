package mtp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/pkg/adapter"
	"github.com/marmos91/mtpd/pkg/transport"
)

// DefaultReconnectDelay is the pause between a host detaching and the
// transport being reopened.
const DefaultReconnectDelay = time.Second

// AdapterConfig controls the lifecycle around the responder.
type AdapterConfig struct {
	// ReconnectDelay is waited after a session ends or the transport fails
	// to open.
	ReconnectDelay time.Duration

	// IndexOnStart reconciles the store with the storages before the first
	// host is served.
	IndexOnStart bool

	// Watch enables the filesystem watcher.
	Watch bool

	// WatchDebounce is passed to the watcher.
	WatchDebounce time.Duration
}

// MTPAdapter implements adapter.Adapter for MTP: it opens the transport,
// serves one host until it goes away, and reopens the transport for the
// next one.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. The transport and the current connection are closed, which ends the
//     run loop's blocking read
//  3. Serve returns once the run loop and the watcher have exited
type MTPAdapter struct {
	config    AdapterConfig
	server    *Server
	transport transport.Transport

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

var _ adapter.Adapter = (*MTPAdapter)(nil)

// NewAdapter creates an adapter running server over tr.
func NewAdapter(config AdapterConfig, server *Server, tr transport.Transport) *MTPAdapter {
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = DefaultReconnectDelay
	}
	return &MTPAdapter{
		config:    config,
		server:    server,
		transport: tr,
		done:      make(chan struct{}),
	}
}

// Server returns the responder.
func (a *MTPAdapter) Server() *Server {
	return a.server
}

// Protocol returns "MTP".
func (a *MTPAdapter) Protocol() string {
	return "MTP"
}

// Serve runs until ctx is cancelled or Stop is called.
func (a *MTPAdapter) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
	defer close(a.done)
	defer cancel()

	if a.config.IndexOnStart {
		stats, err := NewIndexer(a.server.store, a.server.registry).IndexAll(ctx)
		if err != nil {
			logger.Warn("Initial index incomplete", logger.Err(err))
		} else {
			logger.Info("Initial index complete",
				"added", stats.Added, "updated", stats.Updated, "removed", stats.Removed)
		}
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	if a.config.Watch {
		w, err := NewWatcher(a.server, a.config.WatchDebounce)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				logger.Error("Filesystem watcher stopped", logger.Err(err))
			}
		}()
	}

	logger.Info("MTP adapter started", logger.KeyTransport, a.transport.String())
	for {
		conn, err := a.transport.Open(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				return nil
			}
			logger.Warn("Cannot open transport", logger.KeyTransport, a.transport.String(), logger.Err(err))
			if !a.wait(ctx) {
				return nil
			}
			continue
		}

		if err := a.serveConn(ctx, conn); err != nil {
			return err
		}
		if !a.wait(ctx) {
			return nil
		}
	}
}

// serveConn runs one host attachment. Only ErrAlreadyServing is returned.
func (a *MTPAdapter) serveConn(ctx context.Context, conn transport.Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer func() { _ = conn.Close() }()

	if a.server.metrics != nil {
		a.server.metrics.RecordHostAttached()
	}
	logger.Info("Host attached", logger.KeyTransport, a.transport.String())

	err := a.server.Serve(ctx, conn)
	if errors.Is(err, ErrAlreadyServing) {
		return err
	}
	if err != nil {
		logger.Info("Host detached", logger.Err(err))
	} else {
		logger.Info("Host detached")
	}
	return nil
}

// wait sleeps for the reconnect delay. It reports false when ctx ended
// first.
func (a *MTPAdapter) wait(ctx context.Context) bool {
	t := time.NewTimer(a.config.ReconnectDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Stop closes the transport and waits for Serve to return or ctx to end.
// It is safe to call more than once.
func (a *MTPAdapter) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		cancel := a.cancel
		a.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		if err := a.transport.Close(); err != nil {
			logger.Debug("Transport close", logger.Err(err))
		}
	})

	a.mu.Lock()
	started := a.cancel != nil
	a.mu.Unlock()
	if !started {
		return nil
	}

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
