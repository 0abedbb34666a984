package mtp

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
	"github.com/marmos91/mtpd/internal/logger"
)

// session is the state of the single MTP session.
type session struct {
	id   uint32
	open bool

	// pending bridges SendObjectInfo and the following SendObject. At most
	// one send is pending; a new SendObjectInfo replaces it.
	pending *pendingSend
}

// pendingSend is the object announced by SendObjectInfo whose bytes have
// not arrived yet. Its record already exists in the store.
type pendingSend struct {
	handle       uint32
	storageID    uint32
	parent       uint32
	format       types.ObjectFormat
	path         string
	expectedSize uint64
}

// openSession starts a session. It reports false if one is already open.
func (s *Server) openSession(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.open {
		return false
	}
	s.session = session{id: id, open: true}
	if s.metrics != nil {
		s.metrics.SetSessionOpen(true)
	}
	return true
}

// closeSession ends the session, dropping any pending send.
func (s *Server) closeSession(ctx context.Context) {
	s.mu.Lock()
	wasOpen := s.session.open
	pending := s.session.pending
	s.session = session{}
	s.mu.Unlock()

	if pending != nil {
		s.abandon(ctx, pending)
	}
	if wasOpen {
		if s.metrics != nil {
			s.metrics.SetSessionOpen(false)
		}
		logger.DebugCtx(ctx, "MTP session closed")
	}
}

// setPending stores p in the send slot and returns the send it replaced.
func (s *Server) setPending(p *pendingSend) *pendingSend {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.session.pending
	s.session.pending = p
	return prev
}

// takePending empties the send slot and returns what it held.
func (s *Server) takePending() *pendingSend {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.session.pending
	s.session.pending = nil
	return p
}

// pendingHandle returns the handle of the pending send, or 0.
func (s *Server) pendingHandle() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.pending == nil {
		return 0
	}
	return s.session.pending.handle
}

// abandon removes the record of a send that will never receive its bytes.
func (s *Server) abandon(ctx context.Context, p *pendingSend) {
	if err := s.store.DeleteObject(ctx, p.handle); err != nil {
		logger.WarnCtx(ctx, "Failed to remove abandoned object record",
			logger.Handle(p.handle), logger.Path(p.path), logger.Err(err))
		return
	}
	logger.DebugCtx(ctx, "Abandoned pending send",
		logger.Handle(p.handle), logger.Path(p.path))
}

// echoFilter remembers paths the responder changed itself, so the watcher
// does not report them back to the host as external changes.
type echoFilter struct {
	window time.Duration

	mu    sync.Mutex
	paths map[string]time.Time
}

func newEchoFilter(window time.Duration) *echoFilter {
	return &echoFilter{window: window, paths: make(map[string]time.Time)}
}

// mark records that path is being changed now.
func (f *echoFilter) mark(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	f.paths[path] = now
	for p, at := range f.paths {
		if now.Sub(at) > f.window {
			delete(f.paths, p)
		}
	}
}

// forget unmarks path, so the watcher treats its next change as external.
func (f *echoFilter) forget(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.paths, path)
}

// seen reports whether path was marked within the window.
func (f *echoFilter) seen(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.paths[path]
	if !ok {
		return false
	}
	if time.Since(at) > f.window {
		delete(f.paths, path)
		return false
	}
	return true
}
