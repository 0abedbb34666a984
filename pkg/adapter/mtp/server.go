package mtp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/internal/telemetry"
	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/metrics"
	"github.com/marmos91/mtpd/pkg/registry"
)

// ErrAlreadyServing is returned by Serve when another connection is being
// served.
var ErrAlreadyServing = errors.New("server is already serving a connection")

// Server is the MTP responder state machine.
//
// One goroutine drives Serve: it reads a request, runs its handler with any
// data phase, and writes the response before reading the next request.
// Events may be sent from other goroutines (watcher, hot-plug); they wait for
// the running transaction to finish so frames never interleave.
//
// A Server outlives connections: when the host detaches, the session ends
// and Serve returns; the adapter calls Serve again on the next attachment.
type Server struct {
	config   ServerConfig
	store    metadata.Store
	registry *registry.Registry
	metrics  metrics.MTPMetrics
	gid      int

	props *devicePropTable
	echo  *echoFilter

	// txMu is held for a whole transaction and for every event write.
	txMu sync.Mutex

	// mu guards the fields below.
	mu      sync.Mutex
	codec   *codec.Codec
	session session

	lastTID atomic.Uint32
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics sets the metrics sink. A nil sink disables metrics.
func WithMetrics(m metrics.MTPMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a responder over store and reg.
func NewServer(config ServerConfig, store metadata.Store, reg *registry.Registry, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("metadata store is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("storage registry is required")
	}
	config.ApplyDefaults()

	gid, err := resolveGroup(config.FileGroup)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:   config,
		store:    store,
		registry: reg,
		gid:      gid,
		props:    newDevicePropTable(config),
		echo:     newEchoFilter(config.EchoWindow),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics != nil {
		s.metrics.SetStorages(reg.Count())
	}
	return s, nil
}

// Store returns the metadata store.
func (s *Server) Store() metadata.Store {
	return s.store
}

// Registry returns the storage registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// SessionID returns the open session ID, or 0 when no session is open.
func (s *Server) SessionID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.open {
		return 0
	}
	return s.session.id
}

// Serve runs the request loop on conn until the transport fails or reaches
// EOF. Per-transaction failures are answered with a response code and the
// loop continues; only transport failures end it. The session is closed on
// return.
func (s *Server) Serve(ctx context.Context, conn io.ReadWriter) error {
	c := codec.New(conn, codec.Options{
		MaxTransferSize: s.config.MaxTransferSize,
		MaxRequestSize:  s.config.MaxRequestSize,
	})

	s.mu.Lock()
	if s.codec != nil {
		s.mu.Unlock()
		c.Release()
		return ErrAlreadyServing
	}
	s.codec = c
	s.mu.Unlock()

	defer func() {
		s.txMu.Lock()
		s.mu.Lock()
		s.codec = nil
		s.mu.Unlock()
		s.closeSession(context.WithoutCancel(ctx))
		s.txMu.Unlock()
		c.Release()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		req, err := c.ReadRequest()
		if err != nil {
			if codec.IsTransportError(err) {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if err := s.resync(c, err); err != nil {
				return err
			}
			continue
		}

		if err := s.runTransaction(ctx, c, req); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// resync drops the rest of a container that could not be handled as a
// request.
func (s *Server) resync(c *codec.Codec, cause error) error {
	kind := codecErrorKind(cause)
	if s.metrics != nil {
		s.metrics.RecordCodecError(kind)
	}

	dropped, err := c.Discard()
	logger.Debug("Discarded container while waiting for a request",
		"kind", kind, logger.KeyBytes, dropped, logger.Err(cause))
	if err != nil && codec.IsTransportError(err) {
		return err
	}
	return nil
}

func codecErrorKind(err error) string {
	switch {
	case errors.Is(err, codec.ErrMalformedPacket):
		return "malformed"
	case errors.Is(err, codec.ErrTransactionMismatch):
		return "transaction_mismatch"
	case errors.Is(err, codec.ErrUnexpectedContainer):
		return "unexpected_container"
	case errors.Is(err, codec.ErrPayloadTooLarge):
		return "payload_too_large"
	case errors.Is(err, codec.ErrLengthMismatch):
		return "length_mismatch"
	default:
		return "other"
	}
}

// runTransaction executes one request and writes its response. The returned
// error is a transport failure.
func (s *Server) runTransaction(ctx context.Context, c *codec.Codec, req *codec.Request) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.lastTID.Store(req.TransactionID)
	start := time.Now()
	opName := req.Code.String()
	sessionID := s.SessionID()

	lc := logger.NewLogContext(opName, sessionID, req.TransactionID)
	ctx, span := telemetry.StartTransactionSpan(ctx, opName, uint16(req.Code), req.TransactionID, sessionID)
	lc = lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	logger.DebugCtx(ctx, "MTP request", logger.OpCode(uint16(req.Code)), logger.KeyParams, req.Params)

	t := &txn{server: s, codec: c, req: req}
	res, err := s.dispatch(ctx, t)
	if err != nil {
		telemetry.RecordError(ctx, err)
		telemetry.EndTransactionSpan(span, "TransportError", false)
		logger.WarnCtx(ctx, "MTP transaction aborted by transport failure", logger.Err(err))
		return err
	}

	resp := &codec.Response{
		Code:          res.code,
		TransactionID: req.TransactionID,
		Params:        res.params,
	}
	werr := c.WriteResponse(resp)

	duration := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordOperation(opName, res.code.String(), duration)
		if t.bytesIn > 0 {
			s.metrics.RecordBytes(opName, metrics.DirectionIn, t.bytesIn)
		}
		if t.bytesOut > 0 {
			s.metrics.RecordBytes(opName, metrics.DirectionOut, t.bytesOut)
		}
	}
	telemetry.EndTransactionSpan(span, res.code.String(), res.code.IsOK())

	args := []any{logger.Response(res.code.String()), logger.DurationMs(logger.Duration(start))}
	if len(res.params) > 0 {
		args = append(args, logger.KeyParams, res.params)
	}
	if res.err != nil {
		args = append(args, logger.Err(res.err))
	}
	if res.code.IsOK() {
		logger.DebugCtx(ctx, "MTP response", args...)
	} else {
		logger.InfoCtx(ctx, "MTP request failed", args...)
	}

	return werr
}

// dispatch runs the handler registered for the request code, enforcing the
// session precondition.
func (s *Server) dispatch(ctx context.Context, t *txn) (result, error) {
	op, ok := DispatchTable[t.req.Code]
	if !ok {
		return respond(types.RespOperationNotSupported), nil
	}
	if op.NeedsSession && s.SessionID() == 0 {
		return respond(types.RespSessionNotOpen), nil
	}
	return op.Handler(ctx, t)
}
