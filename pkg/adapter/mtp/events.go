package mtp

import (
	"context"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/internal/telemetry"
	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/registry"
)

// sendEvent writes an event container to the host. It waits for the running
// transaction to complete. Without a connection or an open session the
// event is dropped and false is returned; a transport failure is returned as
// an error and left for the run loop to notice on its next read.
func (s *Server) sendEvent(ctx context.Context, code types.EventCode, params ...uint32) (bool, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	c := s.codec
	open := s.session.open
	s.mu.Unlock()

	if c == nil || !open {
		if s.metrics != nil {
			s.metrics.RecordEventDropped(code.String())
		}
		logger.DebugCtx(ctx, "Event dropped, no session", logger.Event(code.String()), logger.KeyParams, params)
		return false, nil
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanEvent)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.Event(code.String()))

	err := c.WriteEvent(&codec.Event{
		Code:          code,
		TransactionID: s.lastTID.Load(),
		Params:        params,
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "Failed to send event", logger.Event(code.String()), logger.Err(err))
		return false, err
	}

	if s.metrics != nil {
		s.metrics.RecordEvent(code.String())
	}
	logger.DebugCtx(ctx, "Event sent", logger.Event(code.String()), logger.KeyParams, params)
	return true, nil
}

// SendObjectAdded tells the host a new object exists.
func (s *Server) SendObjectAdded(ctx context.Context, handle uint32) error {
	_, err := s.sendEvent(ctx, types.EventObjectAdded, handle)
	return err
}

// SendObjectRemoved tells the host an object is gone.
func (s *Server) SendObjectRemoved(ctx context.Context, handle uint32) error {
	_, err := s.sendEvent(ctx, types.EventObjectRemoved, handle)
	return err
}

// SendObjectInfoChanged tells the host to refetch an object's info.
func (s *Server) SendObjectInfoChanged(ctx context.Context, handle uint32) error {
	_, err := s.sendEvent(ctx, types.EventObjectInfoChanged, handle)
	return err
}

// SendStoreAdded tells the host a storage appeared.
func (s *Server) SendStoreAdded(ctx context.Context, storageID uint32) error {
	_, err := s.sendEvent(ctx, types.EventStoreAdded, storageID)
	return err
}

// SendStoreRemoved tells the host a storage disappeared.
func (s *Server) SendStoreRemoved(ctx context.Context, storageID uint32) error {
	_, err := s.sendEvent(ctx, types.EventStoreRemoved, storageID)
	return err
}

// AddStorage registers a storage while the server runs and announces it to
// the host.
func (s *Server) AddStorage(ctx context.Context, cfg *registry.StorageConfig) (*registry.Storage, error) {
	st, err := s.registry.AddStorage(cfg)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SetStorages(s.registry.Count())
	}
	logger.InfoCtx(ctx, "Storage added", logger.StorageID(st.ID), logger.Path(st.Path))

	if err := s.SendStoreAdded(ctx, st.ID); err != nil {
		logger.WarnCtx(ctx, "Storage added but host not notified", logger.StorageID(st.ID), logger.Err(err))
	}
	return st, nil
}

// RemoveStorage unregisters a storage, drops the records below it and
// announces the removal to the host.
func (s *Server) RemoveStorage(ctx context.Context, id uint32) error {
	if err := s.registry.RemoveStorage(id); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SetStorages(s.registry.Count())
	}

	objs, err := s.store.ListObjects(ctx, metadata.Filter{StorageID: id})
	if err != nil {
		logger.WarnCtx(ctx, "Cannot list records of removed storage", logger.StorageID(id), logger.Err(err))
	} else {
		metadata.SortDeepestFirst(objs)
		for _, o := range objs {
			if err := s.store.DeleteObject(ctx, o.Handle); err != nil && !metadata.IsNotFoundError(err) {
				logger.WarnCtx(ctx, "Cannot drop record of removed storage",
					logger.Handle(o.Handle), logger.Err(err))
			}
		}
	}
	logger.InfoCtx(ctx, "Storage removed", logger.StorageID(id), logger.KeyCount, len(objs))

	if err := s.SendStoreRemoved(ctx, id); err != nil {
		logger.WarnCtx(ctx, "Storage removed but host not notified", logger.StorageID(id), logger.Err(err))
	}
	return nil
}
