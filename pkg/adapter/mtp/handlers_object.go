package mtp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/internal/adapter/mtp/dataset"
	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/pkg/metadata"
	mderrors "github.com/marmos91/mtpd/pkg/metadata/errors"
)

// lookup fetches the record for handle. Reserved and unknown handles yield
// InvalidObjectHandle.
func (s *Server) lookup(ctx context.Context, handle uint32) (*metadata.Object, result, bool) {
	if !metadata.ValidHandle(handle) {
		return nil, respond(types.RespInvalidObjectHandle), false
	}
	obj, err := s.store.GetObject(ctx, handle)
	if err != nil {
		return nil, failErr(err), false
	}
	return obj, result{}, true
}

// readOnly reports whether obj lives on a read-only storage.
func (s *Server) readOnly(obj *metadata.Object) bool {
	st := s.registry.GetStorage(obj.StorageID)
	return st != nil && st.ReadOnly
}

// objectInfo builds the ObjectInfo dataset of obj.
func (s *Server) objectInfo(obj *metadata.Object) *dataset.ObjectInfo {
	info := &dataset.ObjectInfo{
		StorageID:       obj.StorageID,
		Format:          types.ObjectFormat(obj.Format),
		Parent:          obj.Parent,
		AssociationType: obj.AssociationType,
		Filename:        obj.Name,
		DateCreated:     obj.Created,
		DateModified:    obj.Modified,
		Keywords:        obj.Keywords,
	}
	if obj.Size >= 0xFFFFFFFF {
		info.CompressedSize = 0xFFFFFFFF
	} else {
		info.CompressedSize = uint32(obj.Size)
	}
	if s.readOnly(obj) {
		info.Protection = types.ProtectionReadOnly
	}
	return info
}

func handleGetObjectInfo(ctx context.Context, t *txn) (result, error) {
	obj, res, found := t.server.lookup(ctx, t.param(0))
	if !found {
		return res, nil
	}
	if err := t.sendData(t.server.objectInfo(obj).Marshal()); err != nil {
		return result{}, err
	}
	return ok(), nil
}

// openObject opens the file behind a non-folder handle.
func (s *Server) openObject(ctx context.Context, handle uint32) (*os.File, int64, result, bool) {
	obj, res, found := s.lookup(ctx, handle)
	if !found {
		return nil, 0, res, false
	}
	if obj.Folder {
		return nil, 0, fail(types.RespInvalidObjectHandle, fmt.Errorf("object %d is a folder", handle)), false
	}

	f, err := os.Open(obj.Path)
	if err != nil {
		return nil, 0, failErr(err), false
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, failErr(err), false
	}
	return f, fi.Size(), result{}, true
}

// streamObject sends size bytes of f. A source failure is answered with
// IncompleteTransfer; the data container itself stays well formed.
func (t *txn) streamObject(ctx context.Context, f io.Reader, size int64, params ...uint32) (result, error) {
	err := t.sendStream(f, size)
	var srcErr *codec.SourceError
	switch {
	case err == nil:
		return ok(params...), nil
	case errors.As(err, &srcErr):
		logger.WarnCtx(ctx, "Object read failed during transfer",
			logger.KeyBytes, srcErr.Written, logger.Err(srcErr.Err))
		return fail(types.RespIncompleteTransfer, err), nil
	default:
		return result{}, err
	}
}

func handleGetObject(ctx context.Context, t *txn) (result, error) {
	f, size, res, opened := t.server.openObject(ctx, t.param(0))
	if !opened {
		return res, nil
	}
	defer f.Close()
	return t.streamObject(ctx, f, size)
}

func handleGetPartialObject(ctx context.Context, t *txn) (result, error) {
	f, size, res, opened := t.server.openObject(ctx, t.param(0))
	if !opened {
		return res, nil
	}
	defer f.Close()

	offset := int64(t.param(1))
	if offset > size {
		return fail(types.RespInvalidParameter, fmt.Errorf("offset %d beyond size %d", offset, size)), nil
	}
	length := min(int64(t.param(2)), size-offset)

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return failErr(err), nil
	}
	return t.streamObject(ctx, io.LimitReader(f, length), length, uint32(length))
}

func handleDeleteObject(ctx context.Context, t *txn) (result, error) {
	handle := t.param(0)
	format := t.param(1)
	if format > 0xFFFF {
		return respond(types.RespInvalidObjectFormatCode), nil
	}
	s := t.server

	if handle == metadata.AllHandle {
		return s.deleteAll(ctx, uint16(format)), nil
	}

	obj, res, found := s.lookup(ctx, handle)
	if !found {
		return res, nil
	}
	if s.readOnly(obj) {
		return respond(types.RespStoreReadOnly), nil
	}

	descendants, err := metadata.Descendants(ctx, s.store, handle)
	if err != nil {
		return failErr(err), nil
	}

	for _, d := range descendants {
		_ = s.deleteOne(ctx, d)
	}
	rootErr := s.deleteOne(ctx, obj)

	remaining := s.countPresent(ctx, descendants)
	switch {
	case remaining > 0:
		return partialDeletion(remaining), nil
	case rootErr != nil:
		return failErr(rootErr), nil
	}
	return ok(), nil
}

// deleteAll removes every object of every storage, optionally only those of
// one format, deepest first.
func (s *Server) deleteAll(ctx context.Context, format uint16) result {
	objs, err := s.store.ListObjects(ctx, metadata.Filter{Format: format})
	if err != nil {
		return failErr(err)
	}
	metadata.SortDeepestFirst(objs)

	var targets []*metadata.Object
	for _, o := range objs {
		if s.readOnly(o) {
			continue
		}
		targets = append(targets, o)
	}
	for _, o := range targets {
		_ = s.deleteOne(ctx, o)
	}

	remaining := s.countPresent(ctx, targets)
	logger.InfoCtx(ctx, "Bulk delete finished",
		logger.KeyCount, len(targets)-int(remaining), "remaining", remaining)
	if remaining > 0 {
		return partialDeletion(remaining)
	}
	return ok()
}

// deleteOne removes the file or folder of obj and then its record. A folder
// that still has children in the store is left alone. When the file is gone
// but the record cannot be dropped, the path is handed back to the watcher,
// whose removal handling (or the next index run) drops the stale record.
func (s *Server) deleteOne(ctx context.Context, obj *metadata.Object) error {
	if obj.Folder {
		children, err := s.store.ListObjects(ctx, metadata.Filter{
			StorageID: obj.StorageID,
			ByParent:  true,
			Parent:    obj.Handle,
		})
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return mderrors.NewNotEmptyError(obj.Handle)
		}
	}

	s.echo.mark(obj.Path)
	if err := os.Remove(obj.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnCtx(ctx, "Failed to remove object from disk",
			logger.Handle(obj.Handle), logger.Path(obj.Path), logger.Err(err))
		return err
	}
	if err := s.store.DeleteObject(ctx, obj.Handle); err != nil && !metadata.IsNotFoundError(err) {
		logger.WarnCtx(ctx, "Failed to remove object record",
			logger.Handle(obj.Handle), logger.Err(err))
		s.echo.forget(obj.Path)
		return err
	}
	logger.DebugCtx(ctx, "Object deleted", logger.Handle(obj.Handle), logger.Path(obj.Path))
	return nil
}

// countPresent returns how many of objs still have a record.
func (s *Server) countPresent(ctx context.Context, objs []*metadata.Object) uint32 {
	var n uint32
	for _, o := range objs {
		if _, err := s.store.GetObject(ctx, o.Handle); err == nil {
			n++
		}
	}
	return n
}

// partialDeletion reports a delete that left remaining objects behind.
func partialDeletion(remaining uint32) result {
	return result{
		code:   types.RespPartialDeletion,
		params: []uint32{remaining},
		err:    fmt.Errorf("%d objects not deleted", remaining),
	}
}
