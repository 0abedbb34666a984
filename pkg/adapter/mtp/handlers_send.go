package mtp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/internal/adapter/mtp/dataset"
	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/registry"
)

var errInvalidFilename = errors.New("invalid file name")

// validFilename rejects names that would escape or alias the parent folder.
func validFilename(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsRune(name, '/') || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", errInvalidFilename, name)
	}
	return nil
}

// destination resolves the storage and parent folder named in a
// SendObjectInfo request.
func (s *Server) destination(ctx context.Context, storageID, parent uint32) (*registry.Storage, string, uint32, result, bool) {
	var st *registry.Storage
	if storageID == 0 {
		st = s.registry.First()
	} else {
		st = s.registry.GetStorage(storageID)
	}
	if st == nil {
		return nil, "", 0, respond(types.RespInvalidStorageID), false
	}
	if st.ReadOnly {
		return nil, "", 0, respond(types.RespStoreReadOnly), false
	}

	if parent == 0 || parent == types.RootParent {
		return st, st.Path, 0, result{}, true
	}
	p, err := s.store.GetObject(ctx, parent)
	if err != nil {
		if metadata.IsNotFoundError(err) {
			return nil, "", 0, fail(types.RespInvalidParentObject, err), false
		}
		return nil, "", 0, failErr(err), false
	}
	if !p.Folder || p.StorageID != st.ID {
		return nil, "", 0, respond(types.RespInvalidParentObject), false
	}
	return st, p.Path, p.Handle, result{}, true
}

// applyOwnership sets the configured mode and group on a created path.
func (s *Server) applyOwnership(ctx context.Context, path string, mode os.FileMode) {
	if err := os.Chmod(path, mode); err != nil {
		logger.WarnCtx(ctx, "Failed to set mode", logger.Path(path), logger.Err(err))
	}
	if s.gid >= 0 {
		if err := os.Chown(path, -1, s.gid); err != nil {
			logger.WarnCtx(ctx, "Failed to set group", logger.Path(path), logger.Err(err))
		}
	}
}

func handleSendObjectInfo(ctx context.Context, t *txn) (result, error) {
	s := t.server
	st, dir, parent, res, resolved := s.destination(ctx, t.param(0), t.param(1))
	if !resolved {
		return res, nil
	}

	raw, err := t.receiveData()
	if err != nil {
		if isFatal(err) {
			return result{}, err
		}
		return failErr(err), nil
	}
	info, err := dataset.UnmarshalObjectInfo(raw)
	if err != nil {
		return fail(types.RespInvalidDataset, err), nil
	}
	if err := validFilename(info.Filename); err != nil {
		return fail(types.RespInvalidDataset, err), nil
	}

	// Announcing the pending object's name again replaces that
	// announcement; any other record at path is a collision.
	path := filepath.Join(dir, info.Filename)
	reannounced := false
	if existing, err := s.store.LookupPath(ctx, path); err == nil {
		if existing.Handle != s.pendingHandle() {
			return fail(types.RespGeneralError, fmt.Errorf("object already exists at %s", path)), nil
		}
		reannounced = true
	}
	if _, err := os.Lstat(path); err == nil {
		return fail(types.RespGeneralError, fmt.Errorf("file already exists at %s", path)), nil
	}

	folder := info.Format.IsAssociation()
	size := uint64(info.CompressedSize)
	if !folder && info.CompressedSize != 0xFFFFFFFF {
		if _, free, err := st.Capacity(); err == nil && size > free {
			return fail(types.RespStoreFull, fmt.Errorf("%d bytes requested, %d free", size, free)), nil
		}
	}

	now := time.Now()
	obj := &metadata.Object{
		StorageID: st.ID,
		Parent:    parent,
		Format:    uint16(info.Format),
		Folder:    folder,
		Name:      info.Filename,
		Path:      path,
		Keywords:  info.Keywords,
		Created:   orNow(info.DateCreated, now),
		Modified:  orNow(info.DateModified, now),
	}

	if reannounced {
		if prev := s.takePending(); prev != nil {
			s.abandon(ctx, prev)
		}
	}

	if folder {
		obj.AssociationType = types.AssociationGenericFolder
		s.echo.mark(path)
		if err := os.Mkdir(path, s.config.DirMode); err != nil {
			return failErr(err), nil
		}
		s.applyOwnership(ctx, path, s.config.DirMode)
		handle, err := s.store.CreateObject(ctx, obj)
		if err != nil {
			_ = os.Remove(path)
			return failErr(err), nil
		}
		logger.InfoCtx(ctx, "Folder created", logger.Handle(handle), logger.Path(path))
		return ok(st.ID, parent, handle), nil
	}

	if info.CompressedSize != 0xFFFFFFFF {
		obj.Size = size
	}
	handle, err := s.store.CreateObject(ctx, obj)
	if err != nil {
		return failErr(err), nil
	}

	prev := s.setPending(&pendingSend{
		handle:       handle,
		storageID:    st.ID,
		parent:       parent,
		format:       info.Format,
		path:         path,
		expectedSize: size,
	})
	if prev != nil {
		s.abandon(ctx, prev)
	}

	logger.DebugCtx(ctx, "Object announced",
		logger.Handle(handle), logger.Path(path), logger.Format(info.Format.String()), logger.Size(size))
	return ok(st.ID, parent, handle), nil
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}

func handleSendObject(ctx context.Context, t *txn) (result, error) {
	s := t.server
	p := s.takePending()
	if p == nil {
		return respond(types.RespNoValidObjectInfo), nil
	}

	s.echo.mark(p.path)
	f, err := os.OpenFile(p.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.config.FileMode)
	if err != nil {
		s.abandon(ctx, p)
		return failErr(err), nil
	}
	s.applyOwnership(ctx, p.path, s.config.FileMode)

	n, err := t.receiveStream(f)
	if err == nil {
		err = f.Close()
	} else {
		_ = f.Close()
	}
	if err != nil {
		s.discardSend(ctx, p)
		if isFatal(err) {
			return result{}, err
		}
		return fail(sendObjectResponse(err), err), nil
	}

	obj, err := s.store.GetObject(ctx, p.handle)
	if err != nil {
		s.discardSend(ctx, p)
		return failErr(err), nil
	}
	obj.Size = uint64(n)
	obj.Format = uint16(p.format)
	if fi, err := os.Stat(p.path); err == nil {
		obj.Size = uint64(fi.Size())
		obj.Modified = fi.ModTime()
	}
	if err := s.store.UpdateObject(ctx, obj); err != nil {
		s.discardSend(ctx, p)
		return failErr(err), nil
	}

	if p.expectedSize != 0xFFFFFFFF && p.expectedSize != obj.Size {
		logger.DebugCtx(ctx, "Received size differs from announced size",
			logger.Handle(p.handle), logger.Size(obj.Size), "announced", p.expectedSize)
	}
	logger.InfoCtx(ctx, "Object received",
		logger.Handle(p.handle), logger.Path(p.path), logger.Size(obj.Size))
	return ok(), nil
}

// discardSend removes the partial file and the record of a failed send.
func (s *Server) discardSend(ctx context.Context, p *pendingSend) {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnCtx(ctx, "Failed to remove partial file", logger.Path(p.path), logger.Err(err))
	}
	s.abandon(ctx, p)
}

// sendObjectResponse maps a failed SendObject data phase. Framing problems
// mean the host's data never arrived whole.
func sendObjectResponse(err error) types.ResponseCode {
	var sinkErr *codec.SinkError
	switch {
	case errors.Is(err, codec.ErrUnexpectedContainer),
		errors.Is(err, codec.ErrTransactionMismatch),
		errors.Is(err, codec.ErrMalformedPacket),
		errors.Is(err, codec.ErrLengthMismatch):
		return types.RespIncompleteTransfer
	case errors.As(err, &sinkErr):
		return MapError(sinkErr.Err)
	default:
		return MapError(err)
	}
}
