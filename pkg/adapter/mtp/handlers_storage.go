package mtp

import (
	"context"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/internal/adapter/mtp/dataset"
	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/registry"
)

func handleGetStorageIDs(_ context.Context, t *txn) (result, error) {
	e := codec.NewEncoder(4 + 4*t.server.registry.Count())
	e.Uint32Array(t.server.registry.IDs())
	if err := t.sendData(e.Bytes()); err != nil {
		return result{}, err
	}
	return ok(), nil
}

// storageInfo builds the StorageInfo dataset of s. Capacity failures are
// logged and reported as zero.
func storageInfo(ctx context.Context, s *registry.Storage) *dataset.StorageInfo {
	info := &dataset.StorageInfo{
		StorageType:      types.StorageFixedRAM,
		FilesystemType:   types.FilesystemGenericHierarchical,
		AccessCapability: types.AccessReadWrite,
		FreeObjects:      0xFFFFFFFF,
		Description:      s.Description,
		VolumeID:         s.VolumeID,
	}
	if s.Removable {
		info.StorageType = types.StorageRemovableRAM
	}
	if s.ReadOnly {
		info.AccessCapability = types.AccessReadOnlyNoDelete
	}

	total, free, err := s.Capacity()
	if err != nil {
		logger.WarnCtx(ctx, "Cannot read storage capacity", logger.StorageID(s.ID), logger.Err(err))
	} else {
		info.MaxCapacity = total
		info.FreeSpace = free
	}
	return info
}

func handleGetStorageInfo(ctx context.Context, t *txn) (result, error) {
	s := t.server.registry.GetStorage(t.param(0))
	if s == nil {
		return respond(types.RespInvalidStorageID), nil
	}
	if err := t.sendData(storageInfo(ctx, s).Marshal()); err != nil {
		return result{}, err
	}
	return ok(), nil
}

// objectQuery resolves the (storage, format, parent) parameters shared by
// GetNumObjects and GetObjectHandles into a list of matching objects.
func (s *Server) objectQuery(ctx context.Context, storageID, format, parent uint32) ([]*metadata.Object, types.ResponseCode, error) {
	filter := metadata.Filter{Format: uint16(format)}
	if format > 0xFFFF {
		return nil, types.RespInvalidObjectFormatCode, nil
	}

	if storageID != types.AllStorages {
		if s.registry.GetStorage(storageID) == nil {
			return nil, types.RespInvalidStorageID, nil
		}
		filter.StorageID = storageID
	}

	switch parent {
	case 0:
		// every object in the storage
	case types.RootParent:
		filter.ByParent = true
	default:
		p, err := s.store.GetObject(ctx, parent)
		if err != nil {
			if metadata.IsNotFoundError(err) {
				return nil, types.RespInvalidParentObject, err
			}
			return nil, MapError(err), err
		}
		if !p.Folder || (filter.StorageID != 0 && p.StorageID != filter.StorageID) {
			return nil, types.RespInvalidParentObject, nil
		}
		filter.ByParent = true
		filter.Parent = parent
	}

	objs, err := s.store.ListObjects(ctx, filter)
	if err != nil {
		return nil, MapError(err), err
	}
	return objs, types.RespOK, nil
}

func handleGetNumObjects(ctx context.Context, t *txn) (result, error) {
	objs, code, err := t.server.objectQuery(ctx, t.param(0), t.param(1), t.param(2))
	if code != types.RespOK {
		return fail(code, err), nil
	}
	return ok(uint32(len(objs))), nil
}

func handleGetObjectHandles(ctx context.Context, t *txn) (result, error) {
	objs, code, err := t.server.objectQuery(ctx, t.param(0), t.param(1), t.param(2))
	if code != types.RespOK {
		return fail(code, err), nil
	}
	e := codec.NewEncoder(4 + 4*len(objs))
	e.Uint32Array(metadata.Handles(objs))
	if err := t.sendData(e.Bytes()); err != nil {
		return result{}, err
	}
	return ok(), nil
}
