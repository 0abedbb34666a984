package mtp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/internal/adapter/mtp/dataset"
	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/pkg/metadata"
)

// ============================================================================
// Object Property Table
// ============================================================================

// objectProp describes one object property and how to read it from a
// record.
type objectProp struct {
	code     types.ObjectProperty
	dataType types.DataType
	writable bool
	form     dataset.Form
	get      func(s *Server, o *metadata.Object) codec.Value
}

var dateForm = dataset.Form{Kind: types.FormDate}

// objectProps lists the properties supported for every format, in the order
// GetObjectPropsSupported reports them.
var objectProps = []*objectProp{
	{
		code:     types.PropStorageID,
		dataType: types.TypeUint32,
		get:      func(_ *Server, o *metadata.Object) codec.Value { return codec.Uint32Value(o.StorageID) },
	},
	{
		code:     types.PropObjectFormat,
		dataType: types.TypeUint16,
		get:      func(_ *Server, o *metadata.Object) codec.Value { return codec.Uint16Value(o.Format) },
	},
	{
		code:     types.PropProtectionStatus,
		dataType: types.TypeUint16,
		form:     dataset.EnumForm(codec.Uint16Value(types.ProtectionNone), codec.Uint16Value(types.ProtectionReadOnly)),
		get: func(s *Server, o *metadata.Object) codec.Value {
			if s.readOnly(o) {
				return codec.Uint16Value(types.ProtectionReadOnly)
			}
			return codec.Uint16Value(types.ProtectionNone)
		},
	},
	{
		code:     types.PropObjectSize,
		dataType: types.TypeUint64,
		get:      func(_ *Server, o *metadata.Object) codec.Value { return codec.Uint64Value(o.Size) },
	},
	{
		code:     types.PropObjectFileName,
		dataType: types.TypeString,
		writable: true,
		get:      func(_ *Server, o *metadata.Object) codec.Value { return codec.StringValue(o.Name) },
	},
	{
		code:     types.PropDateCreated,
		dataType: types.TypeString,
		form:     dateForm,
		get: func(_ *Server, o *metadata.Object) codec.Value {
			return codec.StringValue(dataset.FormatDateTime(o.Created))
		},
	},
	{
		code:     types.PropDateModified,
		dataType: types.TypeString,
		form:     dateForm,
		get: func(_ *Server, o *metadata.Object) codec.Value {
			return codec.StringValue(dataset.FormatDateTime(o.Modified))
		},
	},
	{
		code:     types.PropParentObject,
		dataType: types.TypeUint32,
		get:      func(_ *Server, o *metadata.Object) codec.Value { return codec.Uint32Value(o.Parent) },
	},
	{
		code:     types.PropPersistentUID,
		dataType: types.TypeUint128,
		get: func(_ *Server, o *metadata.Object) codec.Value {
			return codec.Uint128Value(binary.BigEndian.Uint64(o.PUID[:8]), binary.BigEndian.Uint64(o.PUID[8:]))
		},
	},
	{
		code:     types.PropName,
		dataType: types.TypeString,
		writable: true,
		get:      func(_ *Server, o *metadata.Object) codec.Value { return codec.StringValue(o.Name) },
	},
	{
		code:     types.PropDisplayName,
		dataType: types.TypeString,
		get:      func(_ *Server, o *metadata.Object) codec.Value { return codec.StringValue(o.Name) },
	},
	{
		code:     types.PropDateAdded,
		dataType: types.TypeString,
		form:     dateForm,
		get: func(_ *Server, o *metadata.Object) codec.Value {
			return codec.StringValue(dataset.FormatDateTime(o.Added))
		},
	},
}

var objectPropIndex = func() map[types.ObjectProperty]*objectProp {
	m := make(map[types.ObjectProperty]*objectProp, len(objectProps))
	for _, p := range objectProps {
		m[p.code] = p
	}
	return m
}()

// lookupObjectProp returns the table entry for a 32-bit property parameter.
func lookupObjectProp(code uint32) (*objectProp, bool) {
	if code > 0xFFFF {
		return nil, false
	}
	p, ok := objectPropIndex[types.ObjectProperty(code)]
	return p, ok
}

func (p *objectProp) desc() *dataset.ObjectPropDesc {
	getSet := types.PropGet
	if p.writable {
		getSet = types.PropGetSet
	}
	return &dataset.ObjectPropDesc{
		Code:    p.code,
		Type:    p.dataType,
		GetSet:  getSet,
		Default: codec.Value{Type: p.dataType},
		Form:    p.form,
	}
}

// ============================================================================
// Property Writes
// ============================================================================

var (
	errPropReadOnly  = errors.New("object property is read-only")
	errNameCollision = errors.New("name already in use")
)

// setObjectProp applies a decoded value to obj.
func (s *Server) setObjectProp(ctx context.Context, obj *metadata.Object, p *objectProp, v codec.Value) result {
	if !p.writable {
		return fail(types.RespAccessDenied, fmt.Errorf("%w: %s", errPropReadOnly, p.code))
	}
	if v.Type != p.dataType {
		return fail(types.RespInvalidObjectPropFormat, fmt.Errorf("%s expects %s, got %s", p.code, p.dataType, v.Type))
	}
	if s.readOnly(obj) {
		return respond(types.RespStoreReadOnly)
	}

	switch p.code {
	case types.PropObjectFileName, types.PropName:
		if err := s.rename(ctx, obj, v.Str); err != nil {
			switch {
			case errors.Is(err, errInvalidFilename), errors.Is(err, errNameCollision):
				return fail(types.RespInvalidObjectPropValue, err)
			default:
				return failErr(err)
			}
		}
		return ok()
	}
	return fail(types.RespAccessDenied, fmt.Errorf("%w: %s", errPropReadOnly, p.code))
}

// rename moves obj to a new name in the same folder. The record is updated
// first and restored if the filesystem rename fails.
func (s *Server) rename(ctx context.Context, obj *metadata.Object, name string) error {
	if name == obj.Name {
		return nil
	}
	if err := validFilename(name); err != nil {
		return err
	}

	oldPath := obj.Path
	newPath := filepath.Join(filepath.Dir(oldPath), name)
	if _, err := s.store.LookupPath(ctx, newPath); err == nil {
		return fmt.Errorf("%w: %s", errNameCollision, newPath)
	}
	if _, err := os.Lstat(newPath); err == nil {
		return fmt.Errorf("%w: %s", errNameCollision, newPath)
	}

	oldName := obj.Name
	obj.Name = name
	obj.Path = newPath
	if err := s.store.UpdateObject(ctx, obj); err != nil {
		return err
	}

	s.echo.mark(oldPath)
	s.echo.mark(newPath)
	if err := os.Rename(oldPath, newPath); err != nil {
		obj.Name = oldName
		obj.Path = oldPath
		if rerr := s.store.UpdateObject(ctx, obj); rerr != nil {
			logger.ErrorCtx(ctx, "Failed to restore record after rename failure",
				logger.Handle(obj.Handle), logger.Path(oldPath), logger.Err(rerr))
		}
		return err
	}

	logger.InfoCtx(ctx, "Object renamed",
		logger.Handle(obj.Handle), logger.Path(newPath), "old_path", oldPath)
	return nil
}

// ============================================================================
// Handlers
// ============================================================================

func handleGetObjectPropsSupported(_ context.Context, t *txn) (result, error) {
	if t.param(0) > 0xFFFF {
		return respond(types.RespInvalidObjectFormatCode), nil
	}
	codes := make([]uint16, len(objectProps))
	for i, p := range objectProps {
		codes[i] = uint16(p.code)
	}
	e := codec.NewEncoder(4 + 2*len(codes))
	e.Uint16Array(codes)
	if err := t.sendData(e.Bytes()); err != nil {
		return result{}, err
	}
	return ok(), nil
}

func handleGetObjectPropDesc(_ context.Context, t *txn) (result, error) {
	p, found := lookupObjectProp(t.param(0))
	if !found {
		return respond(types.RespInvalidObjectPropCode), nil
	}
	if t.param(1) > 0xFFFF {
		return respond(types.RespInvalidObjectFormatCode), nil
	}
	payload, err := p.desc().Marshal()
	if err != nil {
		return fail(types.RespGeneralError, err), nil
	}
	if err := t.sendData(payload); err != nil {
		return result{}, err
	}
	return ok(), nil
}

func handleGetObjectPropValue(ctx context.Context, t *txn) (result, error) {
	obj, res, found := t.server.lookup(ctx, t.param(0))
	if !found {
		return res, nil
	}
	p, known := lookupObjectProp(t.param(1))
	if !known {
		return respond(types.RespInvalidObjectPropCode), nil
	}

	e := codec.NewEncoder(32)
	if err := e.Value(p.get(t.server, obj)); err != nil {
		return fail(types.RespGeneralError, err), nil
	}
	if err := t.sendData(e.Bytes()); err != nil {
		return result{}, err
	}
	return ok(), nil
}

func handleSetObjectPropValue(ctx context.Context, t *txn) (result, error) {
	obj, res, found := t.server.lookup(ctx, t.param(0))
	if !found {
		return res, nil
	}
	p, known := lookupObjectProp(t.param(1))
	if !known {
		return respond(types.RespInvalidObjectPropCode), nil
	}

	raw, err := t.receiveData()
	if err != nil {
		if isFatal(err) {
			return result{}, err
		}
		return failErr(err), nil
	}
	d := codec.NewDecoder(raw)
	v := d.Value(p.dataType)
	if d.Err() != nil || d.Remaining() != 0 {
		return fail(types.RespInvalidObjectPropFormat, fmt.Errorf("%s value of %d bytes", p.dataType, len(raw))), nil
	}
	return t.server.setObjectProp(ctx, obj, p, v), nil
}

// propListTargets selects the objects a GetObjectPropList request covers.
func (s *Server) propListTargets(ctx context.Context, handle uint32, format uint16, depth uint32) ([]*metadata.Object, result, bool) {
	switch {
	case handle == metadata.AllHandle:
		objs, err := s.store.ListObjects(ctx, metadata.Filter{Format: format})
		if err != nil {
			return nil, failErr(err), false
		}
		return objs, result{}, true

	case handle == metadata.NoHandle:
		if depth == 0 {
			return nil, result{}, true
		}
		objs, err := s.store.ListObjects(ctx, metadata.Filter{Format: format, ByParent: true})
		if err != nil {
			return nil, failErr(err), false
		}
		return objs, result{}, true
	}

	obj, res, found := s.lookup(ctx, handle)
	if !found {
		return nil, res, false
	}
	if depth == 0 {
		if format != 0 && obj.Format != format {
			return nil, result{}, true
		}
		return []*metadata.Object{obj}, result{}, true
	}
	objs, err := s.store.ListObjects(ctx, metadata.Filter{
		StorageID: obj.StorageID,
		Format:    format,
		ByParent:  true,
		Parent:    obj.Handle,
	})
	if err != nil {
		return nil, failErr(err), false
	}
	return objs, result{}, true
}

func handleGetObjectPropList(ctx context.Context, t *txn) (result, error) {
	handle, format, prop, group, depth := t.param(0), t.param(1), t.param(2), t.param(3), t.param(4)

	if format > 0xFFFF {
		return respond(types.RespInvalidObjectFormatCode), nil
	}
	if prop == 0 || group != 0 {
		return respond(types.RespSpecificationByGroupUnsupported), nil
	}
	if depth > 1 {
		return respond(types.RespSpecificationByDepthUnsupported), nil
	}

	props := objectProps
	if prop != types.AllObjects {
		p, known := lookupObjectProp(prop)
		if !known {
			return respond(types.RespInvalidObjectPropCode), nil
		}
		props = []*objectProp{p}
	}

	objs, res, resolved := t.server.propListTargets(ctx, handle, uint16(format), depth)
	if !resolved {
		return res, nil
	}

	entries := make([]dataset.PropListEntry, 0, len(objs)*len(props))
	for _, o := range objs {
		for _, p := range props {
			entries = append(entries, dataset.PropListEntry{
				Handle:   o.Handle,
				Property: p.code,
				Value:    p.get(t.server, o),
			})
		}
	}
	payload, err := dataset.MarshalPropList(entries)
	if err != nil {
		return fail(types.RespGeneralError, err), nil
	}
	if err := t.sendData(payload); err != nil {
		return result{}, err
	}
	return ok(), nil
}

func handleSetObjectPropList(ctx context.Context, t *txn) (result, error) {
	raw, err := t.receiveData()
	if err != nil {
		if isFatal(err) {
			return result{}, err
		}
		return failErr(err), nil
	}
	entries, err := dataset.UnmarshalPropList(raw)
	if err != nil {
		return fail(types.RespInvalidDataset, err), nil
	}

	for i, entry := range entries {
		res := t.server.applyPropListEntry(ctx, entry)
		if !res.code.IsOK() {
			res.params = []uint32{uint32(i)}
			return res, nil
		}
	}
	return ok(), nil
}

func (s *Server) applyPropListEntry(ctx context.Context, entry dataset.PropListEntry) result {
	obj, res, found := s.lookup(ctx, entry.Handle)
	if !found {
		return res
	}
	p, known := objectPropIndex[entry.Property]
	if !known {
		return respond(types.RespInvalidObjectPropCode)
	}
	return s.setObjectProp(ctx, obj, p, entry.Value)
}

func handleGetObjectReferences(ctx context.Context, t *txn) (result, error) {
	s := t.server
	obj, res, found := s.lookup(ctx, t.param(0))
	if !found {
		return res, nil
	}
	refs, err := s.store.GetReferences(ctx, obj.Handle)
	if err != nil {
		return failErr(err), nil
	}

	live := refs[:0]
	for _, r := range refs {
		if _, err := s.store.GetObject(ctx, r); err == nil {
			live = append(live, r)
		}
	}

	e := codec.NewEncoder(4 + 4*len(live))
	e.Uint32Array(live)
	if err := t.sendData(e.Bytes()); err != nil {
		return result{}, err
	}
	return ok(), nil
}

func handleSetObjectReferences(ctx context.Context, t *txn) (result, error) {
	s := t.server
	obj, res, found := s.lookup(ctx, t.param(0))
	if !found {
		return res, nil
	}

	raw, err := t.receiveData()
	if err != nil {
		if isFatal(err) {
			return result{}, err
		}
		return failErr(err), nil
	}
	d := codec.NewDecoder(raw)
	refs := d.Uint32Array()
	if d.Err() != nil || d.Remaining() != 0 {
		return fail(types.RespInvalidDataset, fmt.Errorf("reference array of %d bytes", len(raw))), nil
	}

	for _, r := range refs {
		if !metadata.ValidHandle(r) {
			return respond(types.RespInvalidObjectReference), nil
		}
		if _, err := s.store.GetObject(ctx, r); err != nil {
			if metadata.IsNotFoundError(err) {
				return fail(types.RespInvalidObjectReference, err), nil
			}
			return failErr(err), nil
		}
	}
	if err := s.store.SetReferences(ctx, obj.Handle, refs); err != nil {
		return failErr(err), nil
	}
	logger.DebugCtx(ctx, "Object references set", logger.Handle(obj.Handle), logger.KeyCount, len(refs))
	return ok(), nil
}
