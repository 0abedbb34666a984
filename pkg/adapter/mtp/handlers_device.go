package mtp

import (
	"context"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/internal/adapter/mtp/dataset"
	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
	"github.com/marmos91/mtpd/internal/logger"
)

// deviceInfo builds the DeviceInfo dataset from the dispatch table, the
// event list and the device property table.
func (s *Server) deviceInfo() *dataset.DeviceInfo {
	desc := s.config.VendorExtensionDesc
	if desc == "" {
		desc = types.VendorExtensionDesc
	}
	return &dataset.DeviceInfo{
		StandardVersion:        types.StandardVersion,
		VendorExtensionID:      types.VendorExtensionID,
		VendorExtensionVersion: types.VendorExtensionVersion,
		VendorExtensionDesc:    desc,
		Operations:             SupportedOperations(),
		Events:                 supportedEvents,
		DeviceProperties:       s.props.codes(),
		PlaybackFormats:        types.PlaybackFormats(),
		Manufacturer:           s.config.Manufacturer,
		Model:                  s.config.Model,
		DeviceVersion:          s.config.DeviceVersion,
		SerialNumber:           s.config.SerialNumber,
	}
}

func handleGetDeviceInfo(_ context.Context, t *txn) (result, error) {
	if err := t.sendData(t.server.deviceInfo().Marshal()); err != nil {
		return result{}, err
	}
	return ok(), nil
}

func handleOpenSession(ctx context.Context, t *txn) (result, error) {
	id := t.param(0)
	if id == 0 {
		return respond(types.RespInvalidParameter), nil
	}
	if !t.server.openSession(id) {
		return respond(types.RespSessionAlreadyOpen, t.server.SessionID()), nil
	}
	logger.InfoCtx(ctx, "MTP session opened", logger.SessionID(id))
	return ok(), nil
}

func handleCloseSession(ctx context.Context, t *txn) (result, error) {
	t.server.closeSession(ctx)
	return ok(), nil
}

func handleGetDevicePropDesc(_ context.Context, t *txn) (result, error) {
	desc, err := t.server.props.desc(types.DeviceProperty(t.param(0)))
	if err != nil {
		return fail(devicePropResponse(err), err), nil
	}
	payload, err := desc.Marshal()
	if err != nil {
		return fail(types.RespGeneralError, err), nil
	}
	if err := t.sendData(payload); err != nil {
		return result{}, err
	}
	return ok(), nil
}

func handleGetDevicePropValue(_ context.Context, t *txn) (result, error) {
	v, err := t.server.props.get(types.DeviceProperty(t.param(0)))
	if err != nil {
		return fail(devicePropResponse(err), err), nil
	}
	e := codec.NewEncoder(16)
	if err := e.Value(v); err != nil {
		return fail(types.RespGeneralError, err), nil
	}
	if err := t.sendData(e.Bytes()); err != nil {
		return result{}, err
	}
	return ok(), nil
}

func handleSetDevicePropValue(ctx context.Context, t *txn) (result, error) {
	code := types.DeviceProperty(t.param(0))
	if _, err := t.server.props.desc(code); err != nil {
		return fail(devicePropResponse(err), err), nil
	}

	raw, err := t.receiveData()
	if err != nil {
		if isFatal(err) {
			return result{}, err
		}
		return fail(types.RespInvalidDevicePropValue, err), nil
	}
	if err := t.server.props.set(code, raw); err != nil {
		return fail(devicePropResponse(err), err), nil
	}
	logger.DebugCtx(ctx, "Device property set", logger.Property(code.String()))
	return ok(), nil
}

func handleResetDevicePropValue(_ context.Context, t *txn) (result, error) {
	if err := t.server.props.reset(t.param(0)); err != nil {
		return fail(devicePropResponse(err), err), nil
	}
	return ok(), nil
}
