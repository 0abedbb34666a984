package mtp

import (
	"errors"
	"sync"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/internal/adapter/mtp/dataset"
	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
)

var (
	errDevicePropNotSupported = errors.New("device property not supported")
	errDevicePropReadOnly     = errors.New("device property is read-only")
	errDevicePropValue        = errors.New("invalid device property value")
)

// deviceProp is one entry of the device property table.
type deviceProp struct {
	code     types.DeviceProperty
	dataType types.DataType
	writable bool
	def      codec.Value
	current  codec.Value
	form     dataset.Form
}

func (p *deviceProp) desc() *dataset.DevicePropDesc {
	getSet := types.PropGet
	if p.writable {
		getSet = types.PropGetSet
	}
	return &dataset.DevicePropDesc{
		Code:    p.code,
		Type:    p.dataType,
		GetSet:  getSet,
		Default: p.def,
		Current: p.current,
		Form:    p.form,
	}
}

// devicePropTable holds the device properties of one server in memory.
type devicePropTable struct {
	mu    sync.Mutex
	props map[types.DeviceProperty]*deviceProp
	order []types.DeviceProperty
}

func newDevicePropTable(cfg ServerConfig) *devicePropTable {
	t := &devicePropTable{props: make(map[types.DeviceProperty]*deviceProp)}
	t.add(&deviceProp{
		code:     types.DevPropSynchronizationPartner,
		dataType: types.TypeString,
		writable: true,
		def:      codec.StringValue(""),
	})
	t.add(&deviceProp{
		code:     types.DevPropDeviceFriendlyName,
		dataType: types.TypeString,
		writable: true,
		def:      codec.StringValue(cfg.FriendlyName),
	})
	t.add(&deviceProp{
		code:     types.DevPropBatteryLevel,
		dataType: types.TypeUint8,
		def:      codec.Uint8Value(100),
		form:     dataset.RangeForm(codec.Uint8Value(0), codec.Uint8Value(100), codec.Uint8Value(1)),
	})
	t.add(&deviceProp{
		code:     types.DevPropPerceivedDeviceType,
		dataType: types.TypeUint32,
		def:      codec.Uint32Value(cfg.PerceivedDeviceType),
	})
	return t
}

func (t *devicePropTable) add(p *deviceProp) {
	p.current = p.def
	t.props[p.code] = p
	t.order = append(t.order, p.code)
}

// codes returns the supported property codes in table order.
func (t *devicePropTable) codes() []types.DeviceProperty {
	return t.order
}

func (t *devicePropTable) desc(code types.DeviceProperty) (*dataset.DevicePropDesc, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.props[code]
	if !ok {
		return nil, errDevicePropNotSupported
	}
	return p.desc(), nil
}

func (t *devicePropTable) get(code types.DeviceProperty) (codec.Value, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.props[code]
	if !ok {
		return codec.Value{}, errDevicePropNotSupported
	}
	return p.current, nil
}

// set decodes raw as the property's type and stores it.
func (t *devicePropTable) set(code types.DeviceProperty, raw []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.props[code]
	if !ok {
		return errDevicePropNotSupported
	}
	if !p.writable {
		return errDevicePropReadOnly
	}

	d := codec.NewDecoder(raw)
	v := d.Value(p.dataType)
	if d.Err() != nil || d.Remaining() != 0 || !p.form.Allows(v) {
		return errDevicePropValue
	}
	p.current = v
	return nil
}

// reset restores one property, or all of them for AllDeviceProperties.
func (t *devicePropTable) reset(code uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if code == types.AllDeviceProperties {
		for _, p := range t.props {
			p.current = p.def
		}
		return nil
	}
	p, ok := t.props[types.DeviceProperty(code)]
	if !ok || code > 0xFFFF {
		return errDevicePropNotSupported
	}
	p.current = p.def
	return nil
}

// devicePropResponse maps table errors to response codes.
func devicePropResponse(err error) types.ResponseCode {
	switch {
	case err == nil:
		return types.RespOK
	case errors.Is(err, errDevicePropNotSupported):
		return types.RespDevicePropNotSupported
	case errors.Is(err, errDevicePropReadOnly):
		return types.RespAccessDenied
	case errors.Is(err, errDevicePropValue):
		return types.RespInvalidDevicePropValue
	default:
		return MapError(err)
	}
}
