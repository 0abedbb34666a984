package dataset

import (
	"fmt"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
)

// Form constrains the values a property accepts.
type Form struct {
	Kind uint8 // types.FormNone, FormRange, FormEnum or FormDate

	Min, Max, Step codec.Value // FormRange
	Enum           []codec.Value
}

// RangeForm returns a FormRange over [lo, hi] with the given step.
func RangeForm(lo, hi, step codec.Value) Form {
	return Form{Kind: types.FormRange, Min: lo, Max: hi, Step: step}
}

// EnumForm returns a FormEnum listing values.
func EnumForm(values ...codec.Value) Form {
	return Form{Kind: types.FormEnum, Enum: values}
}

func (f *Form) encode(e *codec.Encoder) error {
	e.Uint8(f.Kind)
	switch f.Kind {
	case types.FormRange:
		for _, v := range []codec.Value{f.Min, f.Max, f.Step} {
			if err := e.Value(v); err != nil {
				return err
			}
		}
	case types.FormEnum:
		e.Uint16(uint16(len(f.Enum)))
		for _, v := range f.Enum {
			if err := e.Value(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeForm(d *codec.Decoder, t types.DataType) Form {
	f := Form{Kind: d.Uint8()}
	switch f.Kind {
	case types.FormRange:
		f.Min = d.Value(t)
		f.Max = d.Value(t)
		f.Step = d.Value(t)
	case types.FormEnum:
		n := int(d.Uint16())
		for i := 0; i < n && d.Err() == nil; i++ {
			f.Enum = append(f.Enum, d.Value(t))
		}
	}
	return f
}

// Allows reports whether v satisfies the form. Range checks apply to
// unsigned scalars only.
func (f *Form) Allows(v codec.Value) bool {
	switch f.Kind {
	case types.FormRange:
		if v.Uint < f.Min.Uint || v.Uint > f.Max.Uint {
			return false
		}
		return f.Step.Uint == 0 || (v.Uint-f.Min.Uint)%f.Step.Uint == 0
	case types.FormEnum:
		for _, e := range f.Enum {
			if e.Uint == v.Uint && e.Str == v.Str {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// DevicePropDesc is the dataset returned by GetDevicePropDesc.
type DevicePropDesc struct {
	Code    types.DeviceProperty
	Type    types.DataType
	GetSet  uint8
	Default codec.Value
	Current codec.Value
	Form    Form
}

// Marshal encodes the dataset.
func (p *DevicePropDesc) Marshal() ([]byte, error) {
	e := codec.NewEncoder(64)
	e.Uint16(uint16(p.Code))
	e.Uint16(uint16(p.Type))
	e.Uint8(p.GetSet)
	if err := e.Value(p.Default); err != nil {
		return nil, fmt.Errorf("encode %s default: %w", p.Code, err)
	}
	if err := e.Value(p.Current); err != nil {
		return nil, fmt.Errorf("encode %s current: %w", p.Code, err)
	}
	if err := p.Form.encode(e); err != nil {
		return nil, fmt.Errorf("encode %s form: %w", p.Code, err)
	}
	return e.Bytes(), nil
}

// UnmarshalDevicePropDesc decodes a DevicePropDesc dataset.
func UnmarshalDevicePropDesc(b []byte) (*DevicePropDesc, error) {
	d := codec.NewDecoder(b)
	p := &DevicePropDesc{
		Code:   types.DeviceProperty(d.Uint16()),
		Type:   types.DataType(d.Uint16()),
		GetSet: d.Uint8(),
	}
	p.Default = d.Value(p.Type)
	p.Current = d.Value(p.Type)
	p.Form = decodeForm(d, p.Type)
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("decode DevicePropDesc: %w", err)
	}
	return p, nil
}

// ObjectPropDesc is the dataset returned by GetObjectPropDesc.
type ObjectPropDesc struct {
	Code      types.ObjectProperty
	Type      types.DataType
	GetSet    uint8
	Default   codec.Value
	GroupCode uint32
	Form      Form
}

// Marshal encodes the dataset.
func (p *ObjectPropDesc) Marshal() ([]byte, error) {
	e := codec.NewEncoder(32)
	e.Uint16(uint16(p.Code))
	e.Uint16(uint16(p.Type))
	e.Uint8(p.GetSet)
	if err := e.Value(p.Default); err != nil {
		return nil, fmt.Errorf("encode %s default: %w", p.Code, err)
	}
	e.Uint32(p.GroupCode)
	if err := p.Form.encode(e); err != nil {
		return nil, fmt.Errorf("encode %s form: %w", p.Code, err)
	}
	return e.Bytes(), nil
}

// UnmarshalObjectPropDesc decodes an ObjectPropDesc dataset.
func UnmarshalObjectPropDesc(b []byte) (*ObjectPropDesc, error) {
	d := codec.NewDecoder(b)
	p := &ObjectPropDesc{
		Code:   types.ObjectProperty(d.Uint16()),
		Type:   types.DataType(d.Uint16()),
		GetSet: d.Uint8(),
	}
	p.Default = d.Value(p.Type)
	p.GroupCode = d.Uint32()
	p.Form = decodeForm(d, p.Type)
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("decode ObjectPropDesc: %w", err)
	}
	return p, nil
}
