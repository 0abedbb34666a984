package codec

import (
	"fmt"

	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
)

// Value is a typed property value as carried in property datasets.
//
// Integer scalars keep their two's-complement bits in Uint (the high 64 bits
// of 128-bit types in Hi). Arrays keep element bits in Array.
type Value struct {
	Type  types.DataType
	Uint  uint64
	Hi    uint64
	Str   string
	Array []uint64
}

func Uint8Value(v uint8) Value   { return Value{Type: types.TypeUint8, Uint: uint64(v)} }
func Uint16Value(v uint16) Value { return Value{Type: types.TypeUint16, Uint: uint64(v)} }
func Uint32Value(v uint32) Value { return Value{Type: types.TypeUint32, Uint: uint64(v)} }
func Uint64Value(v uint64) Value { return Value{Type: types.TypeUint64, Uint: v} }
func StringValue(s string) Value { return Value{Type: types.TypeString, Str: s} }

// Uint128Value builds a 128-bit unsigned value from its halves.
func Uint128Value(hi, lo uint64) Value {
	return Value{Type: types.TypeUint128, Uint: lo, Hi: hi}
}

// Int returns the value of a signed scalar, sign-extended.
func (v Value) Int() int64 {
	switch v.Type {
	case types.TypeInt8:
		return int64(int8(v.Uint))
	case types.TypeInt16:
		return int64(int16(v.Uint))
	case types.TypeInt32:
		return int64(int32(v.Uint))
	default:
		return int64(v.Uint)
	}
}

func (v Value) String() string {
	switch {
	case v.Type == types.TypeString:
		return fmt.Sprintf("%q", v.Str)
	case v.Type.IsArray():
		return fmt.Sprintf("%s%v", v.Type, v.Array)
	case v.Type == types.TypeInt128 || v.Type == types.TypeUint128:
		return fmt.Sprintf("0x%016X%016X", v.Hi, v.Uint)
	case v.Type.IsSigned():
		return fmt.Sprintf("%d", v.Int())
	default:
		return fmt.Sprintf("%d", v.Uint)
	}
}
