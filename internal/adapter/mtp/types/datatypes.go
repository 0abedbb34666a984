package types

import "fmt"

// DataType is the wire type of a property value.
type DataType uint16

const (
	TypeUndefined DataType = 0x0000
	TypeInt8      DataType = 0x0001
	TypeUint8     DataType = 0x0002
	TypeInt16     DataType = 0x0003
	TypeUint16    DataType = 0x0004
	TypeInt32     DataType = 0x0005
	TypeUint32    DataType = 0x0006
	TypeInt64     DataType = 0x0007
	TypeUint64    DataType = 0x0008
	TypeInt128    DataType = 0x0009
	TypeUint128   DataType = 0x000A

	TypeArrayInt8   DataType = 0x4001
	TypeArrayUint8  DataType = 0x4002
	TypeArrayInt16  DataType = 0x4003
	TypeArrayUint16 DataType = 0x4004
	TypeArrayInt32  DataType = 0x4005
	TypeArrayUint32 DataType = 0x4006
	TypeArrayInt64  DataType = 0x4007
	TypeArrayUint64 DataType = 0x4008

	TypeString DataType = 0xFFFF
)

const arrayFlag DataType = 0x4000

var dataTypeNames = map[DataType]string{
	TypeUndefined: "UNDEF",
	TypeInt8:      "INT8",
	TypeUint8:     "UINT8",
	TypeInt16:     "INT16",
	TypeUint16:    "UINT16",
	TypeInt32:     "INT32",
	TypeUint32:    "UINT32",
	TypeInt64:     "INT64",
	TypeUint64:    "UINT64",
	TypeInt128:    "INT128",
	TypeUint128:   "UINT128",
	TypeString:    "STR",
}

func (d DataType) String() string {
	if name, ok := dataTypeNames[d]; ok {
		return name
	}
	if d.IsArray() {
		return "A" + d.Elem().String()
	}
	return fmt.Sprintf("DataType(0x%04X)", uint16(d))
}

// IsArray reports whether d is an array type.
func (d DataType) IsArray() bool {
	return d != TypeString && d&arrayFlag != 0
}

// Elem returns the element type of an array type, or d itself.
func (d DataType) Elem() DataType {
	if d.IsArray() {
		return d &^ arrayFlag
	}
	return d
}

// Size returns the encoded width of a scalar integer type, or 0 for strings,
// arrays and unknown types.
func (d DataType) Size() int {
	switch d {
	case TypeInt8, TypeUint8:
		return 1
	case TypeInt16, TypeUint16:
		return 2
	case TypeInt32, TypeUint32:
		return 4
	case TypeInt64, TypeUint64:
		return 8
	case TypeInt128, TypeUint128:
		return 16
	default:
		return 0
	}
}

// IsSigned reports whether d (or its element type) is a signed integer.
func (d DataType) IsSigned() bool {
	switch d.Elem() {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64, TypeInt128:
		return true
	default:
		return false
	}
}
