package codec

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"golang.org/x/text/encoding/unicode"

	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
)

// maxStringUnits is the longest MTP string in UTF-16 code units, excluding
// the terminating NUL.
const maxStringUnits = 254

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Encoder builds little-endian MTP datasets.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with room for sizeHint bytes.
func NewEncoder(sizeHint int) *Encoder {
	return &Encoder{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the encoded dataset.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len returns the number of bytes encoded so far.
func (e *Encoder) Len() int { return len(e.buf) }

func (e *Encoder) Uint8(v uint8) { e.buf = append(e.buf, v) }

func (e *Encoder) Uint16(v uint16) { e.buf = binary.LittleEndian.AppendUint16(e.buf, v) }

func (e *Encoder) Uint32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }

func (e *Encoder) Uint64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }

// Uint128 encodes the low half first.
func (e *Encoder) Uint128(hi, lo uint64) {
	e.Uint64(lo)
	e.Uint64(hi)
}

// String encodes s as an MTP string: a uint8 count of UTF-16 code units
// including the NUL terminator, then the units. The empty string is a
// single zero byte. Longer strings are cut at 254 units.
func (e *Encoder) String(s string) {
	if s == "" {
		e.Uint8(0)
		return
	}
	raw, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		raw = nil
		for _, u := range utf16.Encode([]rune(s)) {
			raw = binary.LittleEndian.AppendUint16(raw, u)
		}
	}
	units := len(raw) / 2
	if units > maxStringUnits {
		units = maxStringUnits
		// Do not split a surrogate pair.
		if last := binary.LittleEndian.Uint16(raw[2*units-2:]); utf16.IsSurrogate(rune(last)) && last < 0xDC00 {
			units--
		}
	}
	e.Uint8(uint8(units + 1))
	e.buf = append(e.buf, raw[:2*units]...)
	e.Uint16(0)
}

func (e *Encoder) Uint16Array(v []uint16) {
	e.Uint32(uint32(len(v)))
	for _, x := range v {
		e.Uint16(x)
	}
}

func (e *Encoder) Uint32Array(v []uint32) {
	e.Uint32(uint32(len(v)))
	for _, x := range v {
		e.Uint32(x)
	}
}

// scalar encodes the low bytes of bits according to t.
func (e *Encoder) scalar(t types.DataType, bits, hi uint64) error {
	switch t.Size() {
	case 1:
		e.Uint8(uint8(bits))
	case 2:
		e.Uint16(uint16(bits))
	case 4:
		e.Uint32(uint32(bits))
	case 8:
		e.Uint64(bits)
	case 16:
		e.Uint128(hi, bits)
	default:
		return fmt.Errorf("unsupported data type %s", t)
	}
	return nil
}

// Value encodes v according to its type.
func (e *Encoder) Value(v Value) error {
	switch {
	case v.Type == types.TypeString:
		e.String(v.Str)
		return nil
	case v.Type.IsArray():
		e.Uint32(uint32(len(v.Array)))
		for _, x := range v.Array {
			if err := e.scalar(v.Type.Elem(), x, 0); err != nil {
				return err
			}
		}
		return nil
	default:
		return e.scalar(v.Type, v.Uint, v.Hi)
	}
}

// Decoder reads little-endian MTP datasets. The first failure is sticky:
// later reads return zero values and Err reports it.
type Decoder struct {
	b   []byte
	off int
	err error
}

// NewDecoder returns a Decoder over b.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{b: b}
}

// Err returns the first decoding error.
func (d *Decoder) Err() error { return d.err }

// Remaining returns the number of undecoded bytes.
func (d *Decoder) Remaining() int { return len(d.b) - d.off }

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.b) {
		d.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortDataset, n, d.off, len(d.b)-d.off)
		return nil
	}
	p := d.b[d.off : d.off+n]
	d.off += n
	return p
}

func (d *Decoder) Uint8() uint8 {
	if p := d.take(1); p != nil {
		return p[0]
	}
	return 0
}

func (d *Decoder) Uint16() uint16 {
	if p := d.take(2); p != nil {
		return binary.LittleEndian.Uint16(p)
	}
	return 0
}

func (d *Decoder) Uint32() uint32 {
	if p := d.take(4); p != nil {
		return binary.LittleEndian.Uint32(p)
	}
	return 0
}

func (d *Decoder) Uint64() uint64 {
	if p := d.take(8); p != nil {
		return binary.LittleEndian.Uint64(p)
	}
	return 0
}

// Uint128 returns the high and low halves.
func (d *Decoder) Uint128() (hi, lo uint64) {
	lo = d.Uint64()
	hi = d.Uint64()
	return hi, lo
}

// String decodes an MTP string.
func (d *Decoder) String() string {
	n := int(d.Uint8())
	if n == 0 {
		return ""
	}
	raw := d.take(2 * n)
	if raw == nil {
		return ""
	}
	// Drop the terminator and anything a sloppy host put after it.
	for i := 0; i+1 < len(raw); i += 2 {
		if raw[i] == 0 && raw[i+1] == 0 {
			raw = raw[:i]
			break
		}
	}
	s, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		d.err = fmt.Errorf("invalid UTF-16 string: %w", err)
		return ""
	}
	return string(s)
}

// arrayLen reads an array count and checks the dataset can hold it before
// anything is allocated.
func (d *Decoder) arrayLen(elemSize int) int {
	n := d.Uint32()
	if d.err != nil {
		return 0
	}
	if uint64(n)*uint64(elemSize) > uint64(d.Remaining()) {
		d.err = fmt.Errorf("%w: array of %d elements", ErrShortDataset, n)
		return 0
	}
	return int(n)
}

func (d *Decoder) Uint16Array() []uint16 {
	n := d.arrayLen(2)
	out := make([]uint16, n)
	for i := range out {
		out[i] = d.Uint16()
	}
	return out
}

func (d *Decoder) Uint32Array() []uint32 {
	n := d.arrayLen(4)
	out := make([]uint32, n)
	for i := range out {
		out[i] = d.Uint32()
	}
	return out
}

func (d *Decoder) scalar(t types.DataType) (bits, hi uint64) {
	switch t.Size() {
	case 1:
		return uint64(d.Uint8()), 0
	case 2:
		return uint64(d.Uint16()), 0
	case 4:
		return uint64(d.Uint32()), 0
	case 8:
		return d.Uint64(), 0
	case 16:
		hi, lo := d.Uint128()
		return lo, hi
	default:
		if d.err == nil {
			d.err = fmt.Errorf("unsupported data type %s", t)
		}
		return 0, 0
	}
}

// Value decodes a value of type t.
func (d *Decoder) Value(t types.DataType) Value {
	v := Value{Type: t}
	switch {
	case t == types.TypeString:
		v.Str = d.String()
	case t.IsArray():
		n := d.arrayLen(t.Elem().Size())
		v.Array = make([]uint64, n)
		for i := range v.Array {
			v.Array[i], _ = d.scalar(t.Elem())
		}
	default:
		v.Uint, v.Hi = d.scalar(t)
	}
	return v
}
