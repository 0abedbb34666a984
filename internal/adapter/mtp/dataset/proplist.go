package dataset

import (
	"fmt"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
)

// PropListEntry is one element of an ObjectPropList: a property value of one
// object. The value's Type is the element's datatype.
type PropListEntry struct {
	Handle   uint32
	Property types.ObjectProperty
	Value    codec.Value
}

// MarshalPropList encodes an ObjectPropList dataset.
func MarshalPropList(entries []PropListEntry) ([]byte, error) {
	e := codec.NewEncoder(4 + 16*len(entries))
	e.Uint32(uint32(len(entries)))
	for i, entry := range entries {
		e.Uint32(entry.Handle)
		e.Uint16(uint16(entry.Property))
		e.Uint16(uint16(entry.Value.Type))
		if err := e.Value(entry.Value); err != nil {
			return nil, fmt.Errorf("encode element %d (%s): %w", i, entry.Property, err)
		}
	}
	return e.Bytes(), nil
}

// minPropListElement is the smallest encoded element: handle, property,
// type and a one-byte value.
const minPropListElement = 4 + 2 + 2 + 1

// UnmarshalPropList decodes an ObjectPropList dataset. The element count is
// checked against the dataset size before anything is allocated.
func UnmarshalPropList(b []byte) ([]PropListEntry, error) {
	d := codec.NewDecoder(b)
	n := d.Uint32()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("decode ObjectPropList: %w", err)
	}
	if uint64(n)*minPropListElement > uint64(d.Remaining()) {
		return nil, fmt.Errorf("decode ObjectPropList: %w: %d elements in %d bytes",
			codec.ErrShortDataset, n, d.Remaining())
	}

	entries := make([]PropListEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		entry := PropListEntry{
			Handle:   d.Uint32(),
			Property: types.ObjectProperty(d.Uint16()),
		}
		entry.Value = d.Value(types.DataType(d.Uint16()))
		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("decode ObjectPropList element %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
