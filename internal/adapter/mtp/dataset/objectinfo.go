package dataset

import (
	"fmt"
	"time"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
)

// ObjectInfo is the dataset exchanged by GetObjectInfo and SendObjectInfo.
//
// CompressedSize is 32 bits on the wire; objects of 4GiB or more report
// 0xFFFFFFFF and hosts read the real size from the ObjectSize property.
type ObjectInfo struct {
	StorageID      uint32
	Format         types.ObjectFormat
	Protection     uint16
	CompressedSize uint32

	ThumbFormat         types.ObjectFormat
	ThumbCompressedSize uint32
	ThumbPixWidth       uint32
	ThumbPixHeight      uint32
	ImagePixWidth       uint32
	ImagePixHeight      uint32
	ImageBitDepth       uint32

	Parent          uint32
	AssociationType uint16
	AssociationDesc uint32
	SequenceNumber  uint32

	Filename     string
	DateCreated  time.Time
	DateModified time.Time
	Keywords     string
}

// Marshal encodes the dataset.
func (o *ObjectInfo) Marshal() []byte {
	e := codec.NewEncoder(128 + 2*len(o.Filename))
	e.Uint32(o.StorageID)
	e.Uint16(uint16(o.Format))
	e.Uint16(o.Protection)
	e.Uint32(o.CompressedSize)
	e.Uint16(uint16(o.ThumbFormat))
	e.Uint32(o.ThumbCompressedSize)
	e.Uint32(o.ThumbPixWidth)
	e.Uint32(o.ThumbPixHeight)
	e.Uint32(o.ImagePixWidth)
	e.Uint32(o.ImagePixHeight)
	e.Uint32(o.ImageBitDepth)
	e.Uint32(o.Parent)
	e.Uint16(o.AssociationType)
	e.Uint32(o.AssociationDesc)
	e.Uint32(o.SequenceNumber)
	e.String(o.Filename)
	e.String(FormatDateTime(o.DateCreated))
	e.String(FormatDateTime(o.DateModified))
	e.String(o.Keywords)
	return e.Bytes()
}

// UnmarshalObjectInfo decodes an ObjectInfo dataset sent by a host.
//
// The fixed part and the filename are required. Hosts are inconsistent
// about the trailing date and keyword strings, so a dataset that ends after
// the filename is accepted, and unparsable dates are left zero.
func UnmarshalObjectInfo(b []byte) (*ObjectInfo, error) {
	d := codec.NewDecoder(b)
	o := &ObjectInfo{
		StorageID:           d.Uint32(),
		Format:              types.ObjectFormat(d.Uint16()),
		Protection:          d.Uint16(),
		CompressedSize:      d.Uint32(),
		ThumbFormat:         types.ObjectFormat(d.Uint16()),
		ThumbCompressedSize: d.Uint32(),
		ThumbPixWidth:       d.Uint32(),
		ThumbPixHeight:      d.Uint32(),
		ImagePixWidth:       d.Uint32(),
		ImagePixHeight:      d.Uint32(),
		ImageBitDepth:       d.Uint32(),
		Parent:              d.Uint32(),
		AssociationType:     d.Uint16(),
		AssociationDesc:     d.Uint32(),
		SequenceNumber:      d.Uint32(),
		Filename:            d.String(),
	}
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("decode ObjectInfo: %w", err)
	}

	if d.Remaining() > 0 {
		o.DateCreated, _ = ParseDateTime(d.String())
	}
	if d.Remaining() > 0 {
		o.DateModified, _ = ParseDateTime(d.String())
	}
	if d.Remaining() > 0 {
		o.Keywords = d.String()
	}
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("decode ObjectInfo: %w", err)
	}
	return o, nil
}
