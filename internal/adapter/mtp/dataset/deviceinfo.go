package dataset

import (
	"fmt"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
)

// DeviceInfo is the dataset returned by GetDeviceInfo.
type DeviceInfo struct {
	StandardVersion        uint16
	VendorExtensionID      uint32
	VendorExtensionVersion uint16
	VendorExtensionDesc    string
	FunctionalMode         uint16

	Operations       []types.OperationCode
	Events           []types.EventCode
	DeviceProperties []types.DeviceProperty
	CaptureFormats   []types.ObjectFormat
	PlaybackFormats  []types.ObjectFormat

	Manufacturer  string
	Model         string
	DeviceVersion string
	SerialNumber  string
}

// Marshal encodes the dataset.
func (d *DeviceInfo) Marshal() []byte {
	e := codec.NewEncoder(512)
	e.Uint16(d.StandardVersion)
	e.Uint32(d.VendorExtensionID)
	e.Uint16(d.VendorExtensionVersion)
	e.String(d.VendorExtensionDesc)
	e.Uint16(d.FunctionalMode)
	e.Uint16Array(codes(d.Operations))
	e.Uint16Array(codes(d.Events))
	e.Uint16Array(codes(d.DeviceProperties))
	e.Uint16Array(codes(d.CaptureFormats))
	e.Uint16Array(codes(d.PlaybackFormats))
	e.String(d.Manufacturer)
	e.String(d.Model)
	e.String(d.DeviceVersion)
	e.String(d.SerialNumber)
	return e.Bytes()
}

// UnmarshalDeviceInfo decodes a DeviceInfo dataset.
func UnmarshalDeviceInfo(b []byte) (*DeviceInfo, error) {
	d := codec.NewDecoder(b)
	info := &DeviceInfo{
		StandardVersion:        d.Uint16(),
		VendorExtensionID:      d.Uint32(),
		VendorExtensionVersion: d.Uint16(),
		VendorExtensionDesc:    d.String(),
		FunctionalMode:         d.Uint16(),
		Operations:             fromCodes[types.OperationCode](d.Uint16Array()),
		Events:                 fromCodes[types.EventCode](d.Uint16Array()),
		DeviceProperties:       fromCodes[types.DeviceProperty](d.Uint16Array()),
		CaptureFormats:         fromCodes[types.ObjectFormat](d.Uint16Array()),
		PlaybackFormats:        fromCodes[types.ObjectFormat](d.Uint16Array()),
		Manufacturer:           d.String(),
		Model:                  d.String(),
		DeviceVersion:          d.String(),
		SerialNumber:           d.String(),
	}
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("decode DeviceInfo: %w", err)
	}
	return info, nil
}

func codes[T ~uint16](v []T) []uint16 {
	out := make([]uint16, len(v))
	for i, c := range v {
		out[i] = uint16(c)
	}
	return out
}

func fromCodes[T ~uint16](v []uint16) []T {
	out := make([]T, len(v))
	for i, c := range v {
		out[i] = T(c)
	}
	return out
}
