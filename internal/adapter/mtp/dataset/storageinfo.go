package dataset

import (
	"fmt"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
)

// StorageInfo is the dataset returned by GetStorageInfo.
type StorageInfo struct {
	StorageType      uint16
	FilesystemType   uint16
	AccessCapability uint16
	MaxCapacity      uint64
	FreeSpace        uint64

	// FreeObjects is 0xFFFFFFFF when the store does not limit object count.
	FreeObjects uint32

	Description string
	VolumeID    string
}

// Marshal encodes the dataset.
func (s *StorageInfo) Marshal() []byte {
	e := codec.NewEncoder(64)
	e.Uint16(s.StorageType)
	e.Uint16(s.FilesystemType)
	e.Uint16(s.AccessCapability)
	e.Uint64(s.MaxCapacity)
	e.Uint64(s.FreeSpace)
	e.Uint32(s.FreeObjects)
	e.String(s.Description)
	e.String(s.VolumeID)
	return e.Bytes()
}

// UnmarshalStorageInfo decodes a StorageInfo dataset.
func UnmarshalStorageInfo(b []byte) (*StorageInfo, error) {
	d := codec.NewDecoder(b)
	s := &StorageInfo{
		StorageType:      d.Uint16(),
		FilesystemType:   d.Uint16(),
		AccessCapability: d.Uint16(),
		MaxCapacity:      d.Uint64(),
		FreeSpace:        d.Uint64(),
		FreeObjects:      d.Uint32(),
		Description:      d.String(),
		VolumeID:         d.String(),
	}
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("decode StorageInfo: %w", err)
	}
	return s, nil
}
