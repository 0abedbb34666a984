package registry

import (
	"path/filepath"
	"strings"
)

// Storage is a mounted storage unit exposed to the host. The upper 16 bits
// of ID name the physical store and the lower 16 bits the logical volume;
// a logical part of zero means "not available" and is never assigned.
//
// A Storage is immutable once registered.
type Storage struct {
	ID          uint32
	Path        string // absolute root directory
	Description string
	VolumeID    string
	ReadOnly    bool
	Removable   bool

	// ReservedSpace is withheld from the free space reported to the host.
	ReservedSpace uint64
}

// StorageConfig contains everything needed to register a storage.
type StorageConfig struct {
	// ID is assigned by the registry when zero.
	ID            uint32
	Path          string
	Description   string
	VolumeID      string
	ReadOnly      bool
	Removable     bool
	ReservedSpace uint64
}

// Contains reports whether path lies inside the storage root (the root
// itself included).
func (s *Storage) Contains(path string) bool {
	rel, err := filepath.Rel(s.Path, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Capacity returns the total and free bytes of the filesystem holding the
// storage root. Free space excludes ReservedSpace.
func (s *Storage) Capacity() (total, free uint64, err error) {
	total, free, err = statfs(s.Path)
	if err != nil {
		return 0, 0, err
	}
	if free > s.ReservedSpace {
		free -= s.ReservedSpace
	} else {
		free = 0
	}
	return total, free, nil
}
