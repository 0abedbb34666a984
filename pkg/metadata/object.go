package metadata

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Object is the record kept for every file and folder exposed to the host.
type Object struct {
	Handle    uint32
	StorageID uint32

	// Parent is the handle of the containing folder, or 0 for objects at
	// the storage root.
	Parent uint32

	Format          uint16
	AssociationType uint16
	Folder          bool

	// Name is the file name. Path is the absolute filesystem path and always
	// ends in Name.
	Name string
	Path string

	Size     uint64
	Keywords string

	// PUID is the persistent unique object identifier reported to hosts.
	PUID uuid.UUID

	Created  time.Time
	Modified time.Time
	Added    time.Time
}

// Clone returns a copy of o.
func (o *Object) Clone() *Object {
	c := *o
	return &c
}

// Filter selects objects in ListObjects. Zero fields match everything except
// Parent, which applies only when ByParent is set; Parent 0 then selects
// objects at the storage root.
type Filter struct {
	StorageID uint32
	Format    uint16
	ByParent  bool
	Parent    uint32
}

// Matches reports whether o passes the filter.
func (f Filter) Matches(o *Object) bool {
	if f.StorageID != 0 && o.StorageID != f.StorageID {
		return false
	}
	if f.Format != 0 && o.Format != f.Format {
		return false
	}
	if f.ByParent && o.Parent != f.Parent {
		return false
	}
	return true
}

// IsBelow reports whether path lies strictly inside dir.
func IsBelow(path, dir string) bool {
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

// Rebase rewrites path, which lies inside oldDir, to the same position below
// newDir.
func Rebase(path, oldDir, newDir string) string {
	return newDir + strings.TrimPrefix(path, oldDir)
}

// Reserved handle values.
const (
	NoHandle  uint32 = 0
	AllHandle uint32 = 0xFFFFFFFF
)

// ValidHandle reports whether h can name an object.
func ValidHandle(h uint32) bool {
	return h != NoHandle && h != AllHandle
}
