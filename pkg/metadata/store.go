package metadata

import "context"

// Store is the object database used by the MTP responder.
//
// Implementations must be safe for concurrent use: the run loop, the
// filesystem watcher and the indexer call into the same store. All methods
// return *StoreError values for the conditions named below.
type Store interface {
	// CreateObject stores a new record and returns its freshly allocated
	// handle, which is also written to obj.Handle. A zero PUID or Added
	// time is filled in. A record with the same Path yields
	// ErrAlreadyExists.
	CreateObject(ctx context.Context, obj *Object) (uint32, error)

	// GetObject returns a copy of the record for handle, or ErrNotFound.
	GetObject(ctx context.Context, handle uint32) (*Object, error)

	// UpdateObject replaces the record with the same handle. When the Path
	// of a folder changes, the paths of all its descendants are rebased.
	UpdateObject(ctx context.Context, obj *Object) error

	// DeleteObject removes one record and its reference list. A folder
	// that still has children yields ErrNotEmpty.
	DeleteObject(ctx context.Context, handle uint32) error

	// ListObjects returns copies of the records matching filter, ordered
	// by handle.
	ListObjects(ctx context.Context, filter Filter) ([]*Object, error)

	// LookupPath returns the record whose Path is path, or ErrNotFound.
	LookupPath(ctx context.Context, path string) (*Object, error)

	// GetReferences returns the handles referenced by handle, in the order
	// they were set. Referenced objects may have been deleted since.
	GetReferences(ctx context.Context, handle uint32) ([]uint32, error)

	// SetReferences replaces the reference list of handle.
	SetReferences(ctx context.Context, handle uint32, refs []uint32) error

	// Healthcheck verifies the backend can serve requests.
	Healthcheck(ctx context.Context) error

	// Close releases the backend. Further calls yield ErrStoreClosed.
	Close() error
}
