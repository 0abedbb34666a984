package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Registry tracks the storage units exposed to the host. It is safe for
// concurrent use: the run loop reads it while configuration or hot-plug
// code adds and removes storages.
//
// Example usage:
//
//	reg := NewRegistry()
//	s, err := reg.AddStorage(&StorageConfig{ID: 0x00010001, Path: "/srv/media"})
//	...
//	if s := reg.GetStorage(id); s == nil {
//	    // InvalidStorageID
//	}
type Registry struct {
	mu       sync.RWMutex
	storages map[uint32]*Storage
	order    []uint32 // registration order, reported by IDs
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		storages: make(map[uint32]*Storage),
	}
}

// AddStorage registers a storage rooted at config.Path, which must be an
// existing directory. A zero config.ID is replaced by the next free
// physical store number with logical volume 1.
func (r *Registry) AddStorage(config *StorageConfig) (*Storage, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("cannot add storage with empty path")
	}
	if config.ID != 0 && config.ID&0xFFFF == 0 {
		return nil, fmt.Errorf("invalid storage id 0x%08X: logical volume must be non-zero", config.ID)
	}

	root, err := filepath.Abs(config.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path %q: %w", config.Path, err)
	}
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("storage path: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("storage path %q is not a directory", root)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := config.ID
	if id == 0 {
		id = r.nextIDLocked()
	}
	if _, exists := r.storages[id]; exists {
		return nil, fmt.Errorf("storage 0x%08X already registered", id)
	}
	for _, s := range r.storages {
		if s.Path == root {
			return nil, fmt.Errorf("path %q already registered as storage 0x%08X", root, s.ID)
		}
	}

	s := &Storage{
		ID:            id,
		Path:          root,
		Description:   config.Description,
		VolumeID:      config.VolumeID,
		ReadOnly:      config.ReadOnly,
		Removable:     config.Removable,
		ReservedSpace: config.ReservedSpace,
	}
	if s.Description == "" {
		s.Description = filepath.Base(root)
	}

	r.storages[id] = s
	r.order = append(r.order, id)
	return s, nil
}

func (r *Registry) nextIDLocked() uint32 {
	var phys uint32
	for id := range r.storages {
		phys = max(phys, id>>16)
	}
	return (phys+1)<<16 | 0x0001
}

// RemoveStorage unregisters a storage. Objects below it are left to the
// caller.
func (r *Registry) RemoveStorage(id uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.storages[id]; !exists {
		return fmt.Errorf("storage 0x%08X not found", id)
	}
	delete(r.storages, id)
	r.order = slices.DeleteFunc(r.order, func(x uint32) bool { return x == id })
	return nil
}

// GetStorage returns the storage with the given ID, or nil if none is
// registered.
func (r *Registry) GetStorage(id uint32) *Storage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.storages[id]
}

// IDs returns the registered storage IDs in registration order.
// The returned slice is a copy and safe to modify.
func (r *Registry) IDs() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Storages returns the registered storages in registration order.
func (r *Registry) Storages() []*Storage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Storage, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.storages[id])
	}
	return out
}

// First returns the earliest registered storage, or nil when the registry is
// empty. Hosts that send storage ID 0 in SendObjectInfo get this one.
func (r *Registry) First() *Storage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return nil
	}
	return r.storages[r.order[0]]
}

// StorageForPath returns the storage whose root contains path, preferring
// the deepest root when storages are nested. It returns nil if none does.
func (r *Registry) StorageForPath(path string) *Storage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Storage
	for _, s := range r.storages {
		if s.Contains(path) && (best == nil || len(s.Path) > len(best.Path)) {
			best = s
		}
	}
	return best
}

// Count returns the number of registered storages.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.storages)
}
