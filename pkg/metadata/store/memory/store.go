// Package memory implements metadata.Store in process memory. Records are
// lost on exit; the responder reindexes storages on start.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/metadata/errors"
)

// MemoryMetadataStore is a map-backed metadata.Store.
//
// Thread Safety: all operations are protected by mu. Records are copied on
// the way in and out.
type MemoryMetadataStore struct {
	mu       sync.RWMutex
	objects  map[uint32]*metadata.Object
	byPath   map[string]uint32
	children map[uint32]map[uint32]struct{}
	refs     map[uint32][]uint32
	next     uint32
	closed   bool
}

var _ metadata.Store = (*MemoryMetadataStore)(nil)

// NewMemoryMetadataStore creates an empty store.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{
		objects:  make(map[uint32]*metadata.Object),
		byPath:   make(map[string]uint32),
		children: make(map[uint32]map[uint32]struct{}),
		refs:     make(map[uint32][]uint32),
		next:     1,
	}
}

func (s *MemoryMetadataStore) CreateObject(ctx context.Context, obj *metadata.Object) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.NewStoreClosedError()
	}
	if obj.Path == "" {
		return 0, errors.NewInvalidArgumentError("object path is required")
	}
	if _, exists := s.byPath[obj.Path]; exists {
		return 0, errors.NewAlreadyExistsError(obj.Path)
	}
	if !metadata.ValidHandle(s.next) {
		return 0, errors.NewIOError("allocate handle", errHandlesExhausted)
	}

	obj.Handle = s.next
	s.next++
	if obj.PUID == uuid.Nil {
		obj.PUID = uuid.New()
	}
	if obj.Added.IsZero() {
		obj.Added = time.Now()
	}

	s.putLocked(obj.Clone())
	return obj.Handle, nil
}

func (s *MemoryMetadataStore) putLocked(obj *metadata.Object) {
	s.objects[obj.Handle] = obj
	s.byPath[obj.Path] = obj.Handle
	if obj.Parent != metadata.NoHandle {
		kids := s.children[obj.Parent]
		if kids == nil {
			kids = make(map[uint32]struct{})
			s.children[obj.Parent] = kids
		}
		kids[obj.Handle] = struct{}{}
	}
}

func (s *MemoryMetadataStore) unlinkLocked(obj *metadata.Object) {
	delete(s.objects, obj.Handle)
	delete(s.byPath, obj.Path)
	if kids := s.children[obj.Parent]; kids != nil {
		delete(kids, obj.Handle)
		if len(kids) == 0 {
			delete(s.children, obj.Parent)
		}
	}
}

func (s *MemoryMetadataStore) GetObject(ctx context.Context, handle uint32) (*metadata.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.NewStoreClosedError()
	}
	obj, ok := s.objects[handle]
	if !ok {
		return nil, errors.NewNotFoundError(handle)
	}
	return obj.Clone(), nil
}

func (s *MemoryMetadataStore) UpdateObject(ctx context.Context, obj *metadata.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.NewStoreClosedError()
	}
	old, ok := s.objects[obj.Handle]
	if !ok {
		return errors.NewNotFoundError(obj.Handle)
	}
	if obj.Path != old.Path {
		if _, taken := s.byPath[obj.Path]; taken {
			return errors.NewAlreadyExistsError(obj.Path)
		}
	}

	s.unlinkLocked(old)
	s.putLocked(obj.Clone())

	if old.Folder && obj.Path != old.Path {
		for _, o := range s.objects {
			if metadata.IsBelow(o.Path, old.Path) {
				delete(s.byPath, o.Path)
				o.Path = metadata.Rebase(o.Path, old.Path, obj.Path)
				s.byPath[o.Path] = o.Handle
			}
		}
	}
	return nil
}

func (s *MemoryMetadataStore) DeleteObject(ctx context.Context, handle uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.NewStoreClosedError()
	}
	obj, ok := s.objects[handle]
	if !ok {
		return errors.NewNotFoundError(handle)
	}
	if len(s.children[handle]) > 0 {
		return errors.NewNotEmptyError(handle)
	}

	s.unlinkLocked(obj)
	delete(s.refs, handle)
	return nil
}

func (s *MemoryMetadataStore) ListObjects(ctx context.Context, filter metadata.Filter) ([]*metadata.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.NewStoreClosedError()
	}

	var out []*metadata.Object
	if filter.ByParent && filter.Parent != metadata.NoHandle {
		for h := range s.children[filter.Parent] {
			if o := s.objects[h]; filter.Matches(o) {
				out = append(out, o.Clone())
			}
		}
	} else {
		for _, o := range s.objects {
			if filter.Matches(o) {
				out = append(out, o.Clone())
			}
		}
	}

	slices.SortFunc(out, func(a, b *metadata.Object) int {
		return cmp.Compare(a.Handle, b.Handle)
	})
	return out, nil
}

func (s *MemoryMetadataStore) LookupPath(ctx context.Context, path string) (*metadata.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.NewStoreClosedError()
	}
	h, ok := s.byPath[path]
	if !ok {
		return nil, errors.NewPathNotFoundError(path)
	}
	return s.objects[h].Clone(), nil
}

func (s *MemoryMetadataStore) GetReferences(ctx context.Context, handle uint32) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.NewStoreClosedError()
	}
	if _, ok := s.objects[handle]; !ok {
		return nil, errors.NewNotFoundError(handle)
	}
	return slices.Clone(s.refs[handle]), nil
}

func (s *MemoryMetadataStore) SetReferences(ctx context.Context, handle uint32, refs []uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.NewStoreClosedError()
	}
	if _, ok := s.objects[handle]; !ok {
		return errors.NewNotFoundError(handle)
	}
	if len(refs) == 0 {
		delete(s.refs, handle)
		return nil
	}
	s.refs[handle] = slices.Clone(refs)
	return nil
}

func (s *MemoryMetadataStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.NewStoreClosedError()
	}
	return nil
}

func (s *MemoryMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
