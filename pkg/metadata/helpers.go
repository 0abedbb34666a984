package metadata

import (
	"context"
	"slices"
)

// Descendants returns every object below handle, deepest first, so that
// deleting them in order never removes a folder before its children.
func Descendants(ctx context.Context, store Store, handle uint32) ([]*Object, error) {
	var out []*Object
	var walk func(parent uint32, storageID uint32) error
	walk = func(parent uint32, storageID uint32) error {
		children, err := store.ListObjects(ctx, Filter{StorageID: storageID, ByParent: true, Parent: parent})
		if err != nil {
			return err
		}
		for _, c := range children {
			if c.Folder {
				if err := walk(c.Handle, c.StorageID); err != nil {
					return err
				}
			}
			out = append(out, c)
		}
		return nil
	}

	root, err := store.GetObject(ctx, handle)
	if err != nil {
		return nil, err
	}
	if root.Folder {
		if err := walk(root.Handle, root.StorageID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SortDeepestFirst orders objects so that every object comes before its
// ancestors.
func SortDeepestFirst(objs []*Object) {
	slices.SortStableFunc(objs, func(a, b *Object) int {
		return len(b.Path) - len(a.Path)
	})
}

// Handles returns the handles of objs.
func Handles(objs []*Object) []uint32 {
	out := make([]uint32, len(objs))
	for i, o := range objs {
		out[i] = o.Handle
	}
	return out
}
