package mtp

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/internal/telemetry"
	"github.com/marmos91/mtpd/pkg/metadata"
	mderrors "github.com/marmos91/mtpd/pkg/metadata/errors"
	"github.com/marmos91/mtpd/pkg/registry"
)

// IndexStats summarizes one indexing pass.
type IndexStats struct {
	Added   int
	Updated int
	Removed int
}

func (s *IndexStats) add(o IndexStats) {
	s.Added += o.Added
	s.Updated += o.Updated
	s.Removed += o.Removed
}

// Indexer reconciles the metadata store with the files below each storage
// root. Symbolic links and special files are not exposed.
type Indexer struct {
	store    metadata.Store
	registry *registry.Registry
}

// NewIndexer creates an indexer over store and reg.
func NewIndexer(store metadata.Store, reg *registry.Registry) *Indexer {
	return &Indexer{store: store, registry: reg}
}

// IndexAll indexes every registered storage. It stops at the first storage
// that fails.
func (ix *Indexer) IndexAll(ctx context.Context) (IndexStats, error) {
	var total IndexStats
	for _, st := range ix.registry.Storages() {
		stats, err := ix.IndexStorage(ctx, st)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// IndexStorage creates records for files and folders of st that have none,
// refreshes records whose file changed, and removes records whose path is
// gone.
func (ix *Indexer) IndexStorage(ctx context.Context, st *registry.Storage) (IndexStats, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanIndex)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.StorageID(st.ID), telemetry.Path(st.Path))

	start := time.Now()
	var stats IndexStats

	seen := make(map[uint32]struct{})
	_, err := ix.walk(ctx, st, st.Path, 0, false, func(o *metadata.Object, created, updated bool) {
		seen[o.Handle] = struct{}{}
		switch {
		case created:
			stats.Added++
		case updated:
			stats.Updated++
		}
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return stats, err
	}

	existing, err := ix.store.ListObjects(ctx, metadata.Filter{StorageID: st.ID})
	if err != nil {
		return stats, err
	}
	metadata.SortDeepestFirst(existing)
	for _, o := range existing {
		if _, ok := seen[o.Handle]; ok {
			continue
		}
		if err := ix.store.DeleteObject(ctx, o.Handle); err != nil && !metadata.IsNotFoundError(err) {
			logger.WarnCtx(ctx, "Cannot remove stale record", logger.Handle(o.Handle), logger.Err(err))
			continue
		}
		stats.Removed++
	}

	logger.InfoCtx(ctx, "Storage indexed",
		logger.StorageID(st.ID), logger.Path(st.Path),
		"added", stats.Added, "updated", stats.Updated, "removed", stats.Removed,
		logger.DurationMs(logger.Duration(start)))
	return stats, nil
}

// IndexPath records path, which must lie inside st below a folder that
// already has a record (or the storage root), together with everything below
// it when it is a directory. It returns the records created, parents before
// children.
func (ix *Indexer) IndexPath(ctx context.Context, st *registry.Storage, path string) ([]*metadata.Object, error) {
	parent, err := ix.parentHandle(ctx, st, path)
	if err != nil {
		return nil, err
	}

	var created []*metadata.Object
	_, err = ix.walk(ctx, st, path, parent, true, func(o *metadata.Object, isNew, _ bool) {
		if isNew {
			created = append(created, o)
		}
	})
	return created, err
}

// parentHandle returns the handle of the folder containing path, or 0 at the
// storage root.
func (ix *Indexer) parentHandle(ctx context.Context, st *registry.Storage, path string) (uint32, error) {
	dir := filepath.Dir(path)
	if dir == st.Path {
		return 0, nil
	}
	p, err := ix.store.LookupPath(ctx, dir)
	if err != nil {
		return 0, err
	}
	if !p.Folder {
		return 0, mderrors.NewInvalidArgumentError("parent is not a folder: " + dir)
	}
	return p.Handle, nil
}

// visitFunc receives every record the walk touched.
type visitFunc func(o *metadata.Object, created, updated bool)

// walk visits root (when includeRoot is set) and everything below it,
// creating or refreshing records. rootParent is the handle the entries
// directly below (or at) root hang from.
func (ix *Indexer) walk(ctx context.Context, st *registry.Storage, root string, rootParent uint32, includeRoot bool, visit visitFunc) (int, error) {
	handles := make(map[string]uint32)
	count := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			logger.WarnCtx(ctx, "Cannot index path", logger.Path(path), logger.Err(err))
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			if path == root {
				return err
			}
			return nil
		}

		if path == root && !includeRoot {
			handles[path] = rootParent
			return nil
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}

		parent := rootParent
		if path != root {
			parent = handles[filepath.Dir(path)]
		}

		fi, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			logger.WarnCtx(ctx, "Cannot stat path", logger.Path(path), logger.Err(err))
			return nil
		}

		obj, created, updated, err := ix.reconcile(ctx, st, parent, path, fi)
		if err != nil {
			logger.WarnCtx(ctx, "Cannot record path", logger.Path(path), logger.Err(err))
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			handles[path] = obj.Handle
		}
		count++
		visit(obj, created, updated)
		return nil
	})
	return count, err
}

// reconcile makes sure path has an up-to-date record.
func (ix *Indexer) reconcile(ctx context.Context, st *registry.Storage, parent uint32, path string, fi os.FileInfo) (*metadata.Object, bool, bool, error) {
	existing, err := ix.store.LookupPath(ctx, path)
	switch {
	case err == nil:
		if !refresh(existing, fi) {
			return existing, false, false, nil
		}
		if err := ix.store.UpdateObject(ctx, existing); err != nil {
			return nil, false, false, err
		}
		return existing, false, true, nil
	case !metadata.IsNotFoundError(err):
		return nil, false, false, err
	}

	obj := objectFromFileInfo(st.ID, parent, path, fi)
	if _, err := ix.store.CreateObject(ctx, obj); err != nil {
		return nil, false, false, err
	}
	return obj, true, false, nil
}

// objectFromFileInfo builds a record for a file or folder found on disk.
func objectFromFileInfo(storageID, parent uint32, path string, fi os.FileInfo) *metadata.Object {
	obj := &metadata.Object{
		StorageID: storageID,
		Parent:    parent,
		Name:      filepath.Base(path),
		Path:      path,
		Created:   fi.ModTime(),
		Modified:  fi.ModTime(),
	}
	if fi.IsDir() {
		obj.Folder = true
		obj.Format = uint16(types.FormatAssociation)
		obj.AssociationType = types.AssociationGenericFolder
	} else {
		obj.Format = uint16(types.FormatForPath(path))
		obj.Size = uint64(fi.Size())
	}
	return obj
}

// refresh copies size and modification time from fi into o and reports
// whether anything changed. Folders never change.
func refresh(o *metadata.Object, fi os.FileInfo) bool {
	if o.Folder || fi.IsDir() {
		return false
	}
	size := uint64(fi.Size())
	if o.Size == size && o.Modified.Truncate(time.Second).Equal(fi.ModTime().Truncate(time.Second)) {
		return false
	}
	o.Size = size
	o.Modified = fi.ModTime()
	return true
}
