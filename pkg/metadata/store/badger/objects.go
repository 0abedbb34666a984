package badger

import (
	"context"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/metadata/errors"
)

// ============================================================================
// Transaction Helpers
// ============================================================================

func getObjectTx(txn *badgerdb.Txn, h uint32) (*metadata.Object, error) {
	item, err := txn.Get(keyObject(h))
	if err == badgerdb.ErrKeyNotFound {
		return nil, errors.NewNotFoundError(h)
	}
	if err != nil {
		return nil, errors.NewIOError("get object", err)
	}

	var obj *metadata.Object
	err = item.Value(func(val []byte) error {
		obj, err = decodeObject(val)
		return err
	})
	if err != nil {
		return nil, errors.NewIOError("decode object", err)
	}
	return obj, nil
}

func lookupPathTx(txn *badgerdb.Txn, path string) (uint32, error) {
	item, err := txn.Get(keyPath(path))
	if err == badgerdb.ErrKeyNotFound {
		return 0, errors.NewPathNotFoundError(path)
	}
	if err != nil {
		return 0, errors.NewIOError("lookup path", err)
	}

	var h uint32
	err = item.Value(func(val []byte) error {
		h, err = decodeHandle(val)
		return err
	})
	if err != nil {
		return 0, errors.NewIOError("decode path index", err)
	}
	return h, nil
}

// putObjectTx writes the record and its path and children index entries.
func putObjectTx(txn *badgerdb.Txn, obj *metadata.Object) error {
	data, err := encodeObject(obj)
	if err != nil {
		return errors.NewIOError("encode object", err)
	}
	if err := txn.Set(keyObject(obj.Handle), data); err != nil {
		return errors.NewIOError("put object", err)
	}
	if err := txn.Set(keyPath(obj.Path), encodeHandle(obj.Handle)); err != nil {
		return errors.NewIOError("put path index", err)
	}
	if err := txn.Set(keyChild(obj.Parent, obj.Handle), nil); err != nil {
		return errors.NewIOError("put child index", err)
	}
	return nil
}

// unlinkObjectTx removes the index entries of obj but keeps the record.
func unlinkObjectTx(txn *badgerdb.Txn, obj *metadata.Object) error {
	if err := txn.Delete(keyPath(obj.Path)); err != nil {
		return errors.NewIOError("delete path index", err)
	}
	if err := txn.Delete(keyChild(obj.Parent, obj.Handle)); err != nil {
		return errors.NewIOError("delete child index", err)
	}
	return nil
}

func hasChildrenTx(txn *badgerdb.Txn, h uint32) bool {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = keyChildPrefix(h)
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	it.Rewind()
	return it.Valid()
}

// ============================================================================
// Object CRUD
// ============================================================================

func (s *BadgerMetadataStore) CreateObject(ctx context.Context, obj *metadata.Object) (uint32, error) {
	if err := s.begin(ctx); err != nil {
		return 0, err
	}
	if obj.Path == "" {
		return 0, errors.NewInvalidArgumentError("object path is required")
	}

	h, err := s.nextHandle()
	if err != nil {
		return 0, err
	}

	rec := obj.Clone()
	rec.Handle = h
	if rec.PUID == uuid.Nil {
		rec.PUID = uuid.New()
	}
	if rec.Added.IsZero() {
		rec.Added = time.Now()
	}

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyPath(rec.Path)); err == nil {
			return errors.NewAlreadyExistsError(rec.Path)
		} else if err != badgerdb.ErrKeyNotFound {
			return errors.NewIOError("check path", err)
		}
		return putObjectTx(txn, rec)
	})
	if err != nil {
		return 0, err
	}

	obj.Handle = rec.Handle
	obj.PUID = rec.PUID
	obj.Added = rec.Added
	return h, nil
}

func (s *BadgerMetadataStore) GetObject(ctx context.Context, handle uint32) (*metadata.Object, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}

	var obj *metadata.Object
	err := s.db.View(func(txn *badgerdb.Txn) error {
		var err error
		obj, err = getObjectTx(txn, handle)
		return err
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (s *BadgerMetadataStore) LookupPath(ctx context.Context, path string) (*metadata.Object, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}

	var obj *metadata.Object
	err := s.db.View(func(txn *badgerdb.Txn) error {
		h, err := lookupPathTx(txn, path)
		if err != nil {
			return err
		}
		obj, err = getObjectTx(txn, h)
		return err
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (s *BadgerMetadataStore) UpdateObject(ctx context.Context, obj *metadata.Object) error {
	if err := s.begin(ctx); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		old, err := getObjectTx(txn, obj.Handle)
		if err != nil {
			return err
		}
		if obj.Path != old.Path {
			if _, err := txn.Get(keyPath(obj.Path)); err == nil {
				return errors.NewAlreadyExistsError(obj.Path)
			} else if err != badgerdb.ErrKeyNotFound {
				return errors.NewIOError("check path", err)
			}
		}

		// Descendants are collected before the folder's own index entries
		// move, since the scan runs over the old path prefix.
		var moved []uint32
		if old.Folder && obj.Path != old.Path {
			moved, err = descendantHandlesTx(txn, old.Path)
			if err != nil {
				return err
			}
		}

		if err := unlinkObjectTx(txn, old); err != nil {
			return err
		}
		if err := putObjectTx(txn, obj); err != nil {
			return err
		}

		for _, h := range moved {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := getObjectTx(txn, h)
			if err != nil {
				return err
			}
			if err := txn.Delete(keyPath(d.Path)); err != nil {
				return errors.NewIOError("delete path index", err)
			}
			d.Path = metadata.Rebase(d.Path, old.Path, obj.Path)
			if err := putObjectTx(txn, d); err != nil {
				return err
			}
		}
		return nil
	})
}

// descendantHandlesTx scans the path index for entries below dir.
func descendantHandlesTx(txn *badgerdb.Txn, dir string) ([]uint32, error) {
	prefix := keyPath(dir + "/")
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var out []uint32
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		err := it.Item().Value(func(val []byte) error {
			h, err := decodeHandle(val)
			if err != nil {
				return err
			}
			out = append(out, h)
			return nil
		})
		if err != nil {
			return nil, errors.NewIOError("scan path index", err)
		}
	}
	return out, nil
}

func (s *BadgerMetadataStore) DeleteObject(ctx context.Context, handle uint32) error {
	if err := s.begin(ctx); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		obj, err := getObjectTx(txn, handle)
		if err != nil {
			return err
		}
		if hasChildrenTx(txn, handle) {
			return errors.NewNotEmptyError(handle)
		}
		if err := unlinkObjectTx(txn, obj); err != nil {
			return err
		}
		if err := txn.Delete(keyObject(handle)); err != nil {
			return errors.NewIOError("delete object", err)
		}
		if err := txn.Delete(keyReference(handle)); err != nil && err != badgerdb.ErrKeyNotFound {
			return errors.NewIOError("delete references", err)
		}
		return nil
	})
}

// ============================================================================
// Listing
// ============================================================================

func (s *BadgerMetadataStore) ListObjects(ctx context.Context, filter metadata.Filter) ([]*metadata.Object, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}

	var out []*metadata.Object
	err := s.db.View(func(txn *badgerdb.Txn) error {
		if filter.ByParent {
			return listChildrenTx(ctx, txn, filter, &out)
		}

		prefix := []byte(prefixObject)
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		n := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if n%100 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			n++

			err := it.Item().Value(func(val []byte) error {
				obj, err := decodeObject(val)
				if err != nil {
					return err
				}
				if filter.Matches(obj) {
					out = append(out, obj)
				}
				return nil
			})
			if err != nil {
				return errors.NewIOError("scan objects", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func listChildrenTx(ctx context.Context, txn *badgerdb.Txn, filter metadata.Filter, out *[]*metadata.Object) error {
	prefix := keyChildPrefix(filter.Parent)
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj, err := getObjectTx(txn, childFromKey(it.Item().Key()))
		if err != nil {
			return err
		}
		if filter.Matches(obj) {
			*out = append(*out, obj)
		}
	}
	return nil
}

// ============================================================================
// References
// ============================================================================

func (s *BadgerMetadataStore) GetReferences(ctx context.Context, handle uint32) ([]uint32, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}

	var refs []uint32
	err := s.db.View(func(txn *badgerdb.Txn) error {
		if _, err := getObjectTx(txn, handle); err != nil {
			return err
		}
		item, err := txn.Get(keyReference(handle))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return errors.NewIOError("get references", err)
		}
		return item.Value(func(val []byte) error {
			refs, err = decodeReferences(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (s *BadgerMetadataStore) SetReferences(ctx context.Context, handle uint32, refs []uint32) error {
	if err := s.begin(ctx); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := getObjectTx(txn, handle); err != nil {
			return err
		}
		if len(refs) == 0 {
			if err := txn.Delete(keyReference(handle)); err != nil {
				return errors.NewIOError("delete references", err)
			}
			return nil
		}
		if err := txn.Set(keyReference(handle), encodeReferences(refs)); err != nil {
			return errors.NewIOError("put references", err)
		}
		return nil
	})
}
