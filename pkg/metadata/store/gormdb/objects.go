package gormdb

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/metadata/errors"
)

func getObjectTx(tx *gorm.DB, handle uint32) (*objectModel, error) {
	var m objectModel
	if err := tx.Where("handle = ?", handle).First(&m).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFoundError(handle)
		}
		return nil, err
	}
	return &m, nil
}

func pathTakenTx(tx *gorm.DB, path string) (bool, error) {
	var n int64
	if err := tx.Model(&objectModel{}).Where("path = ?", path).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *GORMMetadataStore) CreateObject(ctx context.Context, obj *metadata.Object) (uint32, error) {
	db, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	if obj.Path == "" {
		return 0, errors.NewInvalidArgumentError("object path is required")
	}

	rec := obj.Clone()
	if rec.PUID == uuid.Nil {
		rec.PUID = uuid.New()
	}
	if rec.Added.IsZero() {
		rec.Added = time.Now()
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		taken, err := pathTakenTx(tx, rec.Path)
		if err != nil {
			return err
		}
		if taken {
			return errors.NewAlreadyExistsError(rec.Path)
		}

		h, err := nextHandleTx(tx)
		if err != nil {
			return err
		}
		rec.Handle = h

		if err := tx.Create(toModel(rec)).Error; err != nil {
			if isUniqueConstraintError(err) {
				return errors.NewAlreadyExistsError(rec.Path)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return 0, mapError("create object", err)
	}

	obj.Handle = rec.Handle
	obj.PUID = rec.PUID
	obj.Added = rec.Added
	return rec.Handle, nil
}

func (s *GORMMetadataStore) GetObject(ctx context.Context, handle uint32) (*metadata.Object, error) {
	db, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}

	m, err := getObjectTx(db, handle)
	if err != nil {
		return nil, mapError("get object", err)
	}
	return m.toObject(), nil
}

func (s *GORMMetadataStore) LookupPath(ctx context.Context, path string) (*metadata.Object, error) {
	db, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}

	var m objectModel
	if err := db.Where("path = ?", path).First(&m).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewPathNotFoundError(path)
		}
		return nil, mapError("lookup path", err)
	}
	return m.toObject(), nil
}

func (s *GORMMetadataStore) UpdateObject(ctx context.Context, obj *metadata.Object) error {
	db, err := s.begin(ctx)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		old, err := getObjectTx(tx, obj.Handle)
		if err != nil {
			return err
		}
		if obj.Path != old.Path {
			taken, err := pathTakenTx(tx, obj.Path)
			if err != nil {
				return err
			}
			if taken {
				return errors.NewAlreadyExistsError(obj.Path)
			}
		}

		if err := tx.Model(&objectModel{}).
			Where("handle = ?", obj.Handle).
			Select("*").
			Updates(toModel(obj)).Error; err != nil {
			return err
		}

		if old.Folder && obj.Path != old.Path {
			return rebaseDescendantsTx(tx, obj.Handle, old.Path, obj.Path)
		}
		return nil
	})
	return mapError("update object", err)
}

// rebaseDescendantsTx walks the parent links below folder and rewrites each
// descendant path from oldDir to newDir.
func rebaseDescendantsTx(tx *gorm.DB, folder uint32, oldDir, newDir string) error {
	queue := []uint32{folder}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		var children []objectModel
		if err := tx.Where("parent = ?", parent).Find(&children).Error; err != nil {
			return err
		}
		for _, c := range children {
			if !metadata.IsBelow(c.Path, oldDir) {
				continue
			}
			newPath := metadata.Rebase(c.Path, oldDir, newDir)
			if err := tx.Model(&objectModel{}).Where("handle = ?", c.Handle).Update("path", newPath).Error; err != nil {
				return err
			}
			if c.Folder {
				queue = append(queue, c.Handle)
			}
		}
	}
	return nil
}

func (s *GORMMetadataStore) DeleteObject(ctx context.Context, handle uint32) error {
	db, err := s.begin(ctx)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if _, err := getObjectTx(tx, handle); err != nil {
			return err
		}

		var children int64
		if err := tx.Model(&objectModel{}).Where("parent = ?", handle).Count(&children).Error; err != nil {
			return err
		}
		if children > 0 {
			return errors.NewNotEmptyError(handle)
		}

		if err := tx.Where("handle = ?", handle).Delete(&referenceModel{}).Error; err != nil {
			return err
		}
		return tx.Where("handle = ?", handle).Delete(&objectModel{}).Error
	})
	return mapError("delete object", err)
}

func (s *GORMMetadataStore) ListObjects(ctx context.Context, filter metadata.Filter) ([]*metadata.Object, error) {
	db, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}

	q := db.Model(&objectModel{})
	if filter.StorageID != 0 {
		q = q.Where("storage_id = ?", filter.StorageID)
	}
	if filter.Format != 0 {
		q = q.Where("format = ?", filter.Format)
	}
	if filter.ByParent {
		q = q.Where("parent = ?", filter.Parent)
	}

	var rows []objectModel
	if err := q.Order("handle").Find(&rows).Error; err != nil {
		return nil, mapError("list objects", err)
	}

	out := make([]*metadata.Object, len(rows))
	for i := range rows {
		out[i] = rows[i].toObject()
	}
	return out, nil
}

// ============================================================================
// References
// ============================================================================

func (s *GORMMetadataStore) GetReferences(ctx context.Context, handle uint32) ([]uint32, error) {
	db, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := getObjectTx(db, handle); err != nil {
		return nil, mapError("get references", err)
	}

	var rows []referenceModel
	if err := db.Where("handle = ?", handle).Order("ord").Find(&rows).Error; err != nil {
		return nil, mapError("get references", err)
	}

	refs := make([]uint32, len(rows))
	for i, r := range rows {
		refs[i] = r.Target
	}
	return refs, nil
}

func (s *GORMMetadataStore) SetReferences(ctx context.Context, handle uint32, refs []uint32) error {
	db, err := s.begin(ctx)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if _, err := getObjectTx(tx, handle); err != nil {
			return err
		}
		if err := tx.Where("handle = ?", handle).Delete(&referenceModel{}).Error; err != nil {
			return err
		}
		if len(refs) == 0 {
			return nil
		}

		rows := make([]referenceModel, len(refs))
		for i, r := range refs {
			rows[i] = referenceModel{Handle: handle, Position: i, Target: r}
		}
		return tx.Create(&rows).Error
	})
	return mapError("set references", err)
}
