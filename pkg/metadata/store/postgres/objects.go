package postgres

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/metadata/errors"
)

const objectColumns = `handle, storage_id, parent, format, association_type, folder,
	name, path, size, keywords, puid, created, modified, added`

// scanObject reads one row selected with objectColumns.
func scanObject(row pgx.Row) (*metadata.Object, error) {
	var (
		handle, storageID, parent int64
		format, assocType         int32
		size                      int64
		obj                       metadata.Object
	)
	err := row.Scan(
		&handle, &storageID, &parent, &format, &assocType, &obj.Folder,
		&obj.Name, &obj.Path, &size, &obj.Keywords, &obj.PUID,
		&obj.Created, &obj.Modified, &obj.Added,
	)
	if err != nil {
		return nil, err
	}
	obj.Handle = uint32(handle)
	obj.StorageID = uint32(storageID)
	obj.Parent = uint32(parent)
	obj.Format = uint16(format)
	obj.AssociationType = uint16(assocType)
	obj.Size = uint64(size)
	return &obj, nil
}

func (s *PostgresMetadataStore) CreateObject(ctx context.Context, obj *metadata.Object) (uint32, error) {
	if err := s.begin(ctx); err != nil {
		return 0, err
	}
	if obj.Path == "" {
		return 0, errors.NewInvalidArgumentError("object path is required")
	}

	puid := obj.PUID
	if puid == uuid.Nil {
		puid = uuid.New()
	}
	added := obj.Added
	if added.IsZero() {
		added = time.Now()
	}

	var handle int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO objects (
			handle, storage_id, parent, format, association_type, folder,
			name, path, size, keywords, puid, created, modified, added
		) VALUES (
			nextval('object_handle_seq'), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		RETURNING handle`,
		int64(obj.StorageID), int64(obj.Parent), int32(obj.Format), int32(obj.AssociationType), obj.Folder,
		obj.Name, obj.Path, int64(obj.Size), obj.Keywords, puid, obj.Created, obj.Modified, added,
	).Scan(&handle)
	if err != nil {
		return 0, mapPgError(err, "create object", obj.Path)
	}

	obj.Handle = uint32(handle)
	obj.PUID = puid
	obj.Added = added
	return obj.Handle, nil
}

func (s *PostgresMetadataStore) GetObject(ctx context.Context, handle uint32) (*metadata.Object, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}

	obj, err := scanObject(s.pool.QueryRow(ctx,
		`SELECT `+objectColumns+` FROM objects WHERE handle = $1`, int64(handle)))
	if err == pgx.ErrNoRows {
		return nil, errors.NewNotFoundError(handle)
	}
	if err != nil {
		return nil, mapPgError(err, "get object", "")
	}
	return obj, nil
}

func (s *PostgresMetadataStore) LookupPath(ctx context.Context, path string) (*metadata.Object, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}

	obj, err := scanObject(s.pool.QueryRow(ctx,
		`SELECT `+objectColumns+` FROM objects WHERE path = $1`, path))
	if err == pgx.ErrNoRows {
		return nil, errors.NewPathNotFoundError(path)
	}
	if err != nil {
		return nil, mapPgError(err, "lookup path", path)
	}
	return obj, nil
}

func (s *PostgresMetadataStore) UpdateObject(ctx context.Context, obj *metadata.Object) error {
	if err := s.begin(ctx); err != nil {
		return err
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var oldPath string
		var folder bool
		err := tx.QueryRow(ctx,
			`SELECT path, folder FROM objects WHERE handle = $1 FOR UPDATE`, int64(obj.Handle),
		).Scan(&oldPath, &folder)
		if err == pgx.ErrNoRows {
			return errors.NewNotFoundError(obj.Handle)
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE objects SET
				storage_id = $2, parent = $3, format = $4, association_type = $5, folder = $6,
				name = $7, path = $8, size = $9, keywords = $10, puid = $11,
				created = $12, modified = $13, added = $14
			WHERE handle = $1`,
			int64(obj.Handle), int64(obj.StorageID), int64(obj.Parent), int32(obj.Format),
			int32(obj.AssociationType), obj.Folder, obj.Name, obj.Path, int64(obj.Size),
			obj.Keywords, obj.PUID, obj.Created, obj.Modified, obj.Added,
		)
		if err != nil {
			return err
		}

		if folder && obj.Path != oldPath {
			_, err = tx.Exec(ctx, `
				UPDATE objects
				SET path = $2::text || substr(path, char_length($1::text) + 1)
				WHERE starts_with(path, $1::text || '/')`,
				oldPath, obj.Path,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	return mapPgError(err, "update object", obj.Path)
}

func (s *PostgresMetadataStore) DeleteObject(ctx context.Context, handle uint32) error {
	if err := s.begin(ctx); err != nil {
		return err
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM objects WHERE handle = $1)`, int64(handle),
		).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return errors.NewNotFoundError(handle)
		}

		var hasChildren bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM objects WHERE parent = $1)`, int64(handle),
		).Scan(&hasChildren)
		if err != nil {
			return err
		}
		if hasChildren {
			return errors.NewNotEmptyError(handle)
		}

		// object_references rows go with the object through ON DELETE CASCADE.
		_, err = tx.Exec(ctx, `DELETE FROM objects WHERE handle = $1`, int64(handle))
		return err
	})
	return mapPgError(err, "delete object", "")
}

func (s *PostgresMetadataStore) ListObjects(ctx context.Context, filter metadata.Filter) ([]*metadata.Object, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if filter.StorageID != 0 {
		add("storage_id = ?", int64(filter.StorageID))
	}
	if filter.Format != 0 {
		add("format = ?", int32(filter.Format))
	}
	if filter.ByParent {
		add("parent = ?", int64(filter.Parent))
	}

	query := `SELECT ` + objectColumns + ` FROM objects`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY handle`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgError(err, "list objects", "")
	}
	defer rows.Close()

	var out []*metadata.Object
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, mapPgError(err, "list objects", "")
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err, "list objects", "")
	}
	return out, nil
}

// ============================================================================
// References
// ============================================================================

func (s *PostgresMetadataStore) GetReferences(ctx context.Context, handle uint32) ([]uint32, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM objects WHERE handle = $1)`, int64(handle),
	).Scan(&exists); err != nil {
		return nil, mapPgError(err, "get references", "")
	}
	if !exists {
		return nil, errors.NewNotFoundError(handle)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT target FROM object_references WHERE handle = $1 ORDER BY ord`, int64(handle))
	if err != nil {
		return nil, mapPgError(err, "get references", "")
	}
	targets, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, mapPgError(err, "get references", "")
	}

	refs := make([]uint32, len(targets))
	for i, t := range targets {
		refs[i] = uint32(t)
	}
	return refs, nil
}

func (s *PostgresMetadataStore) SetReferences(ctx context.Context, handle uint32, refs []uint32) error {
	if err := s.begin(ctx); err != nil {
		return err
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM objects WHERE handle = $1)`, int64(handle),
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return errors.NewNotFoundError(handle)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM object_references WHERE handle = $1`, int64(handle)); err != nil {
			return err
		}
		if len(refs) == 0 {
			return nil
		}

		rows := make([][]any, len(refs))
		for i, r := range refs {
			rows[i] = []any{int64(handle), int32(i), int64(r)}
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"object_references"},
			[]string{"handle", "ord", "target"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
	return mapPgError(err, "set references", "")
}
