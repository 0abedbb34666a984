package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/marmos91/mtpd/pkg/metadata"
)

// mapPgError converts pgx and PostgreSQL errors to metadata store errors.
func mapPgError(err error, operation, path string) error {
	if err == nil {
		return nil
	}

	var se *metadata.StoreError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return &metadata.StoreError{
			Code:    metadata.ErrNotFound,
			Message: fmt.Sprintf("%s: not found", operation),
			Path:    path,
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgErrorCode(pgErr, operation, path)
	}

	return &metadata.StoreError{
		Code:    metadata.ErrIOError,
		Message: fmt.Sprintf("%s: %v", operation, err),
		Path:    path,
	}
}

// mapPgErrorCode maps PostgreSQL error codes to metadata store errors.
func mapPgErrorCode(pgErr *pgconn.PgError, operation, path string) error {
	// https://www.postgresql.org/docs/current/errcodes-appendix.html
	switch pgErr.Code {
	// 23505: unique_violation
	case "23505":
		return &metadata.StoreError{
			Code:    metadata.ErrAlreadyExists,
			Message: fmt.Sprintf("%s: already exists", operation),
			Path:    path,
		}

	// 23503: foreign_key_violation
	case "23503":
		return &metadata.StoreError{
			Code:    metadata.ErrNotFound,
			Message: fmt.Sprintf("%s: referenced object not found", operation),
			Path:    path,
		}

	// 2200H: sequence_generator_limit_exceeded
	case "2200H":
		return &metadata.StoreError{
			Code:    metadata.ErrIOError,
			Message: fmt.Sprintf("%s: object handles exhausted", operation),
		}

	default:
		return &metadata.StoreError{
			Code:    metadata.ErrIOError,
			Message: fmt.Sprintf("%s: %s (%s)", operation, pgErr.Message, pgErr.Code),
			Path:    path,
		}
	}
}
