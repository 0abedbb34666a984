package metadata

import "github.com/marmos91/mtpd/pkg/metadata/errors"

// StoreError is re-exported from the errors package.
type StoreError = errors.StoreError

// ErrorCode is re-exported from the errors package.
type ErrorCode = errors.ErrorCode

const (
	ErrNotFound        = errors.ErrNotFound
	ErrAlreadyExists   = errors.ErrAlreadyExists
	ErrNotEmpty        = errors.ErrNotEmpty
	ErrInvalidArgument = errors.ErrInvalidArgument
	ErrInvalidHandle   = errors.ErrInvalidHandle
	ErrIOError         = errors.ErrIOError
	ErrStoreClosed     = errors.ErrStoreClosed
)

// IsNotFoundError checks if an error is a StoreError with ErrNotFound code.
func IsNotFoundError(err error) bool {
	return errors.IsNotFoundError(err)
}

// IsAlreadyExistsError checks if an error is a StoreError with ErrAlreadyExists code.
func IsAlreadyExistsError(err error) bool {
	return errors.IsAlreadyExistsError(err)
}

// IsNotEmptyError checks if an error is a StoreError with ErrNotEmpty code.
func IsNotEmptyError(err error) bool {
	return errors.IsNotEmptyError(err)
}

// CodeOfError returns the code of a StoreError in err's chain, or 0.
func CodeOfError(err error) ErrorCode {
	return errors.CodeOf(err)
}
