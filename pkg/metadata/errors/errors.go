// Package errors provides the error type and codes returned by metadata
// stores. It is a leaf package so store implementations can import it
// without pulling in the metadata package.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents the type of error that occurred.
type ErrorCode int

const (
	// ErrNotFound indicates the requested object does not exist.
	ErrNotFound ErrorCode = iota + 1

	// ErrAlreadyExists indicates an object with the same path exists.
	ErrAlreadyExists

	// ErrNotEmpty indicates a folder still has children.
	ErrNotEmpty

	// ErrInvalidArgument indicates an invalid argument was provided.
	ErrInvalidArgument

	// ErrInvalidHandle indicates a reserved or malformed handle.
	ErrInvalidHandle

	// ErrIOError indicates the backend failed.
	ErrIOError

	// ErrStoreClosed indicates the store was used after Close.
	ErrStoreClosed
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrNotEmpty:
		return "NotEmpty"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrInvalidHandle:
		return "InvalidHandle"
	case ErrIOError:
		return "IOError"
	case ErrStoreClosed:
		return "StoreClosed"
	default:
		return fmt.Sprintf("Unknown(%d)", e)
	}
}

// StoreError represents a metadata store error with an error code.
type StoreError struct {
	Code    ErrorCode
	Message string
	Handle  uint32
	Path    string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	switch {
	case e.Path != "":
		return fmt.Sprintf("%s: %s (path: %s)", e.Code, e.Message, e.Path)
	case e.Handle != 0:
		return fmt.Sprintf("%s: %s (handle: %d)", e.Code, e.Message, e.Handle)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// NewNotFoundError creates a NotFound error for a handle.
func NewNotFoundError(handle uint32) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: "object not found", Handle: handle}
}

// NewPathNotFoundError creates a NotFound error for a path lookup.
func NewPathNotFoundError(path string) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: "no object at path", Path: path}
}

// NewAlreadyExistsError creates an AlreadyExists error.
func NewAlreadyExistsError(path string) *StoreError {
	return &StoreError{Code: ErrAlreadyExists, Message: "already exists", Path: path}
}

// NewNotEmptyError creates a NotEmpty error.
func NewNotEmptyError(handle uint32) *StoreError {
	return &StoreError{Code: ErrNotEmpty, Message: "folder not empty", Handle: handle}
}

// NewInvalidArgumentError creates an InvalidArgument error.
func NewInvalidArgumentError(message string) *StoreError {
	return &StoreError{Code: ErrInvalidArgument, Message: message}
}

// NewInvalidHandleError creates an InvalidHandle error.
func NewInvalidHandleError(handle uint32) *StoreError {
	return &StoreError{Code: ErrInvalidHandle, Message: "invalid object handle", Handle: handle}
}

// NewIOError wraps a backend failure.
func NewIOError(operation string, err error) *StoreError {
	return &StoreError{Code: ErrIOError, Message: fmt.Sprintf("%s: %v", operation, err)}
}

// NewStoreClosedError creates a StoreClosed error.
func NewStoreClosedError() *StoreError {
	return &StoreError{Code: ErrStoreClosed, Message: "store is closed"}
}

// CodeOf returns the code of a StoreError in err's chain, or 0.
func CodeOf(err error) ErrorCode {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsNotFoundError checks if an error is a StoreError with ErrNotFound code.
func IsNotFoundError(err error) bool {
	return CodeOf(err) == ErrNotFound
}

// IsAlreadyExistsError checks if an error is a StoreError with ErrAlreadyExists code.
func IsAlreadyExistsError(err error) bool {
	return CodeOf(err) == ErrAlreadyExists
}

// IsNotEmptyError checks if an error is a StoreError with ErrNotEmpty code.
func IsNotEmptyError(err error) bool {
	return CodeOf(err) == ErrNotEmpty
}
