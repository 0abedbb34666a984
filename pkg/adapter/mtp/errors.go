package mtp

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sys/unix"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
	"github.com/marmos91/mtpd/pkg/metadata"
)

// MapError converts a handler-local error into an MTP response code.
//
// Store errors are checked first, then filesystem errnos, then codec
// errors. Anything unrecognized becomes GeneralError.
func MapError(err error) types.ResponseCode {
	if err == nil {
		return types.RespOK
	}

	switch metadata.CodeOfError(err) {
	case metadata.ErrNotFound, metadata.ErrInvalidHandle:
		return types.RespInvalidObjectHandle
	case metadata.ErrAlreadyExists:
		return types.RespGeneralError
	case metadata.ErrNotEmpty:
		return types.RespPartialDeletion
	case metadata.ErrInvalidArgument:
		return types.RespInvalidParameter
	case metadata.ErrStoreClosed:
		return types.RespStoreNotAvailable
	}

	switch {
	case errors.Is(err, os.ErrNotExist):
		return types.RespInvalidObjectHandle
	case errors.Is(err, unix.ENOSPC), errors.Is(err, unix.EDQUOT):
		return types.RespStoreFull
	case errors.Is(err, unix.EROFS):
		return types.RespStoreReadOnly
	case errors.Is(err, os.ErrPermission):
		return types.RespAccessDenied
	case errors.Is(err, codec.ErrShortDataset):
		return types.RespInvalidDataset
	case errors.Is(err, codec.ErrTransactionMismatch), errors.Is(err, codec.ErrUnexpectedContainer),
		errors.Is(err, codec.ErrLengthMismatch):
		return types.RespIncompleteTransfer
	case errors.Is(err, codec.ErrPayloadTooLarge):
		return types.RespObjectTooLarge
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.RespTransactionCancelled
	}
	return types.RespGeneralError
}
