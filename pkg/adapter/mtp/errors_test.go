package mtp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
	mderrors "github.com/marmos91/mtpd/pkg/metadata/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ResponseCode
	}{
		{"Nil", nil, types.RespOK},
		{"NotFound", mderrors.NewNotFoundError(7), types.RespInvalidObjectHandle},
		{"AlreadyExists", mderrors.NewAlreadyExistsError("/x"), types.RespGeneralError},
		{"NotEmpty", mderrors.NewNotEmptyError(7), types.RespPartialDeletion},
		{"InvalidArgument", mderrors.NewInvalidArgumentError("bad"), types.RespInvalidParameter},
		{"StoreClosed", mderrors.NewStoreClosedError(), types.RespStoreNotAvailable},
		{"MissingFile", &os.PathError{Op: "open", Path: "/x", Err: os.ErrNotExist}, types.RespInvalidObjectHandle},
		{"NoSpace", &os.PathError{Op: "write", Path: "/x", Err: unix.ENOSPC}, types.RespStoreFull},
		{"ReadOnlyFS", &os.PathError{Op: "open", Path: "/x", Err: unix.EROFS}, types.RespStoreReadOnly},
		{"Permission", &os.PathError{Op: "open", Path: "/x", Err: unix.EACCES}, types.RespAccessDenied},
		{"ShortDataset", fmt.Errorf("decode: %w", codec.ErrShortDataset), types.RespInvalidDataset},
		{"Mismatch", codec.ErrTransactionMismatch, types.RespIncompleteTransfer},
		{"ShortTransfer", fmt.Errorf("%w: 5 of 10 bytes", codec.ErrLengthMismatch), types.RespIncompleteTransfer},
		{"TooLarge", codec.ErrPayloadTooLarge, types.RespObjectTooLarge},
		{"Cancelled", context.Canceled, types.RespTransactionCancelled},
		{"Unknown", errors.New("boom"), types.RespGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapError(tt.err))
		})
	}
}

func TestSendObjectResponse(t *testing.T) {
	assert.Equal(t, types.RespIncompleteTransfer, sendObjectResponse(codec.ErrUnexpectedContainer))
	assert.Equal(t, types.RespIncompleteTransfer, sendObjectResponse(codec.ErrMalformedPacket))
	assert.Equal(t, types.RespIncompleteTransfer, sendObjectResponse(codec.ErrLengthMismatch))
	assert.Equal(t, types.RespStoreFull, sendObjectResponse(&codec.SinkError{Written: 10, Err: unix.ENOSPC}))
}

func TestValidFilename(t *testing.T) {
	for _, name := range []string{"a.txt", "with space", ".hidden", "ünïcode"} {
		assert.NoError(t, validFilename(name), name)
	}
	for _, name := range []string{"", ".", "..", "a/b", "nul\x00"} {
		assert.ErrorIs(t, validFilename(name), errInvalidFilename, name)
	}
}
