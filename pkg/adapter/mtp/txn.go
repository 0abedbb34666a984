package mtp

import (
	"io"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
)

// result is what a handler produces: a response code, up to five response
// parameters, and the error that caused a failure (for logs only).
type result struct {
	code   types.ResponseCode
	params []uint32
	err    error
}

func respond(code types.ResponseCode, params ...uint32) result {
	return result{code: code, params: params}
}

func ok(params ...uint32) result {
	return result{code: types.RespOK, params: params}
}

func fail(code types.ResponseCode, err error) result {
	return result{code: code, err: err}
}

// failErr maps err to a response code.
func failErr(err error) result {
	return result{code: MapError(err), err: err}
}

// txn is the state of one transaction: the request and the data phase
// helpers bound to the current codec.
type txn struct {
	server *Server
	codec  *codec.Codec
	req    *codec.Request

	bytesIn  int64
	bytesOut int64
}

func (t *txn) param(i int) uint32 {
	return t.req.Param(i)
}

// sendData writes payload as the data phase. The error is a transport
// failure.
func (t *txn) sendData(payload []byte) error {
	if err := t.codec.WriteDataBytes(t.req.Code, t.req.TransactionID, payload); err != nil {
		return err
	}
	t.bytesOut += int64(len(payload))
	return nil
}

// sendStream writes size bytes from src as the data phase. A failing source
// is reported as a *codec.SourceError; any other error is a transport
// failure.
func (t *txn) sendStream(src io.Reader, size int64) error {
	n, err := t.codec.WriteData(t.req.Code, t.req.TransactionID, src, size)
	t.bytesOut += n
	return err
}

// receiveData reads the data phase into memory, bounded by the dataset
// limit. On a framing error the rest of the container is discarded and the
// error is returned for the handler to answer; transport failures come back
// as *codec.TransportError.
func (t *txn) receiveData() ([]byte, error) {
	b, err := t.codec.ReadDataBytes(t.req.TransactionID, t.server.config.MaxDatasetSize)
	if err != nil {
		return nil, t.dropData(err)
	}
	t.bytesIn += int64(len(b))
	return b, nil
}

// receiveStream streams the data phase to w.
func (t *txn) receiveStream(w io.Writer) (int64, error) {
	n, err := t.codec.ReadData(t.req.TransactionID, w, -1)
	t.bytesIn += n
	if err != nil {
		return n, t.dropData(err)
	}
	return n, nil
}

// dropData discards what is left of a data container after a non-transport
// error so the next request starts on a container boundary. A command that
// arrived instead of data is already consumed and kept by the codec.
func (t *txn) dropData(err error) error {
	if codec.IsTransportError(err) {
		return err
	}
	if _, derr := t.codec.Discard(); derr != nil && codec.IsTransportError(derr) {
		return derr
	}
	return err
}

// isFatal reports whether err ends the run loop.
func isFatal(err error) bool {
	return err != nil && codec.IsTransportError(err)
}
