package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
)

// fakeTransport returns one queued transfer per Read and records every Write.
type fakeTransport struct {
	transfers [][]byte
	writes    [][]byte
	readErr   error
	writeErr  error
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	if len(f.transfers) == 0 {
		if f.readErr != nil {
			return 0, f.readErr
		}
		return 0, io.EOF
	}
	t := f.transfers[0]
	n := copy(p, t)
	if n < len(t) {
		f.transfers[0] = t[n:]
	} else {
		f.transfers = f.transfers[1:]
	}
	return n, nil
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeTransport) written() []byte {
	return bytes.Join(f.writes, nil)
}

type eventTransport struct {
	fakeTransport
	events [][]byte
}

func (e *eventTransport) WriteEvent(b []byte) error {
	e.events = append(e.events, b)
	return nil
}

func dataContainer(tid uint32, code types.OperationCode, payload []byte) []byte {
	b := make([]byte, HeaderSize+len(payload))
	PutHeader(b, Header{Length: uint32(len(b)), Type: types.ContainerData, Code: uint16(code), TransactionID: tid})
	copy(b[HeaderSize:], payload)
	return b
}

func newTestCodec(ft io.ReadWriter, transfer int) *Codec {
	return New(ft, Options{MaxTransferSize: transfer})
}

func TestRequestRoundTrip(t *testing.T) {
	req := &Request{Code: types.OpGetPartialObject, TransactionID: 9, Params: []uint32{3, 10, 100}}
	ft := &fakeTransport{transfers: [][]byte{req.Marshal()}}
	c := newTestCodec(ft, 512)

	got, err := c.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, req, got)
	assert.Equal(t, uint32(100), got.Param(2))
	assert.Equal(t, uint32(0), got.Param(4))
}

func TestReadRequestFromStream(t *testing.T) {
	// Two requests delivered in one read, as a TCP stream would.
	a := (&Request{Code: types.OpOpenSession, TransactionID: 0, Params: []uint32{1}}).Marshal()
	b := (&Request{Code: types.OpGetStorageIDs, TransactionID: 1}).Marshal()
	ft := &fakeTransport{transfers: [][]byte{append(a, b...)}}
	c := newTestCodec(ft, 512)

	r1, err := c.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, types.OpOpenSession, r1.Code)

	r2, err := c.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, types.OpGetStorageIDs, r2.Code)
	assert.Empty(t, r2.Params)
}

func TestReadRequestMalformedLength(t *testing.T) {
	tests := []struct {
		name   string
		length uint32
	}{
		{"Zero", 0},
		{"ShorterThanHeader", 8},
		{"OverLimit", 4096},
		{"Unknown", UnknownLength},
		{"NotParamAligned", HeaderSize + 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := make([]byte, HeaderSize)
			PutHeader(bad, Header{Length: tt.length, Type: types.ContainerCommand, Code: uint16(types.OpGetObject), TransactionID: 1})
			next := (&Request{Code: types.OpCloseSession, TransactionID: 2}).Marshal()
			if tt.name == "NotParamAligned" {
				bad = append(bad, 1, 2, 3)
			}
			ft := &fakeTransport{transfers: [][]byte{bad, next}}
			c := newTestCodec(ft, 512)

			_, err := c.ReadRequest()
			require.ErrorIs(t, err, ErrMalformedPacket)

			_, err = c.Discard()
			require.NoError(t, err)

			req, err := c.ReadRequest()
			require.NoError(t, err)
			assert.Equal(t, types.OpCloseSession, req.Code)
		})
	}
}

func TestReadRequestSkipsStrayData(t *testing.T) {
	stray := dataContainer(5, types.OpSendObject, []byte("orphan payload"))
	next := (&Request{Code: types.OpGetStorageIDs, TransactionID: 6}).Marshal()
	ft := &fakeTransport{transfers: [][]byte{stray, next}}
	c := newTestCodec(ft, 512)

	_, err := c.ReadRequest()
	require.ErrorIs(t, err, ErrUnexpectedContainer)

	n, err := c.Discard()
	require.NoError(t, err)
	assert.Equal(t, int64(len("orphan payload")), n)

	req, err := c.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, uint32(6), req.TransactionID)
}

func TestReadRequestTransportErrors(t *testing.T) {
	t.Run("EOF", func(t *testing.T) {
		c := newTestCodec(&fakeTransport{}, 512)
		_, err := c.ReadRequest()
		assert.True(t, IsTransportError(err))
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("TruncatedHeader", func(t *testing.T) {
		c := newTestCodec(&fakeTransport{transfers: [][]byte{{0x10, 0, 0}}}, 512)
		_, err := c.ReadRequest()
		assert.True(t, IsTransportError(err))
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("TruncatedParams", func(t *testing.T) {
		full := (&Request{Code: types.OpGetObject, TransactionID: 1, Params: []uint32{1}}).Marshal()
		c := newTestCodec(&fakeTransport{transfers: [][]byte{full[:14]}}, 512)
		_, err := c.ReadRequest()
		assert.True(t, IsTransportError(err))
	})
}

func TestReadDataChunked(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), 40) // 640 bytes
	container := dataContainer(3, types.OpSendObject, payload)

	// Split into 64-byte transfers, the last one short.
	var transfers [][]byte
	for len(container) > 0 {
		n := min(64, len(container))
		transfers = append(transfers, container[:n])
		container = container[n:]
	}
	c := newTestCodec(&fakeTransport{transfers: transfers}, 64)

	var out bytes.Buffer
	n, err := c.ReadData(3, &out, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, out.Bytes())
}

func TestReadDataUnknownLength(t *testing.T) {
	hdr := make([]byte, HeaderSize)
	PutHeader(hdr, Header{Length: UnknownLength, Type: types.ContainerData, Code: uint16(types.OpSendObject), TransactionID: 4})
	first := append(hdr, bytes.Repeat([]byte{'a'}, 32-HeaderSize)...) // full 32-byte transfer
	second := bytes.Repeat([]byte{'b'}, 32)                           // full
	var transfers = [][]byte{first, second, {}}                       // ZLP ends it
	c := newTestCodec(&fakeTransport{transfers: transfers}, 32)

	var out bytes.Buffer
	n, err := c.ReadData(4, &out, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(20+32), n)
}

func TestReadDataErrors(t *testing.T) {
	t.Run("TransactionMismatch", func(t *testing.T) {
		ft := &fakeTransport{transfers: [][]byte{dataContainer(8, types.OpSendObject, []byte("x"))}}
		c := newTestCodec(ft, 512)
		_, err := c.ReadData(7, io.Discard, -1)
		require.ErrorIs(t, err, ErrTransactionMismatch)
		_, err = c.Discard()
		require.NoError(t, err)
	})

	t.Run("TooLarge", func(t *testing.T) {
		ft := &fakeTransport{transfers: [][]byte{dataContainer(1, types.OpSendObjectInfo, make([]byte, 100))}}
		c := newTestCodec(ft, 512)
		_, err := c.ReadDataBytes(1, 10)
		require.ErrorIs(t, err, ErrPayloadTooLarge)
		n, err := c.Discard()
		require.NoError(t, err)
		assert.Equal(t, int64(100), n)
	})

	t.Run("CommandInsteadOfData", func(t *testing.T) {
		next := (&Request{Code: types.OpGetObjectInfo, TransactionID: 2, Params: []uint32{1}}).Marshal()
		c := newTestCodec(&fakeTransport{transfers: [][]byte{next}}, 512)

		_, err := c.ReadData(1, io.Discard, -1)
		require.ErrorIs(t, err, ErrUnexpectedContainer)

		req, err := c.ReadRequest()
		require.NoError(t, err)
		assert.Equal(t, types.OpGetObjectInfo, req.Code)
	})

	t.Run("SinkFailure", func(t *testing.T) {
		ft := &fakeTransport{transfers: [][]byte{
			dataContainer(1, types.OpSendObject, make([]byte, 40)),
			(&Request{Code: types.OpCloseSession, TransactionID: 2}).Marshal(),
		}}
		c := newTestCodec(ft, 16)

		_, err := c.ReadData(1, failingWriter{}, -1)
		var se *SinkError
		require.ErrorAs(t, err, &se)

		_, err = c.Discard()
		require.NoError(t, err)
		req, err := c.ReadRequest()
		require.NoError(t, err)
		assert.Equal(t, types.OpCloseSession, req.Code)
	})
}

func TestReadDataShortTransfer(t *testing.T) {
	// The host declares 10 bytes but its transfer carries 5, then moves on.
	short := dataContainer(3, types.OpSendObject, []byte("0123456789"))[:HeaderSize+5]
	next := (&Request{Code: types.OpGetStorageIDs, TransactionID: 4}).Marshal()

	t.Run("Streamed", func(t *testing.T) {
		c := newTestCodec(&fakeTransport{transfers: [][]byte{short, next}}, 512)

		var out bytes.Buffer
		n, err := c.ReadData(3, &out, -1)
		require.ErrorIs(t, err, ErrLengthMismatch)
		assert.False(t, IsTransportError(err))
		assert.Equal(t, int64(5), n)
		assert.Equal(t, "01234", out.String())

		_, err = c.Discard()
		require.NoError(t, err)
		req, err := c.ReadRequest()
		require.NoError(t, err)
		assert.Equal(t, types.OpGetStorageIDs, req.Code)
		assert.Equal(t, uint32(4), req.TransactionID)
	})

	t.Run("Bytes", func(t *testing.T) {
		c := newTestCodec(&fakeTransport{transfers: [][]byte{short, next}}, 512)

		_, err := c.ReadDataBytes(3, 1024)
		require.ErrorIs(t, err, ErrLengthMismatch)

		req, err := c.ReadRequest()
		require.NoError(t, err)
		assert.Equal(t, types.OpGetStorageIDs, req.Code)
	})

	t.Run("ZeroLengthPacket", func(t *testing.T) {
		full := dataContainer(3, types.OpSendObject, bytes.Repeat([]byte{'x'}, 64))
		// One full 32-byte transfer, then a ZLP where 44 more bytes were due.
		c := newTestCodec(&fakeTransport{transfers: [][]byte{full[:32], {}, next}}, 32)

		n, err := c.ReadData(3, io.Discard, -1)
		require.ErrorIs(t, err, ErrLengthMismatch)
		assert.Equal(t, int64(20), n)

		req, err := c.ReadRequest()
		require.NoError(t, err)
		assert.Equal(t, types.OpGetStorageIDs, req.Code)
	})
}

func TestReadDataHeaderInOwnTransfer(t *testing.T) {
	container := dataContainer(7, types.OpSendObject, []byte("payload"))
	ft := &fakeTransport{transfers: [][]byte{container[:HeaderSize], container[HeaderSize:]}}
	c := newTestCodec(ft, 512)

	b, err := c.ReadDataBytes(7, 1024)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))
}

// streamTransport is a fakeTransport without transfer boundaries.
type streamTransport struct {
	fakeTransport
}

func (*streamTransport) Stream() bool { return true }

func TestReadDataOnStream(t *testing.T) {
	t.Run("ShortReadsAreNotTransfers", func(t *testing.T) {
		container := dataContainer(2, types.OpSendObject, []byte("0123456789"))
		st := &streamTransport{fakeTransport{transfers: [][]byte{
			container[:HeaderSize+3], container[HeaderSize+3 : HeaderSize+6], container[HeaderSize+6:],
		}}}
		c := newTestCodec(st, 512)

		var out bytes.Buffer
		n, err := c.ReadData(2, &out, -1)
		require.NoError(t, err)
		assert.Equal(t, int64(10), n)
		assert.Equal(t, "0123456789", out.String())
	})

	t.Run("UnknownLength", func(t *testing.T) {
		hdr := make([]byte, HeaderSize)
		PutHeader(hdr, Header{Length: UnknownLength, Type: types.ContainerData, Code: uint16(types.OpSendObject), TransactionID: 2})
		c := newTestCodec(&streamTransport{fakeTransport{transfers: [][]byte{append(hdr, 'a')}}}, 512)

		_, err := c.ReadData(2, io.Discard, -1)
		assert.True(t, IsTransportError(err))
		assert.ErrorIs(t, err, ErrUnframed)
	})

	t.Run("OversizedCommandIsSkipped", func(t *testing.T) {
		bad := make([]byte, HeaderSize+2048)
		PutHeader(bad, Header{Length: uint32(len(bad)), Type: types.ContainerCommand, Code: uint16(types.OpGetObject), TransactionID: 1})
		next := (&Request{Code: types.OpCloseSession, TransactionID: 2}).Marshal()
		c := newTestCodec(&streamTransport{fakeTransport{transfers: [][]byte{append(bad, next...)}}}, 512)

		_, err := c.ReadRequest()
		require.ErrorIs(t, err, ErrMalformedPacket)
		n, err := c.Discard()
		require.NoError(t, err)
		assert.Equal(t, int64(2048), n)

		req, err := c.ReadRequest()
		require.NoError(t, err)
		assert.Equal(t, types.OpCloseSession, req.Code)
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteDataChunks(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestCodec(ft, 64)

	payload := bytes.Repeat([]byte{0x5A}, 150)
	n, err := c.WriteData(types.OpGetObject, 11, bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, int64(150), n)

	// 12+150 = 162 bytes: 64 + 64 + 34.
	require.Len(t, ft.writes, 3)
	assert.Len(t, ft.writes[0], 64)
	assert.Len(t, ft.writes[2], 34)

	all := ft.written()
	h, err := ParseHeader(all)
	require.NoError(t, err)
	assert.Equal(t, uint32(162), h.Length)
	assert.Equal(t, types.ContainerData, h.Type)
	assert.Equal(t, uint16(types.OpGetObject), h.Code)
	assert.Equal(t, uint32(11), h.TransactionID)
	assert.Equal(t, payload, all[HeaderSize:])
}

func TestWriteDataEmpty(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestCodec(ft, 64)

	require.NoError(t, c.WriteDataBytes(types.OpGetObjectHandles, 1, nil))
	require.Len(t, ft.writes, 1)
	assert.Len(t, ft.writes[0], HeaderSize)
}

func TestWriteDataPadsFailedSource(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestCodec(ft, 64)

	src := io.MultiReader(bytes.NewReader([]byte("abc")), errReader{})
	n, err := c.WriteData(types.OpGetObject, 1, src, 100)

	var se *SourceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, int64(3), se.Written)
	assert.Equal(t, int64(100), n)

	all := ft.written()
	require.Len(t, all, HeaderSize+100)
	assert.Equal(t, []byte("abc"), all[HeaderSize:HeaderSize+3])
	assert.Equal(t, make([]byte, 97), all[HeaderSize+3:])
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestWriteResponseAndEvent(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestCodec(ft, 64)

	require.NoError(t, c.WriteResponse(&Response{Code: types.RespPartialDeletion, TransactionID: 4, Params: []uint32{2}}))
	resp, err := ParseResponse(ft.written())
	require.NoError(t, err)
	assert.Equal(t, types.RespPartialDeletion, resp.Code)
	assert.Equal(t, []uint32{2}, resp.Params)

	ft.writes = nil
	require.NoError(t, c.WriteEvent(&Event{Code: types.EventObjectAdded, Params: []uint32{42}}))
	ev, err := ParseEvent(ft.written())
	require.NoError(t, err)
	assert.Equal(t, types.EventObjectAdded, ev.Code)
	assert.Equal(t, []uint32{42}, ev.Params)
}

func TestWriteEventUsesEventChannel(t *testing.T) {
	et := &eventTransport{}
	c := New(et, Options{})

	require.NoError(t, c.WriteEvent(&Event{Code: types.EventObjectRemoved, Params: []uint32{7}}))
	assert.Empty(t, et.writes)
	require.Len(t, et.events, 1)
	assert.Equal(t, uint16(types.EventObjectRemoved), binary.LittleEndian.Uint16(et.events[0][6:8]))
}

func TestWriteTransportError(t *testing.T) {
	c := newTestCodec(&fakeTransport{writeErr: errors.New("cable pulled")}, 64)
	err := c.WriteResponse(&Response{Code: types.RespOK})
	assert.True(t, IsTransportError(err))
}

func TestParseParamContainerErrors(t *testing.T) {
	resp := (&Response{Code: types.RespOK, TransactionID: 1}).Marshal()
	_, err := ParseRequest(resp)
	assert.ErrorIs(t, err, ErrUnexpectedContainer)

	_, err = ParseResponse(resp[:8])
	assert.ErrorIs(t, err, ErrMalformedPacket)
}
