package mtp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/internal/adapter/mtp/dataset"
	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/metadata/store/memory"
	"github.com/marmos91/mtpd/pkg/registry"
	"github.com/marmos91/mtpd/pkg/transport"
)

const (
	testStorageID   = 0x00010001
	hostPacketSize  = 16 * 1024
	hostReadTimeout = 5 * time.Second
)

// testEnv is a server over a memory store and one storage in a temp dir.
type testEnv struct {
	server  *Server
	store   metadata.Store
	storage *registry.Storage
	root    string
}

func newTestEnv(t *testing.T, cfg ServerConfig) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, cfg, memory.NewMemoryMetadataStore())
}

func newTestEnvWithStore(t *testing.T, cfg ServerConfig, store metadata.Store) *testEnv {
	t.Helper()
	root := t.TempDir()
	reg := registry.NewRegistry()
	st, err := reg.AddStorage(&registry.StorageConfig{
		ID:          testStorageID,
		Path:        root,
		Description: "Internal storage",
	})
	require.NoError(t, err)

	srv, err := NewServer(cfg, store, reg)
	require.NoError(t, err)
	return &testEnv{server: srv, store: store, storage: st, root: st.Path}
}

// hostConn plays the initiator side of a pipe connected to a running
// server.
type hostConn struct {
	t      *testing.T
	conn   *transport.PipeEnd
	tid    uint32
	events []*codec.Event
}

// attach starts Serve on the device end of a new pipe. The server is
// detached when the test ends.
func (e *testEnv) attach(t *testing.T) *hostConn {
	t.Helper()
	host, dev := transport.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.server.Serve(ctx, dev) }()

	t.Cleanup(func() {
		cancel()
		_ = host.Close()
		select {
		case <-done:
		case <-time.After(hostReadTimeout):
			t.Error("server did not stop")
		}
	})
	return &hostConn{t: t, conn: host}
}

// openSession attaches and opens session 1.
func (e *testEnv) openSession(t *testing.T) *hostConn {
	t.Helper()
	h := e.attach(t)
	h.expect(types.RespOK, types.OpOpenSession, 1)
	return h
}

func (h *hostConn) readPacket() []byte {
	h.t.Helper()
	type packet struct {
		b   []byte
		err error
	}
	ch := make(chan packet, 1)
	go func() {
		buf := make([]byte, 1<<20)
		n, err := h.conn.Read(buf)
		ch <- packet{buf[:n], err}
	}()
	select {
	case p := <-ch:
		require.NoError(h.t, p.err)
		return p.b
	case <-time.After(hostReadTimeout):
		h.t.Fatal("timed out waiting for the device")
		return nil
	}
}

// readContainer reads one whole container of any type.
func (h *hostConn) readContainer() (codec.Header, []byte) {
	h.t.Helper()
	b := h.readPacket()
	for len(b) < codec.HeaderSize {
		b = append(b, h.readPacket()...)
	}
	hdr, err := codec.ParseHeader(b)
	require.NoError(h.t, err)
	for uint32(len(b)) < hdr.Length {
		b = append(b, h.readPacket()...)
	}
	return hdr, b
}

// next returns the next container that is not an event. Events read on
// the way are queued.
func (h *hostConn) next() (codec.Header, []byte) {
	h.t.Helper()
	for {
		hdr, b := h.readContainer()
		if hdr.Type != types.ContainerEvent {
			return hdr, b
		}
		ev, err := codec.ParseEvent(b)
		require.NoError(h.t, err)
		h.events = append(h.events, ev)
	}
}

// event returns the next event, queued or read from the pipe.
func (h *hostConn) event() *codec.Event {
	h.t.Helper()
	if len(h.events) > 0 {
		ev := h.events[0]
		h.events = h.events[1:]
		return ev
	}
	hdr, b := h.readContainer()
	require.Equal(h.t, types.ContainerEvent, hdr.Type, "expected an event container")
	ev, err := codec.ParseEvent(b)
	require.NoError(h.t, err)
	return ev
}

func (h *hostConn) write(b []byte) {
	h.t.Helper()
	_, err := h.conn.Write(b)
	require.NoError(h.t, err)
}

func (h *hostConn) command(op types.OperationCode, params ...uint32) uint32 {
	h.t.Helper()
	h.tid++
	h.write((&codec.Request{Code: op, TransactionID: h.tid, Params: params}).Marshal())
	return h.tid
}

// writeData sends a data container in packets of hostPacketSize.
func (h *hostConn) writeData(op types.OperationCode, tid uint32, payload []byte) {
	h.t.Helper()
	b := make([]byte, codec.HeaderSize+len(payload))
	codec.PutHeader(b, codec.Header{
		Length:        uint32(len(b)),
		Type:          types.ContainerData,
		Code:          uint16(op),
		TransactionID: tid,
	})
	copy(b[codec.HeaderSize:], payload)
	for len(b) > 0 {
		n := min(len(b), hostPacketSize)
		h.write(b[:n])
		b = b[n:]
	}
}

func (h *hostConn) response(tid uint32) *codec.Response {
	h.t.Helper()
	hdr, b := h.next()
	require.Equal(h.t, types.ContainerResponse, hdr.Type, "expected a response container")
	resp, err := codec.ParseResponse(b)
	require.NoError(h.t, err)
	require.Equal(h.t, tid, resp.TransactionID)
	return resp
}

// do runs an operation without a data phase.
func (h *hostConn) do(op types.OperationCode, params ...uint32) *codec.Response {
	h.t.Helper()
	return h.response(h.command(op, params...))
}

// expect runs an operation without a data phase and checks its code.
func (h *hostConn) expect(code types.ResponseCode, op types.OperationCode, params ...uint32) *codec.Response {
	h.t.Helper()
	resp := h.do(op, params...)
	require.Equal(h.t, code, resp.Code, "%s", op)
	return resp
}

// get runs an operation with a device-to-host data phase. The payload is
// nil when the device answered without data.
func (h *hostConn) get(op types.OperationCode, params ...uint32) ([]byte, *codec.Response) {
	h.t.Helper()
	tid := h.command(op, params...)
	hdr, b := h.next()
	if hdr.Type == types.ContainerResponse {
		resp, err := codec.ParseResponse(b)
		require.NoError(h.t, err)
		return nil, resp
	}
	require.Equal(h.t, types.ContainerData, hdr.Type)
	require.Equal(h.t, tid, hdr.TransactionID)
	return b[codec.HeaderSize:], h.response(tid)
}

// getOK runs get and requires an OK response.
func (h *hostConn) getOK(op types.OperationCode, params ...uint32) []byte {
	h.t.Helper()
	payload, resp := h.get(op, params...)
	require.Equal(h.t, types.RespOK, resp.Code, "%s", op)
	return payload
}

// put runs an operation with a host-to-device data phase.
func (h *hostConn) put(op types.OperationCode, payload []byte, params ...uint32) *codec.Response {
	h.t.Helper()
	tid := h.command(op, params...)
	h.writeData(op, tid, payload)
	return h.response(tid)
}

// sendObjectInfo announces an object and returns the response.
func (h *hostConn) sendObjectInfo(storageID, parent uint32, info *dataset.ObjectInfo) *codec.Response {
	h.t.Helper()
	return h.put(types.OpSendObjectInfo, info.Marshal(), storageID, parent)
}

// upload creates a file with content below parent and returns its handle.
func (h *hostConn) upload(parent uint32, name string, content []byte) uint32 {
	h.t.Helper()
	resp := h.sendObjectInfo(testStorageID, parent, &dataset.ObjectInfo{
		StorageID:      testStorageID,
		Format:         types.FormatForPath(name),
		CompressedSize: uint32(len(content)),
		Filename:       name,
	})
	require.Equal(h.t, types.RespOK, resp.Code)
	require.Len(h.t, resp.Params, 3)
	handle := resp.Params[2]

	resp = h.put(types.OpSendObject, content)
	require.Equal(h.t, types.RespOK, resp.Code)
	return handle
}

// mkdir creates a folder below parent and returns its handle.
func (h *hostConn) mkdir(parent uint32, name string) uint32 {
	h.t.Helper()
	resp := h.sendObjectInfo(testStorageID, parent, &dataset.ObjectInfo{
		StorageID: testStorageID,
		Format:    types.FormatAssociation,
		Filename:  name,
	})
	require.Equal(h.t, types.RespOK, resp.Code)
	require.Len(h.t, resp.Params, 3)
	return resp.Params[2]
}

func (h *hostConn) objectInfo(handle uint32) *dataset.ObjectInfo {
	h.t.Helper()
	info, err := dataset.UnmarshalObjectInfo(h.getOK(types.OpGetObjectInfo, handle))
	require.NoError(h.t, err)
	return info
}

// failingStore fails DeleteObject for one handle.
type failingStore struct {
	metadata.Store
	failDelete uint32
}

var errInjected = errors.New("injected failure")

func (s *failingStore) DeleteObject(ctx context.Context, handle uint32) error {
	if handle == s.failDelete {
		return errInjected
	}
	return s.Store.DeleteObject(ctx, handle)
}
