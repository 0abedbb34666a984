package mtp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mtpd/internal/adapter/mtp/dataset"
	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/metadata/store/memory"
)

func newTestWatcher(t *testing.T, e *testEnv) *Watcher {
	t.Helper()
	w, err := NewWatcher(e.server, 10*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.fsw.Close() })
	return w
}

func TestWatcherReconcile(t *testing.T) {
	e := newTestEnv(t, ServerConfig{})
	h := e.openSession(t)
	w := newTestWatcher(t, e)
	ctx := context.Background()

	path := filepath.Join(e.root, "outside.txt")
	writeFile(t, path, "one")
	require.NoError(t, w.reconcile(ctx, path))

	ev := h.event()
	assert.Equal(t, types.EventObjectAdded, ev.Code)
	require.Len(t, ev.Params, 1)
	handle := ev.Params[0]
	assert.Equal(t, "outside.txt", h.objectInfo(handle).Filename)

	writeFile(t, path, "one two three")
	require.NoError(t, w.reconcile(ctx, path))
	ev = h.event()
	assert.Equal(t, types.EventObjectInfoChanged, ev.Code)
	assert.Equal(t, []uint32{handle}, ev.Params)
	assert.Equal(t, uint32(13), h.objectInfo(handle).CompressedSize)

	require.NoError(t, os.Remove(path))
	require.NoError(t, w.reconcile(ctx, path))
	ev = h.event()
	assert.Equal(t, types.EventObjectRemoved, ev.Code)
	assert.Equal(t, []uint32{handle}, ev.Params)
	_, err := e.store.GetObject(ctx, handle)
	assert.True(t, metadata.IsNotFoundError(err))
}

func TestWatcherReconcileDirectory(t *testing.T) {
	e := newTestEnv(t, ServerConfig{})
	h := e.openSession(t)
	w := newTestWatcher(t, e)
	ctx := context.Background()

	dir := filepath.Join(e.root, "album")
	writeFile(t, filepath.Join(dir, "cover.jpg"), "jpg")
	require.NoError(t, w.reconcile(ctx, dir))

	folder := h.event()
	file := h.event()
	assert.Equal(t, types.EventObjectAdded, folder.Code)
	assert.Equal(t, types.EventObjectAdded, file.Code)
	assert.Equal(t, folder.Params[0], h.objectInfo(file.Params[0]).Parent)
	assert.Contains(t, w.fsw.WatchList(), dir)

	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, w.reconcile(ctx, dir))
	assert.Equal(t, []uint32{file.Params[0]}, h.event().Params, "children are removed first")
	assert.Equal(t, []uint32{folder.Params[0]}, h.event().Params)
}

func TestWatcherIgnoresOwnChanges(t *testing.T) {
	e := newTestEnv(t, ServerConfig{})
	h := e.openSession(t)
	w := newTestWatcher(t, e)
	ctx := context.Background()

	handle := h.upload(0, "mine.txt", []byte("mine"))
	require.NoError(t, w.reconcile(ctx, filepath.Join(e.root, "mine.txt")))

	resp := h.sendObjectInfo(testStorageID, 0, &dataset.ObjectInfo{
		Format: types.FormatText, CompressedSize: 2, Filename: "pending.txt",
	})
	require.Equal(t, types.RespOK, resp.Code)
	pending := resp.Params[2]
	require.NoError(t, w.reconcile(ctx, filepath.Join(e.root, "pending.txt")))

	_, err := e.store.GetObject(ctx, pending)
	assert.NoError(t, err, "the pending send keeps its record")
	assert.Equal(t, "mine.txt", h.objectInfo(handle).Filename)
	assert.Empty(t, h.events)
}

func TestWatcherRun(t *testing.T) {
	e := newTestEnv(t, ServerConfig{})
	h := e.openSession(t)
	w := newTestWatcher(t, e)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		return len(w.fsw.WatchList()) > 0
	}, hostReadTimeout, 5*time.Millisecond)

	writeFile(t, filepath.Join(e.root, "dropped.txt"), "dropped")

	ev := h.event()
	assert.Equal(t, types.EventObjectAdded, ev.Code)
	assert.Equal(t, "dropped.txt", h.objectInfo(ev.Params[0]).Filename)
}

func TestWatcherDropsRecordOfFailedDelete(t *testing.T) {
	store := &failingStore{Store: memory.NewMemoryMetadataStore()}
	e := newTestEnvWithStore(t, ServerConfig{}, store)
	h := e.openSession(t)
	w := newTestWatcher(t, e)
	ctx := context.Background()

	handle := h.upload(0, "stuck.txt", []byte("x"))
	path := filepath.Join(e.root, "stuck.txt")
	store.failDelete = handle

	h.expect(types.RespGeneralError, types.OpDeleteObject, handle)
	assert.NoFileExists(t, path)

	store.failDelete = 0
	require.NoError(t, w.reconcile(ctx, path))

	ev := h.event()
	assert.Equal(t, types.EventObjectRemoved, ev.Code)
	assert.Equal(t, []uint32{handle}, ev.Params)
	_, err := e.store.GetObject(ctx, handle)
	assert.True(t, metadata.IsNotFoundError(err))
}
