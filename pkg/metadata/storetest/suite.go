package storetest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/mtpd/pkg/metadata"
)

// StoreFactory creates a fresh Store instance for each test.
type StoreFactory func(t *testing.T) metadata.Store

const (
	testStorage  uint32 = 0x00010001
	otherStorage uint32 = 0x00020001

	formatUndefined   uint16 = 0x3000
	formatAssociation uint16 = 0x3001
	formatText        uint16 = 0x3004
	formatEXIF        uint16 = 0x3801
)

// RunConformanceSuite runs the full conformance test suite against the
// provided store factory. Each test gets a fresh store instance.
//
// The suite covers four categories:
//   - ObjectOps: create, get, update and delete of single records
//   - TreeOps: parent links, listing filters, folder renames
//   - References: object reference lists
//   - Lifecycle: health checks and use after Close
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("ObjectOps", func(t *testing.T) {
		runObjectOpsTests(t, factory)
	})

	t.Run("TreeOps", func(t *testing.T) {
		runTreeOpsTests(t, factory)
	})

	t.Run("References", func(t *testing.T) {
		runReferenceTests(t, factory)
	})

	t.Run("Lifecycle", func(t *testing.T) {
		runLifecycleTests(t, factory)
	})
}

// createTestFile creates a file record below parent (0 for the storage root)
// and returns its handle.
func createTestFile(t *testing.T, store metadata.Store, storageID, parent uint32, dir, name string, format uint16) uint32 {
	t.Helper()

	now := time.Now().Truncate(time.Second)
	obj := &metadata.Object{
		StorageID: storageID,
		Parent:    parent,
		Format:    format,
		Name:      name,
		Path:      filepath.Join(dir, name),
		Size:      uint64(len(name)),
		Created:   now,
		Modified:  now,
	}
	h, err := store.CreateObject(t.Context(), obj)
	if err != nil {
		t.Fatalf("CreateObject(%q) failed: %v", obj.Path, err)
	}
	if h != obj.Handle {
		t.Fatalf("CreateObject returned %d but set Handle=%d", h, obj.Handle)
	}
	return h
}

// createTestFolder creates a folder record below parent and returns its handle.
func createTestFolder(t *testing.T, store metadata.Store, storageID, parent uint32, dir, name string) uint32 {
	t.Helper()

	obj := &metadata.Object{
		StorageID:       storageID,
		Parent:          parent,
		Format:          formatAssociation,
		AssociationType: 0x0001,
		Folder:          true,
		Name:            name,
		Path:            filepath.Join(dir, name),
	}
	h, err := store.CreateObject(t.Context(), obj)
	if err != nil {
		t.Fatalf("CreateObject(%q) failed: %v", obj.Path, err)
	}
	return h
}

func mustGet(t *testing.T, store metadata.Store, handle uint32) *metadata.Object {
	t.Helper()

	obj, err := store.GetObject(t.Context(), handle)
	if err != nil {
		t.Fatalf("GetObject(%d) failed: %v", handle, err)
	}
	return obj
}

func equalHandles(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
