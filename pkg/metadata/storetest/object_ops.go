package storetest

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/mtpd/pkg/metadata"
)

// runObjectOpsTests runs all single-record conformance tests.
func runObjectOpsTests(t *testing.T, factory StoreFactory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, factory) })
	t.Run("HandlesAreUnique", func(t *testing.T) { testHandlesAreUnique(t, factory) })
	t.Run("HandlesNotReused", func(t *testing.T) { testHandlesNotReused(t, factory) })
	t.Run("DuplicatePath", func(t *testing.T) { testDuplicatePath(t, factory) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, factory) })
	t.Run("LookupPath", func(t *testing.T) { testLookupPath(t, factory) })
	t.Run("UpdateObject", func(t *testing.T) { testUpdateObject(t, factory) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, factory) })
	t.Run("DeleteObject", func(t *testing.T) { testDeleteObject(t, factory) })
	t.Run("KeepsProvidedPUID", func(t *testing.T) { testKeepsProvidedPUID(t, factory) })
}

// testCreateAndGet verifies that every field survives a store round trip and
// that the store fills in PUID and Added.
func testCreateAndGet(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	modified := created.Add(time.Hour)
	obj := &metadata.Object{
		StorageID: testStorage,
		Format:    formatEXIF,
		Name:      "photo.jpg",
		Path:      "/srv/photos/photo.jpg",
		Size:      1 << 33,
		Keywords:  "holiday",
		Created:   created,
		Modified:  modified,
	}
	h, err := store.CreateObject(ctx, obj)
	if err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	if !metadata.ValidHandle(h) {
		t.Fatalf("handle %#x is reserved", h)
	}

	got := mustGet(t, store, h)
	if got.Handle != h {
		t.Errorf("Handle = %d, want %d", got.Handle, h)
	}
	if got.StorageID != testStorage || got.Parent != 0 {
		t.Errorf("StorageID/Parent = %#x/%d, want %#x/0", got.StorageID, got.Parent, testStorage)
	}
	if got.Format != formatEXIF || got.Folder {
		t.Errorf("Format = %#x Folder = %v", got.Format, got.Folder)
	}
	if got.Name != "photo.jpg" || got.Path != "/srv/photos/photo.jpg" {
		t.Errorf("Name/Path = %q/%q", got.Name, got.Path)
	}
	if got.Size != 1<<33 {
		t.Errorf("Size = %d, want %d", got.Size, uint64(1<<33))
	}
	if got.Keywords != "holiday" {
		t.Errorf("Keywords = %q", got.Keywords)
	}
	if !got.Created.Equal(created) || !got.Modified.Equal(modified) {
		t.Errorf("Created/Modified = %v/%v", got.Created, got.Modified)
	}
	if got.PUID == uuid.Nil {
		t.Error("PUID was not assigned")
	}
	if got.PUID != obj.PUID {
		t.Error("PUID written back to obj differs from stored PUID")
	}
	if got.Added.IsZero() {
		t.Error("Added was not assigned")
	}
}

// testHandlesAreUnique verifies that handles never collide.
func testHandlesAreUnique(t *testing.T, factory StoreFactory) {
	store := factory(t)

	seen := make(map[uint32]bool)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		h := createTestFile(t, store, testStorage, 0, "/srv", name, formatText)
		if seen[h] {
			t.Fatalf("handle %d allocated twice", h)
		}
		seen[h] = true
	}
}

// testHandlesNotReused verifies that a deleted handle is not handed out again.
func testHandlesNotReused(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	first := createTestFile(t, store, testStorage, 0, "/srv", "a", formatText)
	if err := store.DeleteObject(ctx, first); err != nil {
		t.Fatalf("DeleteObject() failed: %v", err)
	}
	second := createTestFile(t, store, testStorage, 0, "/srv", "a", formatText)
	if second == first {
		t.Errorf("handle %d reused after delete", first)
	}
}

// testDuplicatePath verifies that two records cannot share a path.
func testDuplicatePath(t *testing.T, factory StoreFactory) {
	store := factory(t)

	createTestFile(t, store, testStorage, 0, "/srv", "dup.txt", formatText)
	_, err := store.CreateObject(t.Context(), &metadata.Object{
		StorageID: testStorage,
		Format:    formatText,
		Name:      "dup.txt",
		Path:      "/srv/dup.txt",
	})
	if !metadata.IsAlreadyExistsError(err) {
		t.Errorf("CreateObject(duplicate) error = %v, want AlreadyExists", err)
	}
}

// testGetMissing verifies the NotFound error for unknown handles.
func testGetMissing(t *testing.T, factory StoreFactory) {
	store := factory(t)

	_, err := store.GetObject(t.Context(), 12345)
	if !metadata.IsNotFoundError(err) {
		t.Errorf("GetObject(missing) error = %v, want NotFound", err)
	}
}

// testLookupPath verifies path lookups for present and absent paths.
func testLookupPath(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	h := createTestFile(t, store, testStorage, 0, "/srv", "x.txt", formatText)

	got, err := store.LookupPath(ctx, "/srv/x.txt")
	if err != nil {
		t.Fatalf("LookupPath() failed: %v", err)
	}
	if got.Handle != h {
		t.Errorf("LookupPath handle = %d, want %d", got.Handle, h)
	}

	_, err = store.LookupPath(ctx, "/srv/missing.txt")
	if !metadata.IsNotFoundError(err) {
		t.Errorf("LookupPath(missing) error = %v, want NotFound", err)
	}
}

// testUpdateObject verifies that updates replace the stored record and that
// the old path is released.
func testUpdateObject(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	h := createTestFile(t, store, testStorage, 0, "/srv", "old.txt", formatText)
	obj := mustGet(t, store, h)
	obj.Name = "new.txt"
	obj.Path = "/srv/new.txt"
	obj.Size = 99
	obj.Keywords = "k"
	if err := store.UpdateObject(ctx, obj); err != nil {
		t.Fatalf("UpdateObject() failed: %v", err)
	}

	got := mustGet(t, store, h)
	if got.Name != "new.txt" || got.Size != 99 || got.Keywords != "k" {
		t.Errorf("after update: Name=%q Size=%d Keywords=%q", got.Name, got.Size, got.Keywords)
	}
	if got.PUID != obj.PUID {
		t.Error("PUID changed on update")
	}
	if _, err := store.LookupPath(ctx, "/srv/old.txt"); !metadata.IsNotFoundError(err) {
		t.Errorf("old path still resolves: %v", err)
	}
	if got, err := store.LookupPath(ctx, "/srv/new.txt"); err != nil || got.Handle != h {
		t.Errorf("LookupPath(new) = %v, %v", got, err)
	}

	// Renaming onto an existing path is refused.
	other := createTestFile(t, store, testStorage, 0, "/srv", "other.txt", formatText)
	clash := mustGet(t, store, other)
	clash.Name = "new.txt"
	clash.Path = "/srv/new.txt"
	if err := store.UpdateObject(ctx, clash); !metadata.IsAlreadyExistsError(err) {
		t.Errorf("UpdateObject(clash) error = %v, want AlreadyExists", err)
	}
}

// testUpdateMissing verifies that updating an unknown handle fails.
func testUpdateMissing(t *testing.T, factory StoreFactory) {
	store := factory(t)

	err := store.UpdateObject(t.Context(), &metadata.Object{Handle: 777, Path: "/srv/none"})
	if !metadata.IsNotFoundError(err) {
		t.Errorf("UpdateObject(missing) error = %v, want NotFound", err)
	}
}

// testDeleteObject verifies deletion and the NotFound result of a second delete.
func testDeleteObject(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	h := createTestFile(t, store, testStorage, 0, "/srv", "gone.txt", formatText)
	if err := store.DeleteObject(ctx, h); err != nil {
		t.Fatalf("DeleteObject() failed: %v", err)
	}
	if _, err := store.GetObject(ctx, h); !metadata.IsNotFoundError(err) {
		t.Errorf("GetObject after delete error = %v, want NotFound", err)
	}
	if _, err := store.LookupPath(ctx, "/srv/gone.txt"); !metadata.IsNotFoundError(err) {
		t.Errorf("LookupPath after delete error = %v, want NotFound", err)
	}
	if err := store.DeleteObject(ctx, h); !metadata.IsNotFoundError(err) {
		t.Errorf("second DeleteObject() error = %v, want NotFound", err)
	}
}

// testKeepsProvidedPUID verifies that a caller-chosen PUID is stored as is.
func testKeepsProvidedPUID(t *testing.T, factory StoreFactory) {
	store := factory(t)

	puid := uuid.New()
	h, err := store.CreateObject(t.Context(), &metadata.Object{
		StorageID: testStorage,
		Format:    formatUndefined,
		Name:      "p",
		Path:      "/srv/p",
		PUID:      puid,
	})
	if err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	if got := mustGet(t, store, h); got.PUID != puid {
		t.Errorf("PUID = %s, want %s", got.PUID, puid)
	}
}
