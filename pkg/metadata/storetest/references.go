package storetest

import (
	"testing"

	"github.com/marmos91/mtpd/pkg/metadata"
)

// runReferenceTests runs all object reference conformance tests.
func runReferenceTests(t *testing.T, factory StoreFactory) {
	t.Run("EmptyByDefault", func(t *testing.T) { testReferencesEmptyByDefault(t, factory) })
	t.Run("SetAndGet", func(t *testing.T) { testSetAndGetReferences(t, factory) })
	t.Run("Replace", func(t *testing.T) { testReplaceReferences(t, factory) })
	t.Run("MissingObject", func(t *testing.T) { testReferencesMissingObject(t, factory) })
	t.Run("DroppedOnDelete", func(t *testing.T) { testReferencesDroppedOnDelete(t, factory) })
}

func testReferencesEmptyByDefault(t *testing.T, factory StoreFactory) {
	store := factory(t)

	h := createTestFile(t, store, testStorage, 0, "/srv", "list.pla", formatUndefined)
	refs, err := store.GetReferences(t.Context(), h)
	if err != nil {
		t.Fatalf("GetReferences() failed: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("refs = %v, want empty", refs)
	}
}

// testSetAndGetReferences verifies that reference order is preserved.
func testSetAndGetReferences(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	list := createTestFile(t, store, testStorage, 0, "/srv", "list.pla", formatUndefined)
	a := createTestFile(t, store, testStorage, 0, "/srv", "a.mp3", formatUndefined)
	b := createTestFile(t, store, testStorage, 0, "/srv", "b.mp3", formatUndefined)

	want := []uint32{b, a}
	if err := store.SetReferences(ctx, list, want); err != nil {
		t.Fatalf("SetReferences() failed: %v", err)
	}
	refs, err := store.GetReferences(ctx, list)
	if err != nil {
		t.Fatalf("GetReferences() failed: %v", err)
	}
	if !equalHandles(refs, want) {
		t.Errorf("refs = %v, want %v", refs, want)
	}
}

func testReplaceReferences(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	list := createTestFile(t, store, testStorage, 0, "/srv", "list.pla", formatUndefined)
	a := createTestFile(t, store, testStorage, 0, "/srv", "a.mp3", formatUndefined)
	b := createTestFile(t, store, testStorage, 0, "/srv", "b.mp3", formatUndefined)

	if err := store.SetReferences(ctx, list, []uint32{a, b}); err != nil {
		t.Fatalf("SetReferences() failed: %v", err)
	}
	if err := store.SetReferences(ctx, list, []uint32{b}); err != nil {
		t.Fatalf("SetReferences(replace) failed: %v", err)
	}
	refs, err := store.GetReferences(ctx, list)
	if err != nil {
		t.Fatalf("GetReferences() failed: %v", err)
	}
	if !equalHandles(refs, []uint32{b}) {
		t.Errorf("refs = %v, want [%d]", refs, b)
	}

	if err := store.SetReferences(ctx, list, nil); err != nil {
		t.Fatalf("SetReferences(nil) failed: %v", err)
	}
	refs, err = store.GetReferences(ctx, list)
	if err != nil {
		t.Fatalf("GetReferences() failed: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("refs after clear = %v", refs)
	}
}

func testReferencesMissingObject(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	if _, err := store.GetReferences(ctx, 4242); !metadata.IsNotFoundError(err) {
		t.Errorf("GetReferences(missing) error = %v, want NotFound", err)
	}
	if err := store.SetReferences(ctx, 4242, []uint32{1}); !metadata.IsNotFoundError(err) {
		t.Errorf("SetReferences(missing) error = %v, want NotFound", err)
	}
}

// testReferencesDroppedOnDelete verifies that deleting an object discards its
// reference list.
func testReferencesDroppedOnDelete(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	list := createTestFile(t, store, testStorage, 0, "/srv", "list.pla", formatUndefined)
	a := createTestFile(t, store, testStorage, 0, "/srv", "a.mp3", formatUndefined)
	if err := store.SetReferences(ctx, list, []uint32{a}); err != nil {
		t.Fatalf("SetReferences() failed: %v", err)
	}
	if err := store.DeleteObject(ctx, list); err != nil {
		t.Fatalf("DeleteObject() failed: %v", err)
	}

	again := createTestFile(t, store, testStorage, 0, "/srv", "list.pla", formatUndefined)
	refs, err := store.GetReferences(ctx, again)
	if err != nil {
		t.Fatalf("GetReferences() failed: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("new object inherited refs %v", refs)
	}
}
