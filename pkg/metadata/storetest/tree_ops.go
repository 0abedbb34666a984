package storetest

import (
	"testing"

	"github.com/marmos91/mtpd/pkg/metadata"
)

// runTreeOpsTests runs all hierarchy and listing conformance tests.
func runTreeOpsTests(t *testing.T, factory StoreFactory) {
	t.Run("ListByParent", func(t *testing.T) { testListByParent(t, factory) })
	t.Run("ListRoot", func(t *testing.T) { testListRoot(t, factory) })
	t.Run("ListByStorageAndFormat", func(t *testing.T) { testListByStorageAndFormat(t, factory) })
	t.Run("ListOrderedByHandle", func(t *testing.T) { testListOrderedByHandle(t, factory) })
	t.Run("DeleteNonEmptyFolder", func(t *testing.T) { testDeleteNonEmptyFolder(t, factory) })
	t.Run("RenameFolderRebasesDescendants", func(t *testing.T) { testRenameFolderRebasesDescendants(t, factory) })
	t.Run("RenameFolderLeavesSiblingPrefix", func(t *testing.T) { testRenameFolderLeavesSiblingPrefix(t, factory) })
	t.Run("MoveObject", func(t *testing.T) { testMoveObject(t, factory) })
	t.Run("Descendants", func(t *testing.T) { testDescendants(t, factory) })
}

// testListByParent verifies that listing a folder returns its direct children only.
func testListByParent(t *testing.T, factory StoreFactory) {
	store := factory(t)

	dir := createTestFolder(t, store, testStorage, 0, "/srv", "docs")
	a := createTestFile(t, store, testStorage, dir, "/srv/docs", "a.txt", formatText)
	sub := createTestFolder(t, store, testStorage, dir, "/srv/docs", "sub")
	createTestFile(t, store, testStorage, sub, "/srv/docs/sub", "deep.txt", formatText)
	createTestFile(t, store, testStorage, 0, "/srv", "top.txt", formatText)

	objs, err := store.ListObjects(t.Context(), metadata.Filter{ByParent: true, Parent: dir})
	if err != nil {
		t.Fatalf("ListObjects() failed: %v", err)
	}
	if got := metadata.Handles(objs); !equalHandles(got, []uint32{a, sub}) {
		t.Errorf("children = %v, want %v", got, []uint32{a, sub})
	}
}

// testListRoot verifies that Parent 0 selects objects at the storage root.
func testListRoot(t *testing.T, factory StoreFactory) {
	store := factory(t)

	dir := createTestFolder(t, store, testStorage, 0, "/srv", "docs")
	createTestFile(t, store, testStorage, dir, "/srv/docs", "inner.txt", formatText)
	top := createTestFile(t, store, testStorage, 0, "/srv", "top.txt", formatText)
	createTestFile(t, store, otherStorage, 0, "/mnt", "elsewhere.txt", formatText)

	objs, err := store.ListObjects(t.Context(), metadata.Filter{StorageID: testStorage, ByParent: true, Parent: 0})
	if err != nil {
		t.Fatalf("ListObjects() failed: %v", err)
	}
	if got := metadata.Handles(objs); !equalHandles(got, []uint32{dir, top}) {
		t.Errorf("root objects = %v, want %v", got, []uint32{dir, top})
	}
}

// testListByStorageAndFormat verifies the storage and format filters.
func testListByStorageAndFormat(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	txt := createTestFile(t, store, testStorage, 0, "/srv", "a.txt", formatText)
	jpg := createTestFile(t, store, testStorage, 0, "/srv", "b.jpg", formatEXIF)
	other := createTestFile(t, store, otherStorage, 0, "/mnt", "c.txt", formatText)

	all, err := store.ListObjects(ctx, metadata.Filter{})
	if err != nil {
		t.Fatalf("ListObjects(all) failed: %v", err)
	}
	if got := metadata.Handles(all); !equalHandles(got, []uint32{txt, jpg, other}) {
		t.Errorf("all = %v", got)
	}

	byStorage, err := store.ListObjects(ctx, metadata.Filter{StorageID: otherStorage})
	if err != nil {
		t.Fatalf("ListObjects(storage) failed: %v", err)
	}
	if got := metadata.Handles(byStorage); !equalHandles(got, []uint32{other}) {
		t.Errorf("by storage = %v, want [%d]", got, other)
	}

	byFormat, err := store.ListObjects(ctx, metadata.Filter{Format: formatText})
	if err != nil {
		t.Fatalf("ListObjects(format) failed: %v", err)
	}
	if got := metadata.Handles(byFormat); !equalHandles(got, []uint32{txt, other}) {
		t.Errorf("by format = %v, want [%d %d]", got, txt, other)
	}

	none, err := store.ListObjects(ctx, metadata.Filter{StorageID: testStorage, Format: formatUndefined})
	if err != nil {
		t.Fatalf("ListObjects(none) failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no matches, got %v", metadata.Handles(none))
	}
}

// testListOrderedByHandle verifies listing order after deletes and re-creates.
func testListOrderedByHandle(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	var handles []uint32
	for _, name := range []string{"e", "d", "c", "b", "a"} {
		handles = append(handles, createTestFile(t, store, testStorage, 0, "/srv", name, formatText))
	}
	if err := store.DeleteObject(ctx, handles[1]); err != nil {
		t.Fatalf("DeleteObject() failed: %v", err)
	}
	again := createTestFile(t, store, testStorage, 0, "/srv", "d", formatText)

	objs, err := store.ListObjects(ctx, metadata.Filter{StorageID: testStorage})
	if err != nil {
		t.Fatalf("ListObjects() failed: %v", err)
	}
	want := []uint32{handles[0], handles[2], handles[3], handles[4], again}
	if got := metadata.Handles(objs); !equalHandles(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

// testDeleteNonEmptyFolder verifies that folders with children cannot be removed.
func testDeleteNonEmptyFolder(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	dir := createTestFolder(t, store, testStorage, 0, "/srv", "full")
	child := createTestFile(t, store, testStorage, dir, "/srv/full", "x", formatText)

	if err := store.DeleteObject(ctx, dir); !metadata.IsNotEmptyError(err) {
		t.Fatalf("DeleteObject(non-empty) error = %v, want NotEmpty", err)
	}
	if err := store.DeleteObject(ctx, child); err != nil {
		t.Fatalf("DeleteObject(child) failed: %v", err)
	}
	if err := store.DeleteObject(ctx, dir); err != nil {
		t.Errorf("DeleteObject(emptied folder) failed: %v", err)
	}
}

// testRenameFolderRebasesDescendants verifies that renaming a folder moves the
// paths of everything below it.
func testRenameFolderRebasesDescendants(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	dir := createTestFolder(t, store, testStorage, 0, "/srv", "old")
	sub := createTestFolder(t, store, testStorage, dir, "/srv/old", "sub")
	leaf := createTestFile(t, store, testStorage, sub, "/srv/old/sub", "leaf.txt", formatText)

	obj := mustGet(t, store, dir)
	obj.Name = "new"
	obj.Path = "/srv/new"
	if err := store.UpdateObject(ctx, obj); err != nil {
		t.Fatalf("UpdateObject() failed: %v", err)
	}

	if got := mustGet(t, store, sub).Path; got != "/srv/new/sub" {
		t.Errorf("sub path = %q, want /srv/new/sub", got)
	}
	if got := mustGet(t, store, leaf).Path; got != "/srv/new/sub/leaf.txt" {
		t.Errorf("leaf path = %q, want /srv/new/sub/leaf.txt", got)
	}
	got, err := store.LookupPath(ctx, "/srv/new/sub/leaf.txt")
	if err != nil || got.Handle != leaf {
		t.Errorf("LookupPath(rebased) = %v, %v", got, err)
	}
	if _, err := store.LookupPath(ctx, "/srv/old/sub/leaf.txt"); !metadata.IsNotFoundError(err) {
		t.Errorf("old descendant path still resolves: %v", err)
	}
}

// testRenameFolderLeavesSiblingPrefix verifies that a sibling whose name
// shares the folder's name as a prefix is not rebased.
func testRenameFolderLeavesSiblingPrefix(t *testing.T, factory StoreFactory) {
	store := factory(t)

	dir := createTestFolder(t, store, testStorage, 0, "/srv", "a")
	sibling := createTestFile(t, store, testStorage, 0, "/srv", "ab.txt", formatText)

	obj := mustGet(t, store, dir)
	obj.Name = "z"
	obj.Path = "/srv/z"
	if err := store.UpdateObject(t.Context(), obj); err != nil {
		t.Fatalf("UpdateObject() failed: %v", err)
	}
	if got := mustGet(t, store, sibling).Path; got != "/srv/ab.txt" {
		t.Errorf("sibling path = %q, want /srv/ab.txt", got)
	}
}

// testMoveObject verifies re-parenting and storage changes through UpdateObject.
func testMoveObject(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	src := createTestFolder(t, store, testStorage, 0, "/srv", "src")
	f := createTestFile(t, store, testStorage, src, "/srv/src", "f.txt", formatText)
	dst := createTestFolder(t, store, otherStorage, 0, "/mnt", "dst")

	obj := mustGet(t, store, f)
	obj.StorageID = otherStorage
	obj.Parent = dst
	obj.Path = "/mnt/dst/f.txt"
	if err := store.UpdateObject(ctx, obj); err != nil {
		t.Fatalf("UpdateObject() failed: %v", err)
	}

	left, err := store.ListObjects(ctx, metadata.Filter{ByParent: true, Parent: src})
	if err != nil {
		t.Fatalf("ListObjects(src) failed: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("source still lists %v", metadata.Handles(left))
	}
	moved, err := store.ListObjects(ctx, metadata.Filter{StorageID: otherStorage, ByParent: true, Parent: dst})
	if err != nil {
		t.Fatalf("ListObjects(dst) failed: %v", err)
	}
	if got := metadata.Handles(moved); !equalHandles(got, []uint32{f}) {
		t.Errorf("destination lists %v, want [%d]", got, f)
	}
	if err := store.DeleteObject(ctx, src); err != nil {
		t.Errorf("DeleteObject(emptied source) failed: %v", err)
	}
}

// testDescendants verifies the deepest-first helper used by recursive deletes.
func testDescendants(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	root := createTestFolder(t, store, testStorage, 0, "/srv", "r")
	a := createTestFolder(t, store, testStorage, root, "/srv/r", "a")
	b := createTestFile(t, store, testStorage, a, "/srv/r/a", "b", formatText)
	c := createTestFile(t, store, testStorage, root, "/srv/r", "c", formatText)

	objs, err := metadata.Descendants(ctx, store, root)
	if err != nil {
		t.Fatalf("Descendants() failed: %v", err)
	}
	if len(objs) != 3 {
		t.Fatalf("Descendants() returned %d objects, want 3", len(objs))
	}

	pos := make(map[uint32]int)
	for i, o := range objs {
		pos[o.Handle] = i
	}
	if pos[b] > pos[a] {
		t.Errorf("child %d listed after its folder %d", b, a)
	}
	if _, ok := pos[c]; !ok {
		t.Errorf("file %d missing from descendants", c)
	}

	for _, o := range objs {
		if err := store.DeleteObject(ctx, o.Handle); err != nil {
			t.Fatalf("DeleteObject(%d) failed: %v", o.Handle, err)
		}
	}
	if err := store.DeleteObject(ctx, root); err != nil {
		t.Errorf("DeleteObject(root) failed: %v", err)
	}
}
