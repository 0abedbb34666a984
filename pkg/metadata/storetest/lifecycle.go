package storetest

import (
	"context"
	"testing"

	"github.com/marmos91/mtpd/pkg/metadata"
)

// runLifecycleTests runs health and shutdown conformance tests.
func runLifecycleTests(t *testing.T, factory StoreFactory) {
	t.Run("Healthcheck", func(t *testing.T) { testHealthcheck(t, factory) })
	t.Run("CancelledContext", func(t *testing.T) { testCancelledContext(t, factory) })
	t.Run("UseAfterClose", func(t *testing.T) { testUseAfterClose(t, factory) })
}

func testHealthcheck(t *testing.T, factory StoreFactory) {
	store := factory(t)

	if err := store.Healthcheck(t.Context()); err != nil {
		t.Errorf("Healthcheck() failed: %v", err)
	}
}

// testCancelledContext verifies that operations honour context cancellation.
func testCancelledContext(t *testing.T, factory StoreFactory) {
	store := factory(t)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := store.CreateObject(ctx, &metadata.Object{StorageID: testStorage, Name: "x", Path: "/srv/x"})
	if err == nil {
		t.Error("CreateObject() with cancelled context succeeded")
	}
	if _, err := store.ListObjects(ctx, metadata.Filter{}); err == nil {
		t.Error("ListObjects() with cancelled context succeeded")
	}
}

// testUseAfterClose verifies that a closed store refuses further work.
func testUseAfterClose(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	h := createTestFile(t, store, testStorage, 0, "/srv", "x", formatText)
	if err := store.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	if _, err := store.GetObject(ctx, h); err == nil {
		t.Error("GetObject() after Close succeeded")
	}
	if _, err := store.ListObjects(ctx, metadata.Filter{}); err == nil {
		t.Error("ListObjects() after Close succeeded")
	}
	if err := store.Healthcheck(ctx); err == nil {
		t.Error("Healthcheck() after Close succeeded")
	}
}
