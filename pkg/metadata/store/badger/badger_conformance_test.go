package badger_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/metadata/store/badger"
	"github.com/marmos91/mtpd/pkg/metadata/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) metadata.Store {
		dbPath := filepath.Join(t.TempDir(), "metadata.db")
		store, err := badger.NewBadgerMetadataStoreWithDefaults(context.Background(), dbPath)
		if err != nil {
			t.Fatalf("NewBadgerMetadataStoreWithDefaults() failed: %v", err)
		}
		t.Cleanup(func() {
			store.Close()
		})
		return store
	})
}

func TestHandlesSurviveReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "metadata.db")

	store, err := badger.NewBadgerMetadataStoreWithDefaults(ctx, dbPath)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	obj := &metadata.Object{StorageID: 0x00010001, Format: 0x3004, Name: "a.txt", Path: "/srv/a.txt"}
	h, err := store.CreateObject(ctx, obj)
	if err != nil {
		t.Fatalf("CreateObject() failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	store, err = badger.NewBadgerMetadataStoreWithDefaults(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	got, err := store.LookupPath(ctx, "/srv/a.txt")
	if err != nil {
		t.Fatalf("LookupPath() after reopen failed: %v", err)
	}
	if got.Handle != h || got.PUID != obj.PUID {
		t.Errorf("reopened record = %d/%s, want %d/%s", got.Handle, got.PUID, h, obj.PUID)
	}

	next, err := store.CreateObject(ctx, &metadata.Object{StorageID: 0x00010001, Name: "b.txt", Path: "/srv/b.txt"})
	if err != nil {
		t.Fatalf("CreateObject() after reopen failed: %v", err)
	}
	if next <= h {
		t.Errorf("handle %d allocated after reopen is not above %d", next, h)
	}
}

func TestInMemoryMode(t *testing.T) {
	store, err := badger.NewBadgerMetadataStore(context.Background(), badger.BadgerMetadataStoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadgerMetadataStore(in_memory) failed: %v", err)
	}
	defer store.Close()

	if err := store.Healthcheck(context.Background()); err != nil {
		t.Errorf("Healthcheck() failed: %v", err)
	}
}

func TestRequiresPath(t *testing.T) {
	if _, err := badger.NewBadgerMetadataStore(context.Background(), badger.BadgerMetadataStoreConfig{}); err == nil {
		t.Error("expected error for missing db_path")
	}
}
