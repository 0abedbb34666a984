//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/metadata/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) metadata.Store {
		return newTestStore(t)
	})
}

func TestMigrationsIdempotent(t *testing.T) {
	cfg := testConfig
	if err := RunMigrations(context.Background(), &cfg); err != nil {
		t.Fatalf("RunMigrations() failed: %v", err)
	}
	if err := RunMigrations(context.Background(), &cfg); err != nil {
		t.Fatalf("second RunMigrations() failed: %v", err)
	}
}

func TestUnicodePathRebase(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dir := &metadata.Object{StorageID: 0x00010001, Format: 0x3001, Folder: true, Name: "фото", Path: "/srv/фото"}
	if _, err := store.CreateObject(ctx, dir); err != nil {
		t.Fatalf("CreateObject(dir) failed: %v", err)
	}
	leaf := &metadata.Object{StorageID: 0x00010001, Parent: dir.Handle, Format: 0x3801, Name: "día.jpg", Path: "/srv/фото/día.jpg"}
	if _, err := store.CreateObject(ctx, leaf); err != nil {
		t.Fatalf("CreateObject(leaf) failed: %v", err)
	}

	dir.Name = "pics"
	dir.Path = "/srv/pics"
	if err := store.UpdateObject(ctx, dir); err != nil {
		t.Fatalf("UpdateObject() failed: %v", err)
	}

	got, err := store.GetObject(ctx, leaf.Handle)
	if err != nil {
		t.Fatalf("GetObject() failed: %v", err)
	}
	if got.Path != "/srv/pics/día.jpg" {
		t.Errorf("rebased path = %q, want /srv/pics/día.jpg", got.Path)
	}
}
