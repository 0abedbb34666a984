package gormdb_test

import (
	"path/filepath"
	"testing"

	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/metadata/store/gormdb"
	"github.com/marmos91/mtpd/pkg/metadata/storetest"
)

func TestConformanceSQLite(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) metadata.Store {
		store, err := gormdb.NewSQLite(filepath.Join(t.TempDir(), "metadata.db"))
		if err != nil {
			t.Fatalf("NewSQLite() failed: %v", err)
		}
		t.Cleanup(func() {
			store.Close()
		})
		return store
	})
}

func TestConfigDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")

	cfg := &gormdb.Config{}
	cfg.ApplyDefaults()
	if cfg.Type != gormdb.DatabaseTypeSQLite {
		t.Errorf("Type = %q, want sqlite", cfg.Type)
	}
	if cfg.SQLite.Path != "/data/mtpd/metadata.db" {
		t.Errorf("SQLite.Path = %q", cfg.SQLite.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}

	pg := &gormdb.Config{Type: gormdb.DatabaseTypePostgres}
	pg.ApplyDefaults()
	if pg.Postgres.Port != 5432 || pg.Postgres.SSLMode != "disable" {
		t.Errorf("postgres defaults = %+v", pg.Postgres)
	}
	if err := pg.Validate(); err == nil {
		t.Error("Validate() accepted postgres config without host")
	}

	bad := &gormdb.Config{Type: "oracle"}
	if err := bad.Validate(); err == nil {
		t.Error("Validate() accepted unknown type")
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := gormdb.PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "mtp", SSLMode: "require"}
	want := "host=db port=5432 user=u password=p dbname=mtp sslmode=require"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
