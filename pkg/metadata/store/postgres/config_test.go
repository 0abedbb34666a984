package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/marmos91/mtpd/pkg/metadata"
)

func TestConfigDefaults(t *testing.T) {
	cfg := &PostgresMetadataStoreConfig{Host: "db", Database: "mtp", User: "u", Password: "p"}
	cfg.ApplyDefaults()

	if cfg.Port != 5432 {
		t.Errorf("Port = %d, want 5432", cfg.Port)
	}
	if cfg.MaxConns != 10 || cfg.MinConns != 1 {
		t.Errorf("MaxConns/MinConns = %d/%d", cfg.MaxConns, cfg.MinConns)
	}
	if cfg.ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout = %v", cfg.ConnectTimeout)
	}
	if cfg.SSLMode != "prefer" {
		t.Errorf("SSLMode = %q, want prefer", cfg.SSLMode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}

	want := "host=db port=5432 dbname=mtp user=u password=p sslmode=prefer connect_timeout=5"
	if got := cfg.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *PostgresMetadataStoreConfig {
		cfg := &PostgresMetadataStoreConfig{Host: "db", Database: "mtp", User: "u", Password: "p"}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*PostgresMetadataStoreConfig)
	}{
		{"NoHost", func(c *PostgresMetadataStoreConfig) { c.Host = "" }},
		{"NoDatabase", func(c *PostgresMetadataStoreConfig) { c.Database = "" }},
		{"NoUser", func(c *PostgresMetadataStoreConfig) { c.User = "" }},
		{"NoPassword", func(c *PostgresMetadataStoreConfig) { c.Password = "" }},
		{"MinAboveMax", func(c *PostgresMetadataStoreConfig) { c.MinConns = 20 }},
		{"BadSSLMode", func(c *PostgresMetadataStoreConfig) { c.SSLMode = "sometimes" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() accepted invalid config")
			}
		})
	}
}

func TestMapPgError(t *testing.T) {
	if mapPgError(nil, "op", "") != nil {
		t.Error("mapPgError(nil) should be nil")
	}

	tests := []struct {
		name string
		err  error
		want metadata.ErrorCode
	}{
		{"NoRows", pgx.ErrNoRows, metadata.ErrNotFound},
		{"UniqueViolation", &pgconn.PgError{Code: "23505"}, metadata.ErrAlreadyExists},
		{"ForeignKey", &pgconn.PgError{Code: "23503"}, metadata.ErrNotFound},
		{"SequenceExhausted", &pgconn.PgError{Code: "2200H"}, metadata.ErrIOError},
		{"Other", errors.New("connection reset"), metadata.ErrIOError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var se *metadata.StoreError
			if !errors.As(mapPgError(tt.err, "op", "/p"), &se) {
				t.Fatalf("mapPgError(%v) did not return a StoreError", tt.err)
			}
			if se.Code != tt.want {
				t.Errorf("code = %v, want %v", se.Code, tt.want)
			}
		})
	}

	passthrough := metadata.StoreError{Code: metadata.ErrNotEmpty}
	if got := mapPgError(&passthrough, "op", ""); got != error(&passthrough) {
		t.Errorf("StoreError was rewrapped: %v", got)
	}
}
