package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/metadata/store/badger"
	"github.com/marmos91/mtpd/pkg/metadata/store/gormdb"
	"github.com/marmos91/mtpd/pkg/metadata/store/memory"
	"github.com/marmos91/mtpd/pkg/metadata/store/postgres"
)

// Database types.
const (
	DatabaseMemory   = "memory"
	DatabaseBadger   = "badger"
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
)

// PostgreSQL drivers.
const (
	DriverPgx  = "pgx"
	DriverGorm = "gorm"
)

// DatabaseConfig selects and configures the object metadata store.
//
// The memory store forgets handles on restart, so hosts see fresh handles
// after every restart. The other stores keep them stable.
type DatabaseConfig struct {
	// Type is memory, badger, sqlite or postgres. Default: badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger sqlite postgres" yaml:"type"`

	Badger   BadgerConfig   `mapstructure:"badger" yaml:"badger"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// BadgerConfig configures the BadgerDB store.
type BadgerConfig struct {
	// Path is the database directory.
	// Default: $XDG_DATA_HOME/mtpd/badger
	Path string `mapstructure:"path" yaml:"path"`

	SyncWrites bool `mapstructure:"sync_writes" yaml:"sync_writes"`
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: $XDG_DATA_HOME/mtpd/metadata.db
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresConfig configures the PostgreSQL store.
type PostgresConfig struct {
	// Driver is pgx (native pool with versioned migrations) or gorm.
	// Default: pgx
	Driver string `mapstructure:"driver" validate:"omitempty,oneof=pgx gorm" yaml:"driver"`

	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// SSLMode is disable, require, verify-ca, verify-full or prefer.
	SSLMode string `mapstructure:"sslmode" validate:"omitempty,oneof=disable require verify-ca verify-full prefer" yaml:"sslmode"`

	MaxConns int `mapstructure:"max_conns" yaml:"max_conns"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`

	// AutoMigrate applies pending migrations on start (pgx driver; gorm
	// always migrates). Default: true
	AutoMigrate *bool `mapstructure:"auto_migrate" yaml:"auto_migrate"`
}

func (c *PostgresConfig) shouldAutoMigrate() bool {
	return c.AutoMigrate == nil || *c.AutoMigrate
}

func (c *PostgresConfig) pgxConfig() *postgres.PostgresMetadataStoreConfig {
	cfg := &postgres.PostgresMetadataStoreConfig{
		Host:           c.Host,
		Port:           c.Port,
		Database:       c.Database,
		User:           c.User,
		Password:       c.Password,
		SSLMode:        c.SSLMode,
		MaxConns:       int32(c.MaxConns),
		ConnectTimeout: c.ConnectTimeout,
		AutoMigrate:    c.shouldAutoMigrate(),
	}
	cfg.ApplyDefaults()
	return cfg
}

func (c *PostgresConfig) gormConfig() *gormdb.Config {
	return &gormdb.Config{
		Type: gormdb.DatabaseTypePostgres,
		Postgres: gormdb.PostgresConfig{
			Host:         c.Host,
			Port:         c.Port,
			Database:     c.Database,
			User:         c.User,
			Password:     c.Password,
			SSLMode:      c.SSLMode,
			MaxOpenConns: c.MaxConns,
		},
	}
}

// CreateMetadataStore opens the store described by cfg.
func CreateMetadataStore(ctx context.Context, cfg DatabaseConfig) (metadata.Store, error) {
	logger.Debug("Creating metadata store", logger.KeyStoreType, cfg.Type)

	switch cfg.Type {
	case DatabaseMemory:
		return memory.NewMemoryMetadataStore(), nil

	case DatabaseBadger:
		if err := os.MkdirAll(cfg.Badger.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create badger directory: %w", err)
		}
		store, err := badger.NewBadgerMetadataStore(ctx, badger.BadgerMetadataStoreConfig{
			DBPath:     cfg.Badger.Path,
			SyncWrites: cfg.Badger.SyncWrites,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	case DatabaseSQLite:
		store, err := gormdb.NewSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return store, nil

	case DatabasePostgres:
		if cfg.Postgres.Driver == DriverGorm {
			store, err := gormdb.New(cfg.Postgres.gormConfig())
			if err != nil {
				return nil, err
			}
			return store, nil
		}
		store, err := postgres.NewPostgresMetadataStore(ctx, cfg.Postgres.pgxConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres metadata store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown database type: %q", cfg.Type)
	}
}

// Migrate brings the database schema up to date. Memory and badger stores
// have no schema and return nil.
func Migrate(ctx context.Context, cfg DatabaseConfig) error {
	switch cfg.Type {
	case DatabaseMemory, DatabaseBadger:
		return nil

	case DatabasePostgres:
		if cfg.Postgres.Driver != DriverGorm {
			return postgres.RunMigrations(ctx, cfg.Postgres.pgxConfig())
		}
	}

	// GORM migrates its models on open.
	store, err := CreateMetadataStore(ctx, cfg)
	if err != nil {
		return err
	}
	return store.Close()
}
