// Package gormdb implements metadata.Store on a SQL database through GORM.
// SQLite is the default dialect; PostgreSQL is supported through the GORM
// postgres driver. The schema is created with AutoMigrate on open.
package gormdb

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/metadata/errors"
)

const handleSequence = "object_handle"

// GORMMetadataStore implements metadata.Store using GORM.
type GORMMetadataStore struct {
	db     *gorm.DB
	config *Config
	closed atomic.Bool
}

var _ metadata.Store = (*GORMMetadataStore)(nil)

// New opens the database described by config and migrates the schema.
func New(config *Config) (*GORMMetadataStore, error) {
	if config == nil {
		config = &Config{}
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch config.Type {
	case DatabaseTypeSQLite:
		if err := os.MkdirAll(filepath.Dir(config.SQLite.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// WAL lets the watcher read while a transfer commits.
		dsn := config.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)

	case DatabaseTypePostgres:
		dialector = postgres.Open(config.Postgres.DSN())

	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	switch config.Type {
	case DatabaseTypePostgres:
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	case DatabaseTypeSQLite:
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(allModels()...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	logger.Debug("SQL metadata store opened", logger.KeyStoreType, string(config.Type))
	return &GORMMetadataStore{db: db, config: config}, nil
}

// NewSQLite opens a SQLite store at path.
func NewSQLite(path string) (*GORMMetadataStore, error) {
	return New(&Config{Type: DatabaseTypeSQLite, SQLite: SQLiteConfig{Path: path}})
}

// DB returns the underlying GORM database connection.
func (s *GORMMetadataStore) DB() *gorm.DB {
	return s.db
}

func (s *GORMMetadataStore) begin(ctx context.Context) (*gorm.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, errors.NewStoreClosedError()
	}
	return s.db.WithContext(ctx), nil
}

// ============================================================================
// Error Mapping
// ============================================================================

// isUniqueConstraintError checks if the error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "duplicate key value violates unique constraint")
}

// mapError passes StoreErrors and context errors through and wraps the rest.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *metadata.StoreError
	if stderrors.As(err, &se) {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.NewIOError(op, err)
}

// ============================================================================
// Handle Allocation
// ============================================================================

// nextHandleTx advances the handle sequence inside tx.
func nextHandleTx(tx *gorm.DB) (uint32, error) {
	var seq sequenceModel
	err := tx.Where("name = ?", handleSequence).First(&seq).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		seq = sequenceModel{Name: handleSequence, Next: 1}
		if err := tx.Create(&seq).Error; err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	}

	h := seq.Next
	if !metadata.ValidHandle(h) {
		return 0, fmt.Errorf("object handles exhausted")
	}
	if err := tx.Model(&sequenceModel{}).Where("name = ?", handleSequence).Update("next", h+1).Error; err != nil {
		return 0, err
	}
	return h, nil
}

// ============================================================================
// Health & Lifecycle
// ============================================================================

func (s *GORMMetadataStore) Healthcheck(ctx context.Context) error {
	if _, err := s.begin(ctx); err != nil {
		return err
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *GORMMetadataStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}
