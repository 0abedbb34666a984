// Package postgres implements metadata.Store on PostgreSQL through a pgx
// connection pool. The schema is managed by embedded golang-migrate
// migrations.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/metadata/errors"
)

// PostgresMetadataStore implements metadata.Store using PostgreSQL.
type PostgresMetadataStore struct {
	pool   *pgxpool.Pool
	config *PostgresMetadataStoreConfig
	logger *slog.Logger
	closed atomic.Bool
}

var _ metadata.Store = (*PostgresMetadataStore)(nil)

// NewPostgresMetadataStore connects to PostgreSQL and, when AutoMigrate is
// set, applies pending migrations.
func NewPostgresMetadataStore(ctx context.Context, cfg *PostgresMetadataStoreConfig) (*PostgresMetadataStore, error) {
	cfg.ApplyDefaults()

	log := logger.With("component", "postgres_metadata_store")

	pool, err := createConnectionPool(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, cfg.ConnectionString(), log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	} else {
		log.Info("AutoMigrate is disabled, run 'mtpd migrate' to apply migrations manually")
	}

	log.Info("PostgreSQL metadata store initialized",
		"host", cfg.Host,
		"database", cfg.Database,
		"max_conns", cfg.MaxConns,
	)

	return &PostgresMetadataStore{pool: pool, config: cfg, logger: log}, nil
}

// createConnectionPool creates and pings a pgx pool for cfg.
func createConnectionPool(ctx context.Context, cfg *PostgresMetadataStoreConfig, log *slog.Logger) (*pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod

	if cfg.QueryTimeout > 0 {
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%dms", cfg.QueryTimeout.Milliseconds())
	}

	log.Info("Creating PostgreSQL connection pool",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
		"user", cfg.User,
		"max_conns", cfg.MaxConns,
		"ssl_mode", cfg.SSLMode,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	return pool, nil
}

func (s *PostgresMetadataStore) begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return errors.NewStoreClosedError()
	}
	return nil
}

// Healthcheck pings the database.
func (s *PostgresMetadataStore) Healthcheck(ctx context.Context) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresMetadataStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info("Closing PostgreSQL connection pool")
	s.pool.Close()
	return nil
}
