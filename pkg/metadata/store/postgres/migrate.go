package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql

	"github.com/marmos91/mtpd/pkg/metadata/store/postgres/migrations"
)

// newMigrate builds a migrate instance over the embedded migrations. The
// caller must close db.
func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// runMigrations applies pending migrations. golang-migrate takes a
// PostgreSQL advisory lock, so concurrent responders do not race.
func runMigrations(ctx context.Context, connString string, log *slog.Logger) error {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	m, err := newMigrate(db)
	if err != nil {
		return err
	}

	log.Info("Applying migrations...")
	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("No migrations to apply (database is up to date)")
	case err != nil:
		return fmt.Errorf("migration failed: %w", err)
	default:
		log.Info("Migrations completed successfully")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if err == nil {
		log.Info("Current schema version", "version", version, "dirty", dirty)
		if dirty {
			log.Warn("Database schema is in dirty state - manual intervention may be required")
		}
	}
	return nil
}

// RunMigrations applies pending migrations for cfg. Used by `mtpd migrate`.
func RunMigrations(ctx context.Context, cfg *PostgresMetadataStoreConfig) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return runMigrations(ctx, cfg.ConnectionString(), slog.Default())
}
