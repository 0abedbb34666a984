package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/pkg/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Apply pending schema migrations to the metadata database.

SQLite and PostgreSQL databases hold the object handle table. Run this after
upgrading mtpd, or before the first start when postgres.auto_migrate is off.
Memory and BadgerDB stores have no schema; the command is a no-op for them.

Examples:
  # Run migrations with default config
  mtpd migrate

  # Run migrations with custom config
  mtpd migrate --config /etc/mtpd/config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("Running database migrations", logger.KeyStoreType, cfg.Database.Type)

	if err := config.Migrate(context.Background(), cfg.Database); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Migrations completed successfully (database type: %s)\n", cfg.Database.Type)
	return nil
}
