package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/pkg/adapter/mtp"
	"github.com/marmos91/mtpd/pkg/config"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Reconcile the metadata database with the storages",
	Long: `Walk every storage root and bring the metadata database in line with it.

Files without a record get a handle, records whose file changed are
refreshed and records whose file is gone are removed. The daemon does the
same on start unless index_on_start is false; run this while it is stopped
to prepare a large storage ahead of time.

Examples:
  mtpd index
  mtpd index --config /etc/mtpd/config.yaml`,
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := config.CreateMetadataStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = store.Close() }()

	reg, err := config.InitializeRegistry(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storages: %w", err)
	}

	start := time.Now()
	stats, err := mtp.NewIndexer(store, reg).IndexAll(ctx)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	logger.Info("Index complete", logger.DurationMs(float64(time.Since(start).Microseconds())/1000))

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d storages: %d added, %d updated, %d removed\n",
		reg.Count(), stats.Added, stats.Updated, stats.Removed)
	if stats.Added+stats.Updated+stats.Removed == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Database already up to date")
	}
	return nil
}
