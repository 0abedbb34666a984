package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/internal/telemetry"
	"github.com/marmos91/mtpd/pkg/adapter/mtp"
	"github.com/marmos91/mtpd/pkg/api"
	"github.com/marmos91/mtpd/pkg/config"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/mtpd/pkg/metrics/prometheus"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the MTP responder",
	Long: `Start the MTP responder with the specified configuration.

By default, the responder runs in the background (daemon mode). Use
--foreground to run in the foreground for debugging or when managed by a
process supervisor such as systemd.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/mtpd/config.yaml.

Examples:
  # Start in background (default)
  mtpd start

  # Start in foreground
  mtpd start --foreground

  # Serve over TCP for testing without a USB gadget
  MTPD_TRANSPORT_TYPE=tcp MTPD_TRANSPORT_LISTEN=127.0.0.1:4242 mtpd start -f

  # Start with environment variable overrides
  MTPD_LOGGING_LEVEL=DEBUG mtpd start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/mtpd/mtpd.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/mtpd/mtpd.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "mtpd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("Telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "mtpd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("Profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("mtpd starting", "version", Version, "commit", Commit)
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	promRegistry, mtpMetrics := config.InitializeMetrics(cfg)
	if promRegistry == nil {
		logger.Info("Metrics collection disabled")
	}

	store, err := config.CreateMetadataStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Metadata store close error", logger.Err(err))
		}
	}()
	logger.Info("Metadata store opened", logger.KeyStoreType, cfg.Database.Type)

	reg, err := config.InitializeRegistry(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storages: %w", err)
	}

	tr, err := config.CreateTransport(cfg.Transport)
	if err != nil {
		return err
	}

	var opts []mtp.Option
	if mtpMetrics != nil {
		opts = append(opts, mtp.WithMetrics(mtpMetrics))
	}
	server, err := mtp.NewServer(config.ServerConfig(cfg), store, reg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create responder: %w", err)
	}
	adapter := mtp.NewAdapter(config.AdapterConfig(cfg), server, tr)

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 2)
	go func() {
		serverDone <- adapter.Serve(ctx)
	}()

	if cfg.API.IsEnabled() {
		apiServer := api.NewServer(cfg.API, api.Deps{
			Store:    store,
			Registry: reg,
			Sessions: server,
			Metrics:  promRegistry,
		})
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				serverDone <- err
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Responder is running. Press Ctrl+C to stop.", logger.KeyTransport, tr.String())

	var runErr error
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
	case runErr = <-serverDone:
		if runErr != nil {
			logger.Error("Responder error", logger.Err(runErr))
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := adapter.Stop(shutdownCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("Shutdown timeout exceeded", "timeout", cfg.ShutdownTimeout)
		}
		return err
	}

	logger.Info("Responder stopped")
	return runErr
}
