package config

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/pkg/adapter/mtp"
	"github.com/marmos91/mtpd/pkg/metrics"
	"github.com/marmos91/mtpd/pkg/registry"
	"github.com/marmos91/mtpd/pkg/transport"
)

// InitializeRegistry creates a Registry holding every configured storage.
// Missing storage roots are created with the configured directory mode.
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	reg, err := config.InitializeRegistry(cfg)
//	if err != nil {
//	    log.Fatalf("Failed to initialize registry: %v", err)
//	}
func InitializeRegistry(cfg *Config) (*registry.Registry, error) {
	logger.Debug("Initializing registry from configuration")

	if len(cfg.Storages) == 0 {
		return nil, fmt.Errorf("no storages configured")
	}

	reg := registry.NewRegistry()
	for i, sc := range cfg.Storages {
		if err := os.MkdirAll(sc.Path, cfg.Files.DirMode.Perm()); err != nil {
			return nil, fmt.Errorf("storage #%d: failed to create %s: %w", i, sc.Path, err)
		}

		st, err := reg.AddStorage(&registry.StorageConfig{
			ID:            sc.ID,
			Path:          sc.Path,
			Description:   sc.Description,
			VolumeID:      sc.VolumeID,
			ReadOnly:      sc.ReadOnly,
			Removable:     sc.Removable,
			ReservedSpace: sc.ReservedSpace.Uint64(),
		})
		if err != nil {
			return nil, fmt.Errorf("storage #%d: %w", i, err)
		}

		logger.Info("Storage registered",
			logger.StorageID(st.ID),
			logger.Path(st.Path),
			"read_only", st.ReadOnly)
	}

	return reg, nil
}

// CreateTransport creates the transport hosts attach on.
func CreateTransport(cfg TransportConfig) (transport.Transport, error) {
	switch cfg.Type {
	case transport.TypeDevice:
		return transport.NewUSBDevice(cfg.DevicePath), nil
	case transport.TypeTCP:
		if cfg.Listen == "" {
			return nil, fmt.Errorf("tcp transport requires listen to be set")
		}
		return transport.NewTCP(cfg.Listen), nil
	default:
		return nil, fmt.Errorf("unknown transport type: %q", cfg.Type)
	}
}

// ServerConfig converts cfg into the responder configuration.
func ServerConfig(cfg *Config) mtp.ServerConfig {
	return mtp.ServerConfig{
		Manufacturer:        cfg.Device.Manufacturer,
		Model:               cfg.Device.Model,
		DeviceVersion:       cfg.Device.Version,
		SerialNumber:        cfg.Device.SerialNumber,
		FriendlyName:        cfg.Device.FriendlyName,
		VendorExtensionDesc: cfg.Device.VendorExtensionDesc,
		PerceivedDeviceType: cfg.Device.PerceivedDeviceType,
		MaxTransferSize:     cfg.Transport.MaxTransferSize.Int(),
		MaxRequestSize:      uint32(cfg.Transport.MaxRequestSize),
		MaxDatasetSize:      cfg.Transport.MaxDatasetSize.Int(),
		FileMode:            cfg.Files.FileMode.Perm(),
		DirMode:             cfg.Files.DirMode.Perm(),
		FileGroup:           cfg.Files.Group,
	}
}

// AdapterConfig converts cfg into the adapter lifecycle configuration.
func AdapterConfig(cfg *Config) mtp.AdapterConfig {
	return mtp.AdapterConfig{
		ReconnectDelay: cfg.Transport.ReconnectDelay,
		IndexOnStart:   cfg.ShouldIndexOnStart(),
		Watch:          cfg.Watch.Enabled,
		WatchDebounce:  cfg.Watch.Debounce,
	}
}

// InitializeMetrics creates the metrics registry and the MTP metrics when
// enabled. Both results are nil otherwise.
func InitializeMetrics(cfg *Config) (*prometheus.Registry, metrics.MTPMetrics) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}
	reg := metrics.InitRegistry()
	return reg, metrics.NewMTPMetrics()
}
