package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/internal/bytesize"
	"github.com/marmos91/mtpd/pkg/adapter/mtp"
	"github.com/marmos91/mtpd/pkg/transport"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	cfg.API.ApplyDefaults()
	applyDeviceDefaults(&cfg.Device)
	applyTransportDefaults(&cfg.Transport)
	applyFilesDefaults(&cfg.Files)
	applyDatabaseDefaults(&cfg.Database)
	applyStorageDefaults(cfg.Storages)
	applyWatchDefaults(&cfg.Watch)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyDeviceDefaults(cfg *DeviceConfig) {
	if cfg.Manufacturer == "" {
		cfg.Manufacturer = mtp.DefaultManufacturer
	}
	if cfg.Model == "" {
		cfg.Model = mtp.DefaultModel
	}
	if cfg.Version == "" {
		cfg.Version = mtp.DefaultDeviceVersion
	}
	if cfg.SerialNumber == "" {
		if host, err := os.Hostname(); err == nil && len(host) <= 32 {
			cfg.SerialNumber = host
		}
	}
	if cfg.FriendlyName == "" {
		cfg.FriendlyName = cfg.Model
	}
}

func applyTransportDefaults(cfg *TransportConfig) {
	if cfg.Type == "" {
		cfg.Type = transport.TypeDevice
	}
	if cfg.Type == transport.TypeDevice && cfg.DevicePath == "" {
		cfg.DevicePath = transport.DefaultDevicePath
	}
	if cfg.MaxTransferSize == 0 {
		cfg.MaxTransferSize = bytesize.ByteSize(codec.DefaultMaxTransferSize)
	}
	if cfg.MaxRequestSize == 0 {
		cfg.MaxRequestSize = bytesize.ByteSize(codec.MaxCommandSize)
	}
	if cfg.MaxDatasetSize == 0 {
		cfg.MaxDatasetSize = bytesize.ByteSize(mtp.DefaultMaxDatasetSize)
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = mtp.DefaultReconnectDelay
	}
}

func applyFilesDefaults(cfg *FilesConfig) {
	if cfg.FileMode == 0 {
		cfg.FileMode = FileMode(mtp.DefaultFileMode)
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = FileMode(mtp.DefaultDirMode)
	}
}

// applyDatabaseDefaults picks badger and places database files under
// $XDG_DATA_HOME/mtpd.
func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.Type == "" {
		cfg.Type = DatabaseBadger
	}
	if cfg.Badger.Path == "" {
		cfg.Badger.Path = filepath.Join(getDataDir(), "badger")
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = filepath.Join(getDataDir(), "metadata.db")
	}
	if cfg.Postgres.Driver == "" {
		cfg.Postgres.Driver = DriverPgx
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "prefer"
	}
	if cfg.Postgres.MaxConns == 0 {
		cfg.Postgres.MaxConns = 10
	}
	if cfg.Postgres.ConnectTimeout == 0 {
		cfg.Postgres.ConnectTimeout = 5 * time.Second
	}
}

// applyStorageDefaults cleans storage paths and fills descriptions.
// IDs left at zero are assigned by the registry.
func applyStorageDefaults(storages []StorageConfig) {
	for i := range storages {
		st := &storages[i]
		if st.Path != "" {
			st.Path = filepath.Clean(st.Path)
		}
		if st.Description == "" {
			st.Description = filepath.Base(st.Path)
		}
	}
}

func applyWatchDefaults(cfg *WatchConfig) {
	if cfg.Debounce == 0 {
		cfg.Debounce = mtp.DefaultWatchDebounce
	}
}

// getDataDir returns $XDG_DATA_HOME/mtpd, ~/.local/share/mtpd, or "./data"
// when no home directory is known.
func getDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "mtpd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".local", "share", "mtpd")
}

// defaultStoragePath is the storage root used by generated configurations.
func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(getDataDir(), "storage")
	}
	return filepath.Join(home, "MTP")
}

// GetDefaultConfig returns a Config with all default values applied and a
// single storage under the user's home directory.
func GetDefaultConfig() *Config {
	indexOnStart := true
	cfg := &Config{
		Storages: []StorageConfig{{
			ID:          0x00010001,
			Path:        defaultStoragePath(),
			Description: "Internal storage",
		}},
		Watch:        WatchConfig{Enabled: true},
		IndexOnStart: &indexOnStart,
	}

	ApplyDefaults(cfg)
	return cfg
}
