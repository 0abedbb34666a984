package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/mtpd/internal/bytesize"
	"github.com/marmos91/mtpd/pkg/api"
)

// Config represents the mtpd configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (MTPD_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Metrics enables Prometheus metrics, served by the API server
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API configures the HTTP server for health, storage status and metrics
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// Device is the identity reported to hosts
	Device DeviceConfig `mapstructure:"device" yaml:"device"`

	// Transport selects how hosts reach the responder
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`

	// Files controls ownership of files created for the host
	Files FilesConfig `mapstructure:"files" yaml:"files"`

	// Database configures the object metadata store
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Storages are the directories exposed to the host, one MTP storage each
	Storages []StorageConfig `mapstructure:"storages" validate:"required,min=1,dive" yaml:"storages"`

	// Watch reports changes made outside MTP to the host
	Watch WatchConfig `mapstructure:"watch" yaml:"watch"`

	// IndexOnStart reconciles the database with the storages before the
	// first host is served. Default: true
	IndexOnStart *bool `mapstructure:"index_on_start" yaml:"index_on_start"`
}

// ShouldIndexOnStart returns IndexOnStart, true when unset.
func (c *Config) ShouldIndexOnStart() bool {
	return c.IndexOnStart == nil || *c.IndexOnStart
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, one span per MTP transaction is exported to an
// OTLP-compatible collector.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Default: ["cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig enables Prometheus metrics.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// DeviceConfig is the identity reported in DeviceInfo.
type DeviceConfig struct {
	Manufacturer string `mapstructure:"manufacturer" yaml:"manufacturer"`
	Model        string `mapstructure:"model" yaml:"model"`
	Version      string `mapstructure:"version" yaml:"version"`

	// SerialNumber should be unique per device; hosts use it to tell
	// devices apart. Default: the host name
	SerialNumber string `mapstructure:"serial_number" validate:"max=32" yaml:"serial_number"`

	// FriendlyName is the initial DeviceFriendlyName property value.
	FriendlyName string `mapstructure:"friendly_name" yaml:"friendly_name"`

	VendorExtensionDesc string `mapstructure:"vendor_extension_desc" yaml:"vendor_extension_desc,omitempty"`

	// PerceivedDeviceType: 0 generic, 1 still camera, 2 media player,
	// 3 mobile handset, 4 video player, 5 PDA, 6 audio recorder.
	PerceivedDeviceType uint32 `mapstructure:"perceived_device_type" validate:"lte=6" yaml:"perceived_device_type"`
}

// TransportConfig selects the byte channel hosts attach on.
type TransportConfig struct {
	// Type is "device" (USB gadget character device) or "tcp".
	// Default: device
	Type string `mapstructure:"type" validate:"required,oneof=device tcp" yaml:"type"`

	// DevicePath is the gadget character device. Default: /dev/mtp_usb
	DevicePath string `mapstructure:"device_path" yaml:"device_path"`

	// Listen is the TCP listen address, e.g. "127.0.0.1:4242".
	Listen string `mapstructure:"listen" yaml:"listen,omitempty"`

	// MaxTransferSize is the largest single transport read or write.
	// Default: 16KiB
	MaxTransferSize bytesize.ByteSize `mapstructure:"max_transfer_size" yaml:"max_transfer_size"`

	// MaxRequestSize bounds command containers. Default: 32 bytes
	MaxRequestSize bytesize.ByteSize `mapstructure:"max_request_size" yaml:"max_request_size"`

	// MaxDatasetSize bounds datasets received from the host. Default: 1MiB
	MaxDatasetSize bytesize.ByteSize `mapstructure:"max_dataset_size" yaml:"max_dataset_size"`

	// ReconnectDelay is waited after a host detaches. Default: 1s
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
}

// FilesConfig controls files and folders created for the host.
type FilesConfig struct {
	// Group, a name or numeric gid, owns created files when set.
	Group string `mapstructure:"group" yaml:"group,omitempty"`

	// FileMode is written in octal, e.g. "0664".
	FileMode FileMode `mapstructure:"file_mode" yaml:"file_mode"`

	// DirMode is written in octal, e.g. "0775".
	DirMode FileMode `mapstructure:"dir_mode" yaml:"dir_mode"`
}

// StorageConfig is one directory exposed as an MTP storage.
type StorageConfig struct {
	// ID is the 32-bit storage ID, physical index in the upper half and
	// logical index in the lower half. Assigned in order when zero.
	ID uint32 `mapstructure:"id" yaml:"id,omitempty"`

	// Path is the storage root directory.
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	Description string `mapstructure:"description" yaml:"description"`
	VolumeID    string `mapstructure:"volume_id" yaml:"volume_id,omitempty"`
	ReadOnly    bool   `mapstructure:"read_only" yaml:"read_only"`
	Removable   bool   `mapstructure:"removable" yaml:"removable"`

	// ReservedSpace is withheld from the free space reported to the host.
	ReservedSpace bytesize.ByteSize `mapstructure:"reserved_space" yaml:"reserved_space,omitempty"`
}

// WatchConfig configures the filesystem watcher.
type WatchConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Debounce coalesces bursts of filesystem events. Default: 250ms
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// FileMode is a permission mode read and written in octal.
type FileMode uint32

// UnmarshalText parses an octal mode such as "0664" or "664".
func (m *FileMode) UnmarshalText(text []byte) error {
	v, err := parseOctalMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// MarshalText writes the mode as four octal digits.
func (m FileMode) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%04o", uint32(m))), nil
}

// Perm returns the mode as an os.FileMode.
func (m FileMode) Perm() os.FileMode {
	return os.FileMode(m).Perm()
}

func parseOctalMode(s string) (FileMode, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0o")
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid file mode %q: must be octal, e.g. \"0664\"", s)
	}
	if v > 0o777 {
		return 0, fmt.Errorf("invalid file mode %q: only permission bits are allowed", s)
	}
	return FileMode(v), nil
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (MTPD_*)
//  2. Configuration file
//  3. Default values
//
// When no configuration file exists the defaults are returned.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, failing with setup instructions when the
// file does not exist.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  mtpd init\n\n"+
				"Or specify a custom config file:\n"+
				"  mtpd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  mtpd init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return writeConfigFile(path, data)
}

func writeConfigFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	// The database section may carry a password.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment overrides and the config file location.
func setupViper(v *viper.Viper, configPath string) {
	// MTPD_LOGGING_LEVEL=DEBUG overrides logging.level
	v.SetEnvPrefix("MTPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		fileModeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings like "16KiB" and plain numbers to
// bytesize.ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			if v < 0 {
				return nil, fmt.Errorf("negative byte size: %d", v)
			}
			return bytesize.ByteSize(v), nil
		case int64:
			if v < 0 {
				return nil, fmt.Errorf("negative byte size: %d", v)
			}
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			if v < 0 {
				return nil, fmt.Errorf("negative byte size: %v", v)
			}
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// fileModeDecodeHook converts octal strings like "0664" to FileMode. YAML
// integers written with a leading zero already arrive as octal values.
func fileModeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(FileMode(0)) {
			return data, nil
		}
		if s, ok := data.(string); ok {
			return parseOctalMode(s)
		}
		return data, nil
	}
}

// durationDecodeHook converts strings like "30s", "5m" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Raw integers are nanoseconds
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/mtpd, ~/.config/mtpd, or "." when
// no home directory is known.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "mtpd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "mtpd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
