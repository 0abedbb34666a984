package config

import (
	"strings"
	"testing"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := GetDefaultConfig()
	cfg.Storages = []StorageConfig{{ID: 0x00010001, Path: t.TempDir()}}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig(t)); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validConfig(t)
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidAPIPort(t *testing.T) {
	cfg := validConfig(t)
	cfg.API.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("Expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
		want   string
	}{
		{
			name:   "no storages",
			mutate: func(cfg *Config) { cfg.Storages = nil },
			want:   "required",
		},
		{
			name:   "storage without path",
			mutate: func(cfg *Config) { cfg.Storages[0].Path = "" },
			want:   "required",
		},
		{
			name:   "relative path",
			mutate: func(cfg *Config) { cfg.Storages[0].Path = "media/photos" },
			want:   "must be absolute",
		},
		{
			name: "duplicate id",
			mutate: func(cfg *Config) {
				cfg.Storages = append(cfg.Storages, StorageConfig{ID: cfg.Storages[0].ID, Path: "/srv/other"})
			},
			want: "already used",
		},
		{
			name: "duplicate path",
			mutate: func(cfg *Config) {
				cfg.Storages = append(cfg.Storages, StorageConfig{Path: cfg.Storages[0].Path + "/"})
			},
			want: "already used",
		},
		{
			name: "nested path",
			mutate: func(cfg *Config) {
				cfg.Storages = append(cfg.Storages, StorageConfig{Path: cfg.Storages[0].Path + "/DCIM"})
			},
			want: "overlaps",
		},
		{
			name:   "id without logical storage",
			mutate: func(cfg *Config) { cfg.Storages[0].ID = 0x00030000 },
			want:   "invalid storage id",
		},
		{
			name: "tcp without listen",
			mutate: func(cfg *Config) {
				cfg.Transport.Type = "tcp"
				cfg.Transport.Listen = ""
			},
			want: "listen is required",
		},
		{
			name:   "device without path",
			mutate: func(cfg *Config) { cfg.Transport.DevicePath = "" },
			want:   "device_path is required",
		},
		{
			name:   "tiny transfer size",
			mutate: func(cfg *Config) { cfg.Transport.MaxTransferSize = 16 },
			want:   "max_transfer_size",
		},
		{
			name:   "request larger than transfer",
			mutate: func(cfg *Config) { cfg.Transport.MaxRequestSize = cfg.Transport.MaxTransferSize + 1 },
			want:   "max_request_size",
		},
		{
			name:   "unknown database",
			mutate: func(cfg *Config) { cfg.Database.Type = "mysql" },
			want:   "oneof",
		},
		{
			name:   "postgres without host",
			mutate: func(cfg *Config) { cfg.Database.Type = DatabasePostgres },
			want:   "host is required",
		},
		{
			name:   "unknown postgres driver",
			mutate: func(cfg *Config) { cfg.Database.Postgres.Driver = "odbc" },
			want:   "oneof",
		},
		{
			name:   "sample rate above one",
			mutate: func(cfg *Config) { cfg.Telemetry.SampleRate = 1.5 },
			want:   "lte",
		},
		{
			name:   "serial number too long",
			mutate: func(cfg *Config) { cfg.Device.SerialNumber = strings.Repeat("9", 33) },
			want:   "max",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got: %v", tt.want, err)
			}
		})
	}
}
