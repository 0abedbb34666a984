package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/mtpd/internal/bytesize"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_MinimalConfig(t *testing.T) {
	root := t.TempDir()
	configPath := writeConfig(t, `
logging:
  level: "debug"

storages:
  - path: "`+yamlSafePath(root)+`"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Transport.Type != "device" || cfg.Transport.DevicePath != "/dev/mtp_usb" {
		t.Errorf("Expected device transport on /dev/mtp_usb, got %q %q", cfg.Transport.Type, cfg.Transport.DevicePath)
	}
	if cfg.Database.Type != DatabaseBadger {
		t.Errorf("Expected default database 'badger', got %q", cfg.Database.Type)
	}
	if !cfg.ShouldIndexOnStart() {
		t.Error("Expected index_on_start to default to true")
	}
	if len(cfg.Storages) != 1 || cfg.Storages[0].Description != filepath.Base(root) {
		t.Errorf("Expected one storage described by its directory name, got %+v", cfg.Storages)
	}
}

func TestLoad_CustomTypes(t *testing.T) {
	root := t.TempDir()
	configPath := writeConfig(t, `
transport:
  type: tcp
  listen: "127.0.0.1:4242"
  max_transfer_size: 64KiB
  max_dataset_size: "2 MiB"
  reconnect_delay: 250ms

files:
  file_mode: "0640"
  dir_mode: 0750

storages:
  - id: 0x00020001
    path: "`+yamlSafePath(root)+`"
    reserved_space: 1Gi
    read_only: true

index_on_start: false
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Transport.MaxTransferSize != 64*bytesize.KiB {
		t.Errorf("Expected max_transfer_size 64KiB, got %d", cfg.Transport.MaxTransferSize)
	}
	if cfg.Transport.MaxDatasetSize != 2*bytesize.MiB {
		t.Errorf("Expected max_dataset_size 2MiB, got %d", cfg.Transport.MaxDatasetSize)
	}
	if cfg.Transport.ReconnectDelay != 250*time.Millisecond {
		t.Errorf("Expected reconnect_delay 250ms, got %v", cfg.Transport.ReconnectDelay)
	}
	if cfg.Files.FileMode != 0o640 {
		t.Errorf("Expected file_mode 0640, got %o", cfg.Files.FileMode)
	}
	if cfg.Files.DirMode != 0o750 {
		t.Errorf("Expected dir_mode 0750, got %o", cfg.Files.DirMode)
	}
	st := cfg.Storages[0]
	if st.ID != 0x00020001 || st.ReservedSpace != bytesize.GiB || !st.ReadOnly {
		t.Errorf("Unexpected storage config: %+v", st)
	}
	if cfg.ShouldIndexOnStart() {
		t.Error("Expected index_on_start false")
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: INFO
transport:
  type: device
  listen: ":4242"
storages:
  - path: "`+yamlSafePath(t.TempDir())+`"
`)
	t.Setenv("MTPD_LOGGING_LEVEL", "WARN")
	t.Setenv("MTPD_TRANSPORT_TYPE", "tcp")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected env override 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Transport.Type != "tcp" {
		t.Errorf("Expected env override 'tcp', got %q", cfg.Transport.Type)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil || len(cfg.Storages) != 1 {
		t.Fatal("Expected default config with one storage")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("Expected default API port 9090, got %d", cfg.API.Port)
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad size", "transport:\n  max_transfer_size: lots\nstorages:\n  - path: /srv/mtp\n"},
		{"bad mode", "files:\n  file_mode: rw-r--r--\nstorages:\n  - path: /srv/mtp\n"},
		{"bad duration", "shutdown_timeout: soon\nstorages:\n  - path: /srv/mtp\n"},
		{"no storages", "logging:\n  level: INFO\n"},
		{"bad transport", "transport:\n  type: bluetooth\nstorages:\n  - path: /srv/mtp\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestFileMode(t *testing.T) {
	var m FileMode
	if err := m.UnmarshalText([]byte("0o755")); err != nil || m != 0o755 {
		t.Errorf("UnmarshalText(0o755) = %o, %v", m, err)
	}
	if err := m.UnmarshalText([]byte("1777")); err == nil {
		t.Error("Expected error for mode with sticky bit")
	}
	if err := m.UnmarshalText([]byte("0698")); err == nil {
		t.Error("Expected error for non-octal mode")
	}

	text, _ := FileMode(0o664).MarshalText()
	if string(text) != "0664" {
		t.Errorf("MarshalText = %q, want 0664", text)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storages[0].Path = t.TempDir()
	cfg.Transport.MaxTransferSize = 512 * bytesize.KiB
	cfg.Files.FileMode = 0o600

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %o", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Transport.MaxTransferSize != 512*bytesize.KiB {
		t.Errorf("Expected max_transfer_size to survive, got %d", loaded.Transport.MaxTransferSize)
	}
	if loaded.Files.FileMode != 0o600 {
		t.Errorf("Expected file_mode to survive, got %o", loaded.Files.FileMode)
	}
	if loaded.Storages[0].ID != 0x00010001 {
		t.Errorf("Expected storage id to survive, got 0x%08X", loaded.Storages[0].ID)
	}
}
