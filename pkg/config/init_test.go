package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if configPath != GetDefaultConfigPath() {
		t.Errorf("Expected %s, got %s", GetDefaultConfigPath(), configPath)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	expectedSections := []string{
		"# mtpd Configuration File",
		"logging:",
		"device:",
		"transport:",
		"database:",
		"storages:",
		"file_mode: \"0664\"",
		"max_transfer_size: 16KiB",
	}
	for _, section := range expectedSections {
		if !strings.Contains(string(content), section) {
			t.Errorf("Config file missing %q", section)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}
	if _, err := InitConfig(false); err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if _, err := InitConfig(true); err != nil {
		t.Fatalf("InitConfig with force failed: %v", err)
	}
}

func TestInitConfigToPath_Force(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "custom", "mtpd.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}
	if err := os.WriteFile(configPath, []byte("stale"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := InitConfigToPath(configPath, true); err != nil {
		t.Fatalf("InitConfigToPath with force failed: %v", err)
	}

	content, _ := os.ReadFile(configPath)
	if strings.Contains(string(content), "stale") {
		t.Error("Expected config to be overwritten")
	}
}

func TestGeneratedConfigIsLoadable(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Generated config failed to load: %v", err)
	}
	if cfg.Transport.Type != "device" {
		t.Errorf("Expected device transport, got %q", cfg.Transport.Type)
	}
	if !cfg.Watch.Enabled || !cfg.ShouldIndexOnStart() {
		t.Error("Expected watcher and indexing enabled")
	}
}
