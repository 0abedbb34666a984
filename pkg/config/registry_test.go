package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/mtpd/internal/bytesize"
	"github.com/marmos91/mtpd/pkg/transport"
)

func TestInitializeRegistry(t *testing.T) {
	root := t.TempDir()
	cfg := &Config{Storages: []StorageConfig{
		{ID: 0x00010001, Path: filepath.Join(root, "internal")},
		{Path: filepath.Join(root, "card"), Removable: true, ReadOnly: true},
	}}
	ApplyDefaults(cfg)

	reg, err := InitializeRegistry(cfg)
	if err != nil {
		t.Fatalf("InitializeRegistry failed: %v", err)
	}
	if reg.Count() != 2 {
		t.Fatalf("Expected 2 storages, got %d", reg.Count())
	}

	for _, sc := range cfg.Storages {
		info, err := os.Stat(sc.Path)
		if err != nil || !info.IsDir() {
			t.Errorf("Expected storage root %s to be created", sc.Path)
		}
	}

	st := reg.GetStorage(0x00010001)
	if st == nil || st.Description != "internal" {
		t.Errorf("Unexpected storage 0x00010001: %+v", st)
	}
	for _, st := range reg.Storages() {
		if st.ID != 0x00010001 && !st.ReadOnly {
			t.Errorf("Expected assigned storage 0x%08X to be read-only", st.ID)
		}
	}
}

func TestInitializeRegistry_NoStorages(t *testing.T) {
	if _, err := InitializeRegistry(&Config{}); err == nil {
		t.Fatal("Expected error with no storages")
	}
}

func TestCreateTransport(t *testing.T) {
	tr, err := CreateTransport(TransportConfig{Type: transport.TypeDevice, DevicePath: "/dev/mtp_usb"})
	if err != nil {
		t.Fatalf("CreateTransport(device) failed: %v", err)
	}
	if _, ok := tr.(*transport.USBDevice); !ok {
		t.Errorf("Expected *transport.USBDevice, got %T", tr)
	}

	tr, err = CreateTransport(TransportConfig{Type: transport.TypeTCP, Listen: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("CreateTransport(tcp) failed: %v", err)
	}
	if _, ok := tr.(*transport.TCP); !ok {
		t.Errorf("Expected *transport.TCP, got %T", tr)
	}

	if _, err := CreateTransport(TransportConfig{Type: transport.TypeTCP}); err == nil {
		t.Error("Expected error for tcp without listen")
	}
	if _, err := CreateTransport(TransportConfig{Type: "bluetooth"}); err == nil || !strings.Contains(err.Error(), "unknown") {
		t.Errorf("Expected unknown transport error, got %v", err)
	}
}

func TestServerConfig(t *testing.T) {
	cfg := &Config{
		Device: DeviceConfig{
			Manufacturer: "Acme",
			Model:        "Frame",
			SerialNumber: "0042",
		},
		Transport: TransportConfig{MaxTransferSize: 64 * bytesize.KiB},
		Files:     FilesConfig{Group: "media", FileMode: 0o640},
	}
	ApplyDefaults(cfg)

	sc := ServerConfig(cfg)
	if sc.Manufacturer != "Acme" || sc.Model != "Frame" || sc.SerialNumber != "0042" {
		t.Errorf("Unexpected identity: %+v", sc)
	}
	if sc.FriendlyName != "Frame" {
		t.Errorf("Expected friendly name 'Frame', got %q", sc.FriendlyName)
	}
	if sc.MaxTransferSize != 64*1024 || sc.MaxRequestSize != 32 {
		t.Errorf("Unexpected sizes: %d %d", sc.MaxTransferSize, sc.MaxRequestSize)
	}
	if sc.FileMode != 0o640 || sc.DirMode != 0o775 || sc.FileGroup != "media" {
		t.Errorf("Unexpected file settings: %o %o %q", sc.FileMode, sc.DirMode, sc.FileGroup)
	}
}

func TestAdapterConfig(t *testing.T) {
	indexOnStart := false
	cfg := &Config{
		Transport:    TransportConfig{ReconnectDelay: 2 * time.Second},
		Watch:        WatchConfig{Enabled: true},
		IndexOnStart: &indexOnStart,
	}
	ApplyDefaults(cfg)

	ac := AdapterConfig(cfg)
	if ac.ReconnectDelay != 2*time.Second {
		t.Errorf("Expected reconnect delay 2s, got %v", ac.ReconnectDelay)
	}
	if ac.IndexOnStart {
		t.Error("Expected index on start disabled")
	}
	if !ac.Watch || ac.WatchDebounce != 250*time.Millisecond {
		t.Errorf("Unexpected watch settings: %v %v", ac.Watch, ac.WatchDebounce)
	}
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	reg, m := InitializeMetrics(&Config{})
	if reg != nil || m != nil {
		t.Error("Expected nil registry and metrics when disabled")
	}
}
