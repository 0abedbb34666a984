package registry

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("NewRegistry returned nil")
	}
	if reg.Count() != 0 {
		t.Errorf("Expected 0 storages, got %d", reg.Count())
	}
	if reg.First() != nil {
		t.Error("Expected First() to be nil on an empty registry")
	}
	if len(reg.IDs()) != 0 {
		t.Errorf("Expected no IDs, got %v", reg.IDs())
	}
}

func TestAddStorage(t *testing.T) {
	reg := NewRegistry()
	dir := t.TempDir()

	s, err := reg.AddStorage(&StorageConfig{ID: 0x00010001, Path: dir, Description: "Internal"})
	if err != nil {
		t.Fatalf("AddStorage failed: %v", err)
	}
	if s.ID != 0x00010001 {
		t.Errorf("Expected ID 0x00010001, got 0x%08X", s.ID)
	}
	if s.Description != "Internal" {
		t.Errorf("Expected description 'Internal', got %q", s.Description)
	}
	if got := reg.GetStorage(0x00010001); got != s {
		t.Errorf("GetStorage returned %v, want %v", got, s)
	}
	if got := reg.GetStorage(0x00020001); got != nil {
		t.Errorf("Expected nil for unknown storage, got %v", got)
	}
}

func TestAddStorageDefaults(t *testing.T) {
	reg := NewRegistry()
	a := t.TempDir()
	b := filepath.Join(t.TempDir(), "card")
	if err := os.Mkdir(b, 0o755); err != nil {
		t.Fatal(err)
	}

	s1, err := reg.AddStorage(&StorageConfig{Path: a})
	if err != nil {
		t.Fatalf("AddStorage failed: %v", err)
	}
	s2, err := reg.AddStorage(&StorageConfig{Path: b})
	if err != nil {
		t.Fatalf("AddStorage failed: %v", err)
	}

	if s1.ID != 0x00010001 || s2.ID != 0x00020001 {
		t.Errorf("Expected IDs 0x00010001 and 0x00020001, got 0x%08X and 0x%08X", s1.ID, s2.ID)
	}
	if s2.Description != "card" {
		t.Errorf("Expected description from directory name, got %q", s2.Description)
	}
}

func TestAddStorageErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		config *StorageConfig
	}{
		{"EmptyPath", &StorageConfig{ID: 0x00010001}},
		{"ZeroLogicalVolume", &StorageConfig{ID: 0x00010000, Path: dir}},
		{"Missing", &StorageConfig{ID: 0x00010001, Path: filepath.Join(dir, "nope")}},
		{"NotDirectory", &StorageConfig{ID: 0x00010001, Path: file}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry().AddStorage(tt.config); err == nil {
				t.Error("Expected error")
			}
		})
	}

	reg := NewRegistry()
	if _, err := reg.AddStorage(&StorageConfig{ID: 0x00010001, Path: dir}); err != nil {
		t.Fatalf("AddStorage failed: %v", err)
	}
	if _, err := reg.AddStorage(&StorageConfig{ID: 0x00010001, Path: t.TempDir()}); err == nil {
		t.Error("Expected duplicate ID to fail")
	}
	if _, err := reg.AddStorage(&StorageConfig{ID: 0x00020001, Path: dir}); err == nil {
		t.Error("Expected duplicate path to fail")
	}
}

func TestRemoveStorage(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []uint32{0x00010001, 0x00020001, 0x00030001} {
		if _, err := reg.AddStorage(&StorageConfig{ID: id, Path: t.TempDir()}); err != nil {
			t.Fatalf("AddStorage failed: %v", err)
		}
	}

	if err := reg.RemoveStorage(0x00020001); err != nil {
		t.Fatalf("RemoveStorage failed: %v", err)
	}
	if err := reg.RemoveStorage(0x00020001); err == nil {
		t.Error("Expected error removing an unknown storage")
	}

	ids := reg.IDs()
	if len(ids) != 2 || ids[0] != 0x00010001 || ids[1] != 0x00030001 {
		t.Errorf("Unexpected IDs after removal: %v", ids)
	}
	if reg.First().ID != 0x00010001 {
		t.Errorf("Expected first storage 0x00010001, got 0x%08X", reg.First().ID)
	}
}

func TestStorageForPath(t *testing.T) {
	reg := NewRegistry()
	outer := t.TempDir()
	inner := filepath.Join(outer, "nested")
	if err := os.Mkdir(inner, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.AddStorage(&StorageConfig{ID: 0x00010001, Path: outer}); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.AddStorage(&StorageConfig{ID: 0x00020001, Path: inner}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want uint32
	}{
		{filepath.Join(outer, "a.txt"), 0x00010001},
		{outer, 0x00010001},
		{filepath.Join(inner, "b", "c.jpg"), 0x00020001},
		{filepath.Join(outer, "nestedness"), 0x00010001},
	}
	for _, tt := range tests {
		s := reg.StorageForPath(tt.path)
		if s == nil || s.ID != tt.want {
			t.Errorf("StorageForPath(%q) = %v, want 0x%08X", tt.path, s, tt.want)
		}
	}
	if s := reg.StorageForPath(filepath.Dir(outer)); s != nil {
		t.Errorf("Expected nil for a path outside every storage, got 0x%08X", s.ID)
	}
}

func TestCapacity(t *testing.T) {
	reg := NewRegistry()
	s, err := reg.AddStorage(&StorageConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	total, free, err := s.Capacity()
	if err != nil {
		t.Fatalf("Capacity failed: %v", err)
	}
	if total == 0 || free > total {
		t.Errorf("Implausible capacity: total=%d free=%d", total, free)
	}

	s.ReservedSpace = total + 1
	if _, free, _ := s.Capacity(); free != 0 {
		t.Errorf("Expected reserved space to clamp free to 0, got %d", free)
	}
}

func TestConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	dirs := make([]string, 20)
	for i := range dirs {
		dirs[i] = t.TempDir()
	}

	var wg sync.WaitGroup
	for i, dir := range dirs {
		wg.Add(2)
		go func(id uint32, dir string) {
			defer wg.Done()
			if _, err := reg.AddStorage(&StorageConfig{ID: id, Path: dir}); err != nil {
				t.Errorf("AddStorage failed: %v", err)
			}
		}(uint32(i+1)<<16|1, dir)
		go func() {
			defer wg.Done()
			_ = reg.IDs()
			_ = reg.StorageForPath(dir)
		}()
	}
	wg.Wait()

	if reg.Count() != len(dirs) {
		t.Errorf("Expected %d storages, got %d", len(dirs), reg.Count())
	}
}
