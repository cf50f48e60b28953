package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if !strings.Contains(configDir, "airtouch") {
		t.Errorf("GetConfigDir() = %v, should contain 'airtouch'", configDir)
	}

	switch runtime.GOOS {
	case "darwin", "linux":
		if os.Getenv("XDG_CONFIG_HOME") == "" && !strings.Contains(configDir, ".config") {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigDirHonoursXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	got, err := GetRegistryPath()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/tmp/xdg", "airtouch", "gateways.yaml"); got != want {
		t.Errorf("GetRegistryPath() = %v, want %v", got, want)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Gateways == nil {
		t.Error("NewRegistry().Gateways should not be nil")
	}
	if reg.Default != "" {
		t.Errorf("NewRegistry().Default = %q, want empty", reg.Default)
	}
}

func TestRegistrySetGateway(t *testing.T) {
	reg := NewRegistry()

	if err := reg.SetGateway("home", Gateway{Host: "192.168.1.20"}); err != nil {
		t.Fatal(err)
	}
	if err := reg.SetGateway("beach", Gateway{Host: "10.0.0.5", Generation: "legacy"}); err != nil {
		t.Fatal(err)
	}
	if reg.Default != "home" {
		t.Errorf("Default = %q, want first saved gateway", reg.Default)
	}

	tests := []struct {
		name    string
		gateway Gateway
	}{
		{"", Gateway{Host: "x"}},
		{"office", Gateway{}},
	}
	for _, tt := range tests {
		if err := reg.SetGateway(tt.name, tt.gateway); err == nil {
			t.Errorf("SetGateway(%q, %+v) should fail", tt.name, tt.gateway)
		}
	}

	if got := reg.Names(); len(got) != 2 || got[0] != "beach" || got[1] != "home" {
		t.Errorf("Names() = %v, want [beach home]", got)
	}
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Resolve(""); err == nil {
		t.Error("Resolve on empty registry should fail")
	}

	_ = reg.SetGateway("home", Gateway{Host: "192.168.1.20"})
	_ = reg.SetGateway("beach", Gateway{Host: "10.0.0.5"})

	g, err := reg.Resolve("")
	if err != nil || g.Host != "192.168.1.20" {
		t.Errorf("Resolve(\"\") = %+v, %v; want the default", g, err)
	}
	g, err = reg.Resolve("beach")
	if err != nil || g.Host != "10.0.0.5" {
		t.Errorf("Resolve(beach) = %+v, %v", g, err)
	}
	if _, err := reg.Resolve("cabin"); err == nil {
		t.Error("Resolve(cabin) should fail")
	}
}

func TestRegistryRemoveGateway(t *testing.T) {
	reg := NewRegistry()
	_ = reg.SetGateway("home", Gateway{Host: "192.168.1.20"})

	if reg.RemoveGateway("cabin") {
		t.Error("RemoveGateway(cabin) reported a removal")
	}
	if !reg.RemoveGateway("home") {
		t.Error("RemoveGateway(home) reported nothing removed")
	}
	if reg.Default != "" {
		t.Errorf("Default = %q after removing it", reg.Default)
	}
	if reg.GetGateway("home") != nil {
		t.Error("home still present")
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gateways.yaml")
	connected := time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)

	reg := NewRegistry()
	_ = reg.SetGateway("home", Gateway{Host: "192.168.1.20", Port: 9200, Notes: "hallway panel"})
	_ = reg.SetGateway("beach", Gateway{Host: "10.0.0.5", Generation: "legacy"})
	reg.MarkConnected("home", connected)
	reg.MarkConnected("cabin", connected)

	if err := reg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadRegistryFile(path)
	if err != nil {
		t.Fatalf("LoadRegistryFile() error = %v", err)
	}
	if loaded.Default != "home" {
		t.Errorf("Default = %q, want home", loaded.Default)
	}
	home := loaded.GetGateway("home")
	if home == nil {
		t.Fatal("home not loaded")
	}
	if home.Host != "192.168.1.20" || home.Port != 9200 || home.Notes != "hallway panel" {
		t.Errorf("home = %+v", home)
	}
	if !home.LastConnected.Equal(connected) {
		t.Errorf("LastConnected = %v, want %v", home.LastConnected, connected)
	}
	if beach := loaded.GetGateway("beach"); beach == nil || beach.Generation != "legacy" {
		t.Errorf("beach = %+v", beach)
	}
}

func TestLoadRegistryFile(t *testing.T) {
	dir := t.TempDir()

	reg, err := LoadRegistryFile(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should give an empty registry, got %v", err)
	}
	if len(reg.Gateways) != 0 {
		t.Errorf("Gateways = %v, want none", reg.Gateways)
	}

	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "version: [1\n"},
		{"wrong version", "version: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadRegistryFile(path); err == nil {
				t.Error("expected an error")
			}
		})
	}

	path := filepath.Join(dir, "bare.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	reg, err = LoadRegistryFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if reg.Gateways == nil {
		t.Error("Gateways should be initialized")
	}
}

func BenchmarkRegistryNames(b *testing.B) {
	reg := NewRegistry()
	for _, name := range []string{"home", "beach", "cabin", "office"} {
		_ = reg.SetGateway(name, Gateway{Host: "10.0.0.1"})
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = reg.Names()
	}
}
