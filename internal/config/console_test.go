package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/mco/internal/device"
)

func TestEmptyConsoleConfigDefaults(t *testing.T) {
	cfg := &ConsoleConfig{}

	if cfg.GetPort() != DefaultPort {
		t.Errorf("GetPort() = %q, want %q", cfg.GetPort(), DefaultPort)
	}
	opts := cfg.GetPortOptions()
	if opts.BaudRate != 115200 {
		t.Errorf("BaudRate = %d, want 115200", opts.BaudRate)
	}
	if opts.Timeout() != time.Second {
		t.Errorf("read timeout = %v, want 1s", opts.Timeout())
	}
	if cfg.GetSyncTimeout() != 10*time.Second {
		t.Errorf("GetSyncTimeout() = %v, want 10s", cfg.GetSyncTimeout())
	}
	if cfg.GetSyncMaxLines() != 1024 {
		t.Errorf("GetSyncMaxLines() = %d, want 1024", cfg.GetSyncMaxLines())
	}
	if cfg.GetFlushBytes() != 4096 {
		t.Errorf("GetFlushBytes() = %d, want 4096", cfg.GetFlushBytes())
	}
	if cfg.GetPreviewDir() != os.TempDir() {
		t.Errorf("GetPreviewDir() = %q, want %q", cfg.GetPreviewDir(), os.TempDir())
	}
	if cfg.GetCatalogPath() != "" {
		t.Errorf("GetCatalogPath() = %q, want empty", cfg.GetCatalogPath())
	}
}

func TestLoadConsoleConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "mco.json")

	testJSON := `{
  "port": "/dev/ttyACM0",
  "baud_rate": 57600,
  "read_timeout": "500ms",
  "sync_timeout": "3s",
  "sync_max_lines": 512,
  "flush_bytes": 1024,
  "preview_dir": "/tmp/mco-previews",
  "catalog_path": "runs.db"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConsoleConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetPort() != "/dev/ttyACM0" {
		t.Errorf("GetPort() = %q", cfg.GetPort())
	}
	want := device.PortOptions{BaudRate: 57600, ReadTimeout: "500ms"}
	if cfg.GetPortOptions() != want {
		t.Errorf("GetPortOptions() = %+v, want %+v", cfg.GetPortOptions(), want)
	}
	if cfg.GetSyncTimeout() != 3*time.Second {
		t.Errorf("GetSyncTimeout() = %v", cfg.GetSyncTimeout())
	}
	if cfg.GetSyncMaxLines() != 512 {
		t.Errorf("GetSyncMaxLines() = %d", cfg.GetSyncMaxLines())
	}
	if cfg.GetFlushBytes() != 1024 {
		t.Errorf("GetFlushBytes() = %d", cfg.GetFlushBytes())
	}
	if cfg.GetPreviewDir() != "/tmp/mco-previews" {
		t.Errorf("GetPreviewDir() = %q", cfg.GetPreviewDir())
	}
	if cfg.GetCatalogPath() != "runs.db" {
		t.Errorf("GetCatalogPath() = %q", cfg.GetCatalogPath())
	}
}

func TestLoadConsoleConfigErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadConsoleConfig(filepath.Join(dir, "mco.yaml")); err == nil || !strings.Contains(err.Error(), ".json") {
		t.Errorf("expected extension error, got %v", err)
	}
	if _, err := LoadConsoleConfig(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	invalid := filepath.Join(dir, "invalid.json")
	if err := os.WriteFile(invalid, []byte(`{"baud_rate": "fast"`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConsoleConfig(invalid); err == nil {
		t.Error("expected error for invalid JSON")
	}

	badValue := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(badValue, []byte(`{"sync_timeout": "forever"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConsoleConfig(badValue); err == nil {
		t.Error("expected validation error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *ConsoleConfig
		wantErr bool
	}{
		{"empty config is valid", &ConsoleConfig{}, false},
		{"zero baud", &ConsoleConfig{BaudRate: ptrInt(0)}, true},
		{"bad read timeout", &ConsoleConfig{ReadTimeout: ptrString("1 second")}, true},
		{"negative sync timeout", &ConsoleConfig{SyncTimeout: ptrString("-2s")}, true},
		{"sync window shorter than a cycle", &ConsoleConfig{SyncMaxLines: ptrInt(100)}, true},
		{"one cycle sync window", &ConsoleConfig{SyncMaxLines: ptrInt(256)}, false},
		{"zero flush bytes", &ConsoleConfig{FlushBytes: ptrInt(0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetSyncTimeoutFallsBack(t *testing.T) {
	cfg := &ConsoleConfig{SyncTimeout: ptrString("garbage")}
	if cfg.GetSyncTimeout() != 10*time.Second {
		t.Errorf("GetSyncTimeout() = %v, want default", cfg.GetSyncTimeout())
	}
}
