package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/mco/internal/device"
)

// DefaultPort is the serial device the MCO enumerates as on the lab Macs.
const DefaultPort = "/dev/cu.usbmodem9537801"

// ConsoleConfig represents the optional JSON configuration for the mco
// console. Every field is optional; the Get* methods supply defaults and
// command-line flags override whatever the file sets.
type ConsoleConfig struct {
	// Serial link
	Port        *string `json:"port,omitempty"`
	BaudRate    *int    `json:"baud_rate,omitempty"`
	ReadTimeout *string `json:"read_timeout,omitempty"` // duration string like "1s"

	// Collection
	SyncTimeout  *string `json:"sync_timeout,omitempty"` // duration string like "10s"
	SyncMaxLines *int    `json:"sync_max_lines,omitempty"`
	FlushBytes   *int    `json:"flush_bytes,omitempty"`

	// Output
	PreviewDir  *string `json:"preview_dir,omitempty"`
	CatalogPath *string `json:"catalog_path,omitempty"`
}

// Helper functions to create pointers
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// LoadConsoleConfig loads a ConsoleConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadConsoleConfig(path string) (*ConsoleConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ConsoleConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *ConsoleConfig) Validate() error {
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}

	for name, v := range map[string]*string{"read_timeout": c.ReadTimeout, "sync_timeout": c.SyncTimeout} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}

	if c.SyncMaxLines != nil && *c.SyncMaxLines < device.SamplesPerCycle {
		return fmt.Errorf("sync_max_lines must be at least one cycle (%d), got %d", device.SamplesPerCycle, *c.SyncMaxLines)
	}

	if c.FlushBytes != nil && *c.FlushBytes <= 0 {
		return fmt.Errorf("flush_bytes must be positive, got %d", *c.FlushBytes)
	}

	return nil
}

// GetPort returns the serial device path or the default.
func (c *ConsoleConfig) GetPort() string {
	if c.Port == nil || *c.Port == "" {
		return DefaultPort
	}
	return *c.Port
}

// GetPortOptions returns the serial options for the configured link.
func (c *ConsoleConfig) GetPortOptions() device.PortOptions {
	opts := device.PortOptions{BaudRate: device.DefaultBaudRate}
	if c.BaudRate != nil {
		opts.BaudRate = *c.BaudRate
	}
	if c.ReadTimeout != nil {
		opts.ReadTimeout = *c.ReadTimeout
	}
	return opts
}

// GetSyncTimeout parses and returns the SyncTimeout as a time.Duration.
func (c *ConsoleConfig) GetSyncTimeout() time.Duration {
	if c.SyncTimeout == nil || *c.SyncTimeout == "" {
		return 10 * time.Second // default
	}
	d, err := time.ParseDuration(*c.SyncTimeout)
	if err != nil {
		return 10 * time.Second // default on parse error
	}
	return d
}

// GetSyncMaxLines returns the sync_max_lines value or the default of four
// drive cycles.
func (c *ConsoleConfig) GetSyncMaxLines() int {
	if c.SyncMaxLines == nil {
		return 4 * device.SamplesPerCycle
	}
	return *c.SyncMaxLines
}

// GetFlushBytes returns the flush_bytes value or the default.
func (c *ConsoleConfig) GetFlushBytes() int {
	if c.FlushBytes == nil {
		return device.DefaultFlushBytes
	}
	return *c.FlushBytes
}

// GetPreviewDir returns the directory for plot previews, defaulting to the
// OS temp directory.
func (c *ConsoleConfig) GetPreviewDir() string {
	if c.PreviewDir == nil || *c.PreviewDir == "" {
		return os.TempDir()
	}
	return *c.PreviewDir
}

// GetCatalogPath returns the SQLite catalog path; empty disables the catalog.
func (c *ConsoleConfig) GetCatalogPath() string {
	if c.CatalogPath == nil {
		return ""
	}
	return *c.CatalogPath
}
