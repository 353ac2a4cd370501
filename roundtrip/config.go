// Package roundtrip orchestrates the full verification pipeline: parse
// both versions of a document, diff them, measure carrier survival,
// evaluate tolerance, and aggregate per-platform results into a
// compatibility report.
package roundtrip

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/fidelity/tolerance"
)

// Config holds the full roundtrip service configuration.
type Config struct {
	Listen            string  `yaml:"listen"`
	DBPath            string  `yaml:"db_path"`
	Profile           string  `yaml:"profile"`
	FailThreshold     float64 `yaml:"fail_threshold"`
	CriticalThreshold float64 `yaml:"critical_threshold"`
	MaxFileMB         int     `yaml:"max_file_mb"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:            ":8090",
		DBPath:            "fidelity.db",
		Profile:           tolerance.ProfileNormal,
		FailThreshold:     70,
		CriticalThreshold: 100,
		MaxFileMB:         50,
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig
// merged with the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Profile == "" {
		return fmt.Errorf("profile is required")
	}
	if c.FailThreshold < 0 || c.FailThreshold > 100 {
		return fmt.Errorf("fail_threshold: %w: %v", tolerance.ErrInvalidThreshold, c.FailThreshold)
	}
	if c.CriticalThreshold < 0 || c.CriticalThreshold > 100 {
		return fmt.Errorf("critical_threshold: %w: %v", tolerance.ErrInvalidThreshold, c.CriticalThreshold)
	}
	if c.MaxFileMB <= 0 {
		return fmt.Errorf("max_file_mb must be > 0")
	}
	return nil
}

// MaxFileBytes returns max file size in bytes.
func (c *Config) MaxFileBytes() int64 { return int64(c.MaxFileMB) * 1024 * 1024 }
