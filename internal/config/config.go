package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSettingsPath is read when no settings file is given
const DefaultSettingsPath = "config/config.yaml"

// Settings holds the process configuration
type Settings struct {
	Server    ServerConfig    `yaml:"server"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Runtime   RuntimeFile     `yaml:"runtime"`
	Model     ModelConfig     `yaml:"model"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Batch     BatchConfig     `yaml:"batch"`
	Reporting ReportingConfig `yaml:"reporting"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  int    `yaml:"read_timeout"`
	WriteTimeout int    `yaml:"write_timeout"`
}

// CatalogConfig points at the API description document
type CatalogConfig struct {
	Source string `yaml:"source"`
}

// RuntimeFile holds persistence settings for the runtime record
type RuntimeFile struct {
	File  string `yaml:"file"`
	Watch bool   `yaml:"watch"`
}

// ModelConfig holds model call tuning
type ModelConfig struct {
	Timeout     int     `yaml:"timeout"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Referer     string  `yaml:"referer"`
	Title       string  `yaml:"title"`
}

// ProxyConfig holds threat API proxy configuration
type ProxyConfig struct {
	Timeout int `yaml:"timeout"`
}

// BatchConfig holds batch resolution configuration
type BatchConfig struct {
	Workers int `yaml:"workers"`
}

// ReportingConfig holds batch report configuration
type ReportingConfig struct {
	Format    []string `yaml:"format"`
	OutputDir string   `yaml:"output_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ModelTimeout returns the model call timeout
func (s *Settings) ModelTimeout() time.Duration {
	return time.Duration(s.Model.Timeout) * time.Second
}

// ProxyTimeout returns the proxy call timeout
func (s *Settings) ProxyTimeout() time.Duration {
	return time.Duration(s.Proxy.Timeout) * time.Second
}

// LoadSettings loads the settings file. An empty path reads
// DefaultSettingsPath if it exists and falls back to defaults otherwise; an
// explicit path must exist.
func LoadSettings(path string) (*Settings, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultSettingsPath
	}

	var settings Settings
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("failed to parse settings file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("settings file not found at %s", path)
	default:
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	settings.applyDefaults()
	return &settings, nil
}

// applyDefaults fills every unset field
func (s *Settings) applyDefaults() {
	if s.Server.Addr == "" {
		s.Server.Addr = ":5000"
	}
	if s.Server.ReadTimeout == 0 {
		s.Server.ReadTimeout = 30
	}
	if s.Server.WriteTimeout == 0 {
		s.Server.WriteTimeout = 120
	}
	if s.Catalog.Source == "" {
		s.Catalog.Source = "openapi.json"
	}
	if s.Runtime.File == "" {
		s.Runtime.File = "tdr_config.json"
	}
	if s.Model.Timeout == 0 {
		s.Model.Timeout = 30
	}
	if s.Model.Referer == "" {
		s.Model.Referer = "https://github.com/yourusername/tdr-agent"
	}
	if s.Model.Title == "" {
		s.Model.Title = "TDR Agent"
	}
	if s.Proxy.Timeout == 0 {
		s.Proxy.Timeout = 30
	}
	if s.Batch.Workers == 0 {
		s.Batch.Workers = 4
	}
	if len(s.Reporting.Format) == 0 {
		s.Reporting.Format = []string{"json"}
	}
	if s.Reporting.OutputDir == "" {
		s.Reporting.OutputDir = "reports"
	}
	if s.Logging.Level == "" {
		s.Logging.Level = "info"
	}
	if s.Logging.MaxSizeMB == 0 {
		s.Logging.MaxSizeMB = 10
	}
	if s.Logging.MaxBackups == 0 {
		s.Logging.MaxBackups = 3
	}
	if s.Logging.MaxAgeDays == 0 {
		s.Logging.MaxAgeDays = 28
	}
}
