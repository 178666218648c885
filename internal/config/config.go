// Package config loads the application configuration: an optional YAML
// file as the base, CNP_-prefixed environment variables layered on top,
// defaults filling whatever is left unset.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Crawl   CrawlConfig   `yaml:"crawl" envconfig:"CRAWL"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
}

// ServerConfig configures the HTTP control server.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=0,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// CrawlConfig bounds the snapshot runs.
type CrawlConfig struct {
	// Markets to run, in order. Valid names: cninfo, sse, bse.
	Markets []string `yaml:"markets" envconfig:"MARKETS" validate:"min=1,dive,oneof=cninfo sse bse"`

	// Limit caps entities per market; zero means the full universe.
	Limit int `yaml:"limit" envconfig:"LIMIT" validate:"min=0"`

	// Codes bypasses discovery with an explicit entity-code list.
	Codes []string `yaml:"codes" envconfig:"CODES"`

	// SnapshotDate stamps the run; empty means today (local time).
	SnapshotDate string `yaml:"snapshot_date" envconfig:"SNAPSHOT_DATE" validate:"omitempty,datetime=2006-01-02"`

	Concurrency int           `yaml:"concurrency" envconfig:"CONCURRENCY" validate:"min=0,max=64"`
	HostDelay   time.Duration `yaml:"host_delay" envconfig:"HOST_DELAY"`
	HTTPTimeout time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"omitempty,oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"omitempty,oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig locates the on-disk data directories.
type PathsConfig struct {
	SnapshotsDir string `yaml:"snapshots_dir" envconfig:"SNAPSHOTS_DIR"`
	StateDir     string `yaml:"state_dir" envconfig:"STATE_DIR"`
	LogsDir      string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// Load reads the YAML file at path (when non-empty and present), layers
// CNP_-prefixed environment variables over it, fills defaults and
// validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Env vars without a value leave the file-loaded fields untouched.
	if err := envconfig.Process("CNP", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() *Config {
	var cfg Config
	cfg.fillDefaults()
	return &cfg
}

func (c *Config) fillDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	if len(c.Crawl.Markets) == 0 {
		c.Crawl.Markets = []string{"cninfo", "sse", "bse"}
	}
	if c.Crawl.Concurrency == 0 {
		c.Crawl.Concurrency = 4
	}
	if c.Crawl.HostDelay == 0 {
		c.Crawl.HostDelay = time.Second
	}
	if c.Crawl.HTTPTimeout == 0 {
		c.Crawl.HTTPTimeout = 30 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/cnpulse.log"
	}

	if c.Paths.SnapshotsDir == "" {
		c.Paths.SnapshotsDir = "data/snapshots"
	}
	if c.Paths.StateDir == "" {
		c.Paths.StateDir = "data/state"
	}
	if c.Paths.LogsDir == "" {
		c.Paths.LogsDir = "logs"
	}
}

// Validate checks the field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// EffectiveSnapshotDate resolves the configured snapshot date, defaulting
// to today.
func (c *CrawlConfig) EffectiveSnapshotDate() string {
	if c.SnapshotDate != "" {
		return c.SnapshotDate
	}
	return time.Now().Format("2006-01-02")
}

// NormalizedMarkets lowercases and trims the configured market names.
func (c *CrawlConfig) NormalizedMarkets() []string {
	out := make([]string, 0, len(c.Markets))
	for _, m := range c.Markets {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			out = append(out, m)
		}
	}
	return out
}
