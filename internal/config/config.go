// Package config loads the order-status tool configuration from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all order-status configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Storage
	Store StoreConfig `yaml:"store"`

	// Intake (CSV/XLSX import and inbox watching)
	Intake IntakeConfig `yaml:"intake"`

	// Work queue
	Queue QueueConfig `yaml:"queue"`

	// Reconciliation
	Planning PlanningConfig `yaml:"planning"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// IntakeConfig configures import behavior and the inbox watcher.
type IntakeConfig struct {
	InboxDir     string `yaml:"inbox_dir"`
	Actor        string `yaml:"actor"`         // Actor recorded in the edit log for imports
	MaxParallel  int    `yaml:"max_parallel"`  // Concurrent file imports
	SettleDelay  string `yaml:"settle_delay"`  // Wait after a write event before importing
}

// QueueConfig configures the persisted work queue runner.
type QueueConfig struct {
	TickInterval  string `yaml:"tick_interval"`  // Re-arm delay between drains
	LeaseDuration string `yaml:"lease_duration"` // How long a leased task is invisible
	MaxAttempts   int    `yaml:"max_attempts"`
	RetryBackoff  string `yaml:"retry_backoff"` // Base delay added per attempt
	BatchSize     int    `yaml:"batch_size"`
}

// PlanningConfig configures reconciliation.
type PlanningConfig struct {
	CacheTTL string `yaml:"cache_ttl"` // TTL for cached reconciliation reports
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	Dir        string          `yaml:"dir"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "order-status",
		Version: "1.0.0",

		Store: StoreConfig{
			DatabasePath: "data/orderstatus.db",
		},

		Intake: IntakeConfig{
			InboxDir:    "inbox",
			Actor:       "import",
			MaxParallel: 4,
			SettleDelay: "2s",
		},

		Queue: QueueConfig{
			TickInterval:  "30s",
			LeaseDuration: "5m",
			MaxAttempts:   5,
			RetryBackoff:  "1m",
			BatchSize:     25,
		},

		Planning: PlanningConfig{
			CacheTTL: "60s",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("ORDERSTATUS_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if dir := os.Getenv("ORDERSTATUS_INBOX"); dir != "" {
		c.Intake.InboxDir = dir
	}
	if dir := os.Getenv("ORDERSTATUS_LOG_DIR"); dir != "" {
		c.Logging.Dir = dir
	}
	if level := os.Getenv("ORDERSTATUS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path not configured")
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("queue.max_attempts must be at least 1")
	}
	if c.Queue.BatchSize < 1 {
		return fmt.Errorf("queue.batch_size must be at least 1")
	}
	if c.Intake.MaxParallel < 1 {
		return fmt.Errorf("intake.max_parallel must be at least 1")
	}
	return nil
}

// GetTickInterval returns the queue tick interval as a duration.
func (c *Config) GetTickInterval() time.Duration {
	return parseDuration(c.Queue.TickInterval, 30*time.Second)
}

// GetLeaseDuration returns the queue lease duration as a duration.
func (c *Config) GetLeaseDuration() time.Duration {
	return parseDuration(c.Queue.LeaseDuration, 5*time.Minute)
}

// GetRetryBackoff returns the queue retry backoff base as a duration.
func (c *Config) GetRetryBackoff() time.Duration {
	return parseDuration(c.Queue.RetryBackoff, time.Minute)
}

// GetSettleDelay returns the intake settle delay as a duration.
func (c *Config) GetSettleDelay() time.Duration {
	return parseDuration(c.Intake.SettleDelay, 2*time.Second)
}

// GetCacheTTL returns the reconciliation cache TTL as a duration.
func (c *Config) GetCacheTTL() time.Duration {
	return parseDuration(c.Planning.CacheTTL, time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
