package permits

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config configures the permits service.
type Config struct {
	// DBPath is the SQLite database location. Default: "data/permits.db".
	DBPath string `yaml:"db_path"`

	// BatchSize bounds how many raw records one pass consumes. Default: 200.
	BatchSize int `yaml:"batch_size"`

	// CheckIntervalMs is the scheduler tick in milliseconds. Default: 60000.
	CheckIntervalMs int64 `yaml:"check_interval_ms"`

	// MaxStaleRetries bounds optimistic-concurrency retries per record.
	// Default: 3.
	MaxStaleRetries int `yaml:"max_stale_retries"`

	// EventSource tags emitted events with the producing stage.
	// Default: "normalizer".
	EventSource string `yaml:"event_source"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "data/permits.db"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	if c.CheckIntervalMs <= 0 {
		c.CheckIntervalMs = 60_000
	}
	if c.MaxStaleRetries <= 0 {
		c.MaxStaleRetries = 3
	}
	if c.EventSource == "" {
		c.EventSource = "normalizer"
	}
}

func (c *Config) checkInterval() time.Duration {
	return time.Duration(c.CheckIntervalMs) * time.Millisecond
}

func defaultConfig() *Config {
	c := &Config{}
	c.defaults()
	return c
}

// LoadConfig reads a YAML config file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("permits: read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("permits: parse config: %w", err)
	}
	c.defaults()
	return &c, nil
}
