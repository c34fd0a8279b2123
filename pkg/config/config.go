package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all Markwatch configuration.
type Config struct {
	DBPath string      `yaml:"db_path"`
	Cache  CacheConfig `yaml:"cache"`
}

// CacheConfig controls the trademark cache freshness windows, in days.
// ErrorTTLDays bounds how long a cached lookup failure suppresses
// retries.
type CacheConfig struct {
	TTLDays      int `yaml:"ttl_days"`
	ErrorTTLDays int `yaml:"error_ttl_days"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath: "markwatch.db",
		Cache: CacheConfig{
			TTLDays:      30,
			ErrorTTLDays: 1,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}
