package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every environment variable read by Load.
// Variables are named EXECUTEJS_<SECTION>_<KEY>, e.g. EXECUTEJS_REGISTRY_URL.
const EnvPrefix = "EXECUTEJS"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Logging   LogConfig       `toml:"logging" yaml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
	Registry  RegistryConfig  `toml:"registry" yaml:"registry"`
	Cache     CacheConfig     `toml:"cache" yaml:"cache"`
	Execution ExecutionConfig `toml:"execution" yaml:"execution"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" toml:"port" yaml:"port"`
	Host string `envconfig:"HOST" default:"127.0.0.1" toml:"host" yaml:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LEVEL" default:"info" toml:"level" yaml:"level"`
	Development bool   `envconfig:"DEV" default:"false" toml:"development" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration for the HTTP API.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RPS" default:"20" toml:"requests_per_second" yaml:"requests_per_second"`
	Burst             int  `envconfig:"BURST" default:"40" toml:"burst" yaml:"burst"`
	Enabled           bool `envconfig:"ENABLED" default:"true" toml:"enabled" yaml:"enabled"`
}

// RegistryConfig holds package registry client configuration.
type RegistryConfig struct {
	BaseURL           string   `envconfig:"URL" default:"https://registry.npmjs.org" toml:"base_url" yaml:"base_url"`
	Timeout           Duration `envconfig:"TIMEOUT" default:"60s" toml:"timeout" yaml:"timeout"`
	RetryCount        int      `envconfig:"RETRIES" default:"0" toml:"retry_count" yaml:"retry_count"`
	RequestsPerSecond float64  `envconfig:"RPS" default:"0" toml:"requests_per_second" yaml:"requests_per_second"`
	UserAgent         string   `envconfig:"USER_AGENT" default:"executejs/0.1" toml:"user_agent" yaml:"user_agent"`
}

// CacheConfig holds package cache configuration.
type CacheConfig struct {
	// Dir overrides the per-user cache directory when set.
	Dir             string `envconfig:"DIR" toml:"dir" yaml:"dir"`
	VerifyIntegrity bool   `envconfig:"VERIFY_INTEGRITY" default:"true" toml:"verify_integrity" yaml:"verify_integrity"`
}

// ExecutionConfig holds execution host configuration.
type ExecutionConfig struct {
	Timeout     Duration `envconfig:"TIMEOUT" default:"30s" toml:"timeout" yaml:"timeout"`
	HistorySize int      `envconfig:"HISTORY_SIZE" default:"100" toml:"history_size" yaml:"history_size"`
	// BaseDir anchors relative imports from user code; empty means the working directory.
	BaseDir string `envconfig:"BASE_DIR" toml:"base_dir" yaml:"base_dir"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "127.0.0.1",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
		Registry: RegistryConfig{
			BaseURL:   "https://registry.npmjs.org",
			Timeout:   Duration(60 * time.Second),
			UserAgent: "executejs/0.1",
		},
		Cache: CacheConfig{
			VerifyIntegrity: true,
		},
		Execution: ExecutionConfig{
			Timeout:     Duration(30 * time.Second),
			HistorySize: 100,
		},
	}
}

// Validate checks values that envconfig cannot constrain.
func (c *Config) Validate() error {
	if c.Execution.HistorySize <= 0 {
		return fmt.Errorf("history size must be positive, got %d", c.Execution.HistorySize)
	}
	if c.Execution.Timeout < 0 {
		return fmt.Errorf("execution timeout cannot be negative")
	}
	if c.Registry.BaseURL == "" {
		return fmt.Errorf("registry base URL cannot be empty")
	}
	if c.Registry.RetryCount < 0 {
		return fmt.Errorf("registry retry count cannot be negative")
	}
	return nil
}
