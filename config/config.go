// Package config loads WasteWise settings from defaults, an optional JSON
// file and WASTEWISE_* environment variables, in that order.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" env:"WASTEWISE_ENV"`
	Profile     string      `json:"profile" env:"WASTEWISE_PROFILE"`

	Server     ServerConfig     `json:"server"`
	Storage    StorageConfig    `json:"storage"`
	Logging    LoggingConfig    `json:"logging"`
	Classifier ClassifierConfig `json:"classifier"`
	Catalog    CatalogConfig    `json:"catalog"`
	Events     EventsConfig     `json:"events"`
	Webhooks   WebhookConfig    `json:"webhooks"`
	Metrics    MetricsConfig    `json:"metrics"`
	Security   SecurityConfig   `json:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" env:"WASTEWISE_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" env:"WASTEWISE_SERVER_PATH_PREFIX"`
	CORSOrigins       []string      `json:"cors_origins" env:"WASTEWISE_SERVER_CORS_ORIGINS"`
	MaxImageBytes     int64         `json:"max_image_bytes" env:"WASTEWISE_SERVER_MAX_IMAGE_BYTES"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"WASTEWISE_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"WASTEWISE_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"WASTEWISE_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"WASTEWISE_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"WASTEWISE_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string `json:"adapter" env:"WASTEWISE_STORAGE_ADAPTER"`
	// Key names the single progress blob.
	Key string `json:"key" env:"WASTEWISE_STORAGE_KEY"`
	// RetryInterval is the wait before retrying a failed write.
	RetryInterval time.Duration `json:"retry_interval" env:"WASTEWISE_STORAGE_RETRY_INTERVAL"`
	Redis         RedisConfig   `json:"redis,omitempty"`
	SQL           SQLConfig     `json:"sql,omitempty"`
	File          FileConfig    `json:"file,omitempty"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr      string `json:"addr" env:"WASTEWISE_REDIS_ADDR"`
	Password  string `json:"password,omitempty" env:"WASTEWISE_REDIS_PASSWORD"`
	DB        int    `json:"db" env:"WASTEWISE_REDIS_DB"`
	PoolSize  int    `json:"pool_size" env:"WASTEWISE_REDIS_POOL_SIZE"`
	KeyPrefix string `json:"key_prefix" env:"WASTEWISE_REDIS_KEY_PREFIX"`
}

// SQLConfig holds database settings
type SQLConfig struct {
	Driver          string        `json:"driver" env:"WASTEWISE_SQL_DRIVER"`
	DSN             string        `json:"dsn,omitempty" env:"WASTEWISE_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" env:"WASTEWISE_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"WASTEWISE_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"WASTEWISE_SQL_CONN_MAX_LIFETIME"`
	Migrate         bool          `json:"migrate" env:"WASTEWISE_SQL_MIGRATE"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" env:"WASTEWISE_STORAGE_FILE_PATH"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" env:"WASTEWISE_LOG_LEVEL"`
	Format     string            `json:"format" env:"WASTEWISE_LOG_FORMAT"`
	Output     string            `json:"output" env:"WASTEWISE_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" env:"WASTEWISE_LOG_ATTRIBUTES" envKeyValSeparator:"="`
}

// ClassifierConfig selects the image classifier.
type ClassifierConfig struct {
	// Mode is "demo" or "remote".
	Mode     string        `json:"mode" env:"WASTEWISE_CLASSIFIER_MODE"`
	Seed     uint64        `json:"seed" env:"WASTEWISE_CLASSIFIER_SEED"`
	Delay    time.Duration `json:"delay" env:"WASTEWISE_CLASSIFIER_DELAY"`
	Endpoint string        `json:"endpoint,omitempty" env:"WASTEWISE_CLASSIFIER_ENDPOINT"`
	Token    string        `json:"token,omitempty" env:"WASTEWISE_CLASSIFIER_TOKEN"`
	Timeout  time.Duration `json:"timeout" env:"WASTEWISE_CLASSIFIER_TIMEOUT"`
}

// CatalogConfig points at a TOML catalog; empty uses the built-in one.
type CatalogConfig struct {
	Path string `json:"path,omitempty" env:"WASTEWISE_CATALOG_PATH"`
}

// EventsConfig controls event delivery.
type EventsConfig struct {
	// Dispatch is "sync" or "async".
	Dispatch string `json:"dispatch" env:"WASTEWISE_EVENTS_DISPATCH"`
}

// WebhookConfig lists endpoints receiving domain events.
type WebhookConfig struct {
	Endpoints []string      `json:"endpoints,omitempty" env:"WASTEWISE_WEBHOOK_ENDPOINTS"`
	Types     []string      `json:"types,omitempty" env:"WASTEWISE_WEBHOOK_TYPES"`
	Secret    string        `json:"secret,omitempty" env:"WASTEWISE_WEBHOOK_SECRET"`
	Timeout   time.Duration `json:"timeout" env:"WASTEWISE_WEBHOOK_TIMEOUT"`
}

// MetricsConfig holds Prometheus exposition settings. An empty Address
// serves Path on the main API listener.
type MetricsConfig struct {
	Enabled       bool   `json:"enabled" env:"WASTEWISE_METRICS_ENABLED"`
	Address       string `json:"address" env:"WASTEWISE_METRICS_ADDR"`
	Path          string `json:"path" env:"WASTEWISE_METRICS_PATH"`
	CollectSystem bool   `json:"collect_system" env:"WASTEWISE_METRICS_COLLECT_SYSTEM"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" env:"WASTEWISE_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" env:"WASTEWISE_SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute" env:"WASTEWISE_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int           `json:"burst_size" env:"WASTEWISE_SECURITY_RATE_LIMIT_BURST"`
	CleanupInterval   time.Duration `json:"cleanup_interval" env:"WASTEWISE_SECURITY_RATE_LIMIT_CLEANUP"`
}

// Load loads configuration from environment variables and validates it.
// WASTEWISE_PROFILE picks the base profile.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if name := ProfileFromEnv(); name != "" {
		p, err := profile(name)
		if err != nil {
			return nil, err
		}
		cfg = p
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if !strings.HasSuffix(strings.ToLower(cleanPath), ".json") {
		return errors.New("config file must have .json extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON file. Environment variables
// override file values.
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigins:       []string{"*"},
			MaxImageBytes:     8 << 20,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter:       "file",
			Key:           "user-progress",
			RetryInterval: 2 * time.Second,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				PoolSize:  10,
				KeyPrefix: "wastewise:",
			},
			SQL: SQLConfig{
				Driver:          "sqlite",
				DSN:             "file:./data/wastewise.db?_pragma=busy_timeout(5000)",
				MaxOpenConns:    1,
				MaxIdleConns:    1,
				ConnMaxLifetime: 30 * time.Minute,
				Migrate:         true,
			},
			File: FileConfig{
				Path: "./data/wastewise.json",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Classifier: ClassifierConfig{
			Mode:    "demo",
			Delay:   0,
			Timeout: 10 * time.Second,
		},
		Events: EventsConfig{
			Dispatch: "async",
		},
		Webhooks: WebhookConfig{
			Timeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			Address:       ":9090",
			Path:          "/metrics",
			CollectSystem: true,
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
				CleanupInterval:   5 * time.Minute,
			},
			APIKeys: []string{},
		},
	}
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}
	if cfg.Classifier.Token != "" {
		cfg.Classifier.Token = "[REDACTED]"
	}
	if cfg.Webhooks.Secret != "" {
		cfg.Webhooks.Secret = "[REDACTED]"
	}
	if len(cfg.Security.APIKeys) > 0 {
		cfg.Security.APIKeys = []string{fmt.Sprintf("[%d REDACTED]", len(c.Security.APIKeys))}
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
