package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// LoadProfile returns the named profile with environment overrides applied.
func LoadProfile(name string) (*Config, error) {
	cfg, err := profile(name)
	if err != nil {
		return nil, err
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func profile(name string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Profile = name
	switch strings.ToLower(name) {
	case "development", "dev":
		cfg.Environment = EnvDevelopment
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
		cfg.Classifier.Delay = 800 * time.Millisecond
	case "testing", "test":
		cfg.Environment = EnvTesting
		cfg.Storage.Adapter = "memory"
		cfg.Logging.Level = "warn"
		cfg.Classifier.Seed = 1
		cfg.Events.Dispatch = "sync"
		cfg.Storage.RetryInterval = 50 * time.Millisecond
	case "staging":
		cfg.Environment = EnvStaging
		cfg.Storage.Adapter = "sql"
	case "production", "prod":
		cfg.Environment = EnvProduction
		cfg.Storage.Adapter = "sql"
		cfg.Server.CORSOrigins = nil
		cfg.Security.EnableRateLimit = true
		cfg.Metrics.Enabled = true
	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	return cfg, nil
}

// ProfileFromEnv reports WASTEWISE_PROFILE, or "" when unset.
func ProfileFromEnv() string {
	return strings.TrimSpace(os.Getenv("WASTEWISE_PROFILE"))
}
