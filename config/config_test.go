package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "file", cfg.Storage.Adapter)
	assert.Equal(t, "user-progress", cfg.Storage.Key)
	assert.Equal(t, "demo", cfg.Classifier.Mode)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WASTEWISE_STORAGE_ADAPTER", "redis")
	t.Setenv("WASTEWISE_REDIS_ADDR", "cache:6379")
	t.Setenv("WASTEWISE_CLASSIFIER_TIMEOUT", "3s")
	t.Setenv("WASTEWISE_CLASSIFIER_SEED", "42")
	t.Setenv("WASTEWISE_WEBHOOK_ENDPOINTS", "https://a.example/hook,https://b.example/hook")
	t.Setenv("WASTEWISE_LOG_ATTRIBUTES", "service=wastewise,region=eu")
	t.Setenv("WASTEWISE_METRICS_ENABLED", "true")
	t.Setenv("WASTEWISE_METRICS_PATH", "/prom")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Storage.Adapter)
	assert.Equal(t, "cache:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 3*time.Second, cfg.Classifier.Timeout)
	assert.Equal(t, uint64(42), cfg.Classifier.Seed)
	assert.Equal(t, []string{"https://a.example/hook", "https://b.example/hook"}, cfg.Webhooks.Endpoints)
	assert.Equal(t, map[string]string{"service": "wastewise", "region": "eu"}, cfg.Logging.Attributes)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/prom", cfg.Metrics.Path)
	// untouched values keep their defaults
	assert.Equal(t, "wastewise:", cfg.Storage.Redis.KeyPrefix)
	assert.Equal(t, ":9090", cfg.Metrics.Address)
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv("WASTEWISE_CLASSIFIER_MODE", "remote")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint")
}

func TestLoadFromFile(t *testing.T) {
	configContent := `{
		"environment": "testing",
		"server": {
			"address": ":9090"
		},
		"storage": {
			"adapter": "memory",
			"key": "classroom-3"
		},
		"classifier": {
			"mode": "remote",
			"endpoint": "http://model.local/classify"
		}
	}`

	path := filepath.Join(t.TempDir(), "wastewise.json")
	require.NoError(t, os.WriteFile(path, []byte(configContent), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Equal(t, "classroom-3", cfg.Storage.Key)
	assert.Equal(t, "remote", cfg.Classifier.Mode)
	// defaults survive partial files
	assert.Equal(t, 10*time.Second, cfg.Classifier.Timeout)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "invalid environment", mutate: func(c *Config) { c.Environment = "" }, expectError: "environment"},
		{name: "invalid server timeout", mutate: func(c *Config) { c.Server.ReadTimeout = 0 }, expectError: "read_timeout"},
		{name: "unknown adapter", mutate: func(c *Config) { c.Storage.Adapter = "s3" }, expectError: "adapter"},
		{name: "empty key", mutate: func(c *Config) { c.Storage.Key = " " }, expectError: "key"},
		{name: "sql without dsn", mutate: func(c *Config) {
			c.Storage.Adapter = "sql"
			c.Storage.SQL.DSN = ""
		}, expectError: "dsn"},
		{name: "bad dispatch", mutate: func(c *Config) { c.Events.Dispatch = "later" }, expectError: "dispatch"},
		{name: "bad webhook", mutate: func(c *Config) { c.Webhooks.Endpoints = []string{"ftp://x"} }, expectError: "endpoints[0]"},
		{name: "bad log output", mutate: func(c *Config) { c.Logging.Output = "file" }, expectError: "output"},
		{name: "rate limit without rpm", mutate: func(c *Config) {
			c.Security.EnableRateLimit = true
			c.Security.RateLimit.RequestsPerMinute = 0
		}, expectError: "requests_per_minute"},
		{name: "metrics path without slash", mutate: func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Path = "metrics"
		}, expectError: "metrics config: path"},
		{name: "metrics on the api address", mutate: func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Address = c.Server.Address
		}, expectError: "address must differ"},
		{name: "metrics sharing the api listener", mutate: func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Address = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProfiles(t *testing.T) {
	tests := []struct {
		name         string
		profileName  string
		expectConfig bool
		environment  Environment
	}{
		{"development", "development", true, EnvDevelopment},
		{"testing", "testing", true, EnvTesting},
		{"staging", "staging", true, EnvStaging},
		{"production", "production", true, EnvProduction},
		{"unknown", "unknown", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadProfile(tt.profileName)
			if tt.expectConfig {
				require.NoError(t, err)
				require.NotNil(t, cfg)
				assert.Equal(t, tt.environment, cfg.Environment)
			} else {
				assert.Error(t, err)
				assert.Nil(t, cfg)
			}
		})
	}
}

func TestLoadHonoursProfileEnv(t *testing.T) {
	t.Setenv("WASTEWISE_PROFILE", "testing")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Equal(t, "sync", cfg.Events.Dispatch)
}

func TestStringRedactsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.SQL.DSN = "postgres://user:hunter2@db/wastewise"
	cfg.Classifier.Token = "tok-123"
	cfg.Security.APIKeys = []string{"k1", "k2"}
	s := cfg.String()
	assert.NotContains(t, s, "hunter2")
	assert.NotContains(t, s, "tok-123")
	assert.NotContains(t, s, "k1")
	assert.Contains(t, s, "[2 REDACTED]")
}

func TestNewLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	l := LoggingConfig{Level: "warn", Format: "json", Attributes: map[string]string{"service": "wastewise"}}
	logger := l.NewLoggerTo(&buf)
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"service":"wastewise"`)
}

func TestValidateConfigPath(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "ok.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0o600))
	txtPath := filepath.Join(dir, "config.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("{}"), 0o600))

	tests := []struct {
		name        string
		path        string
		expectError bool
	}{
		{"valid json file", jsonPath, false},
		{"empty path", "", true},
		{"path traversal", "../../../etc/passwd", true},
		{"non-json file", txtPath, true},
		{"nonexistent file", filepath.Join(dir, "nonexistent.json"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
