package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	sections := []struct {
		name string
		fn   func() error
	}{
		{"server", c.Server.Validate},
		{"storage", c.Storage.Validate},
		{"logging", c.Logging.Validate},
		{"classifier", c.Classifier.Validate},
		{"events", c.Events.Validate},
		{"webhooks", c.Webhooks.Validate},
		{"metrics", c.Metrics.Validate},
		{"security", c.Security.Validate},
	}
	for _, s := range sections {
		if err := s.fn(); err != nil {
			errs = append(errs, fmt.Sprintf("%s config: %v", s.name, err))
		}
	}

	if c.Metrics.Enabled && c.Metrics.Address != "" && c.Metrics.Address == c.Server.Address {
		errs = append(errs, "metrics config: address must differ from server address, leave it empty to share the listener")
	}

	return joinErrs(errs)
}

func joinErrs(errs []string) error {
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func oneOf(errs []string, field, value string, valid ...string) []string {
	if !slices.Contains(valid, value) {
		errs = append(errs, fmt.Sprintf("%s must be one of: %s", field, strings.Join(valid, ", ")))
	}
	return errs
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}
	if s.PathPrefix != "" && !strings.HasPrefix(s.PathPrefix, "/") {
		errs = append(errs, "path_prefix must start with /")
	}
	if s.MaxImageBytes <= 0 {
		errs = append(errs, "max_image_bytes must be positive")
	}
	if s.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}
	if s.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}
	if s.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}
	if s.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}

	return joinErrs(errs)
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	var errs []string

	errs = oneOf(errs, "adapter", s.Adapter, "memory", "file", "redis", "sql")
	if strings.TrimSpace(s.Key) == "" {
		errs = append(errs, "key cannot be empty")
	}
	if s.RetryInterval < 0 {
		errs = append(errs, "retry_interval cannot be negative")
	}

	switch s.Adapter {
	case "file":
		if err := s.File.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("file config: %v", err))
		}
	case "redis":
		if s.Redis.Addr == "" {
			errs = append(errs, "redis config: addr cannot be empty")
		}
	case "sql":
		if err := s.SQL.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("sql config: %v", err))
		}
	}

	return joinErrs(errs)
}

// Validate validates file storage configuration
func (f *FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

// Validate validates SQL storage configuration
func (s *SQLConfig) Validate() error {
	var errs []string
	errs = oneOf(errs, "driver", s.Driver, "postgres", "mysql", "sqlite")
	if s.DSN == "" {
		errs = append(errs, "dsn cannot be empty")
	}
	if s.MaxOpenConns < 0 || s.MaxIdleConns < 0 {
		errs = append(errs, "connection limits cannot be negative")
	}
	return joinErrs(errs)
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string
	errs = oneOf(errs, "level", l.Level, "debug", "info", "warn", "error")
	errs = oneOf(errs, "format", l.Format, "json", "text")
	errs = oneOf(errs, "output", l.Output, "stdout", "stderr")
	return joinErrs(errs)
}

// Validate validates classifier configuration
func (c *ClassifierConfig) Validate() error {
	var errs []string
	errs = oneOf(errs, "mode", c.Mode, "demo", "remote")
	if c.Mode == "remote" {
		if u, err := url.Parse(c.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, "endpoint must be an absolute URL in remote mode")
		}
	}
	if c.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	if c.Delay < 0 {
		errs = append(errs, "delay cannot be negative")
	}
	return joinErrs(errs)
}

// Validate validates event delivery configuration
func (e *EventsConfig) Validate() error {
	return joinErrs(oneOf(nil, "dispatch", e.Dispatch, "sync", "async"))
}

// Validate validates webhook configuration
func (w *WebhookConfig) Validate() error {
	var errs []string
	for i, ep := range w.Endpoints {
		if u, err := url.Parse(ep); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("endpoints[%d] must be an http(s) URL", i))
		}
	}
	if len(w.Endpoints) > 0 && w.Timeout <= 0 {
		errs = append(errs, "timeout must be positive when endpoints are set")
	}
	return joinErrs(errs)
}

// Validate validates security settings.
func (s *SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}
	return joinErrs(errs)
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	var errs []string
	if m.Enabled && !strings.HasPrefix(m.Path, "/") {
		errs = append(errs, "path must start with / when metrics are enabled")
	}
	return joinErrs(errs)
}
