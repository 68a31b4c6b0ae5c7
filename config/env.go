package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// loadFromEnv overlays WASTEWISE_* variables onto cfg. Unset variables keep
// the current value. Lists are comma separated; log attributes use
// key=value pairs.
func loadFromEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
