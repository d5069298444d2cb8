package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path (a missing file keeps the defaults),
// loads a .env file from the same directory without overwriting the
// environment, then applies MAGENTIC_* overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			// If file doesn't exist, continue with defaults
		default:
			return nil, err
		}
	}

	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads .env from the config file's directory, or the working
// directory when no config file is given. A missing file is not an error.
func loadDotEnv(configPath string) error {
	dir := "."
	if configPath != "" {
		dir = filepath.Dir(configPath)
	}
	envPath := filepath.Join(dir, ".env")

	if _, err := os.Stat(envPath); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("load %s: %w", envPath, err)
	}
	return nil
}

// applyEnv overrides each group from the environment.
func applyEnv(cfg *Config) error {
	for _, g := range []struct {
		prefix string
		spec   any
	}{
		{EnvPrefix + "_MODEL", &cfg.Model},
		{EnvPrefix + "_MANAGER", &cfg.Manager},
		{EnvPrefix + "_RATE_LIMIT", &cfg.RateLimit},
		{EnvPrefix + "_LOG", &cfg.Log},
	} {
		if err := envconfig.Process(g.prefix, g.spec); err != nil {
			return fmt.Errorf("environment %s_*: %w", g.prefix, err)
		}
	}
	return nil
}
