// Package config loads the CLI configuration: a YAML file, an optional .env
// file next to it, and MAGENTIC_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/magentic/logging"
	"github.com/hupe1980/magentic/orchestration"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MAGENTIC"

// Supported model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Config is the root configuration.
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Manager   ManagerConfig   `yaml:"manager"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
	Members   []MemberConfig  `yaml:"members"`
}

// ModelConfig selects the completion service shared by manager and members.
type ModelConfig struct {
	Provider    string   `yaml:"provider" split_words:"true"`
	Name        string   `yaml:"name" split_words:"true"`
	APIKey      string   `yaml:"api_key" split_words:"true"`
	Temperature *float64 `yaml:"temperature" split_words:"true"`
	MaxTokens   int64    `yaml:"max_tokens" split_words:"true"`
	Stream      bool     `yaml:"stream" split_words:"true"`
}

// ManagerConfig bounds a run. Nil limits are unlimited.
type ManagerConfig struct {
	MaxStallCount int  `yaml:"max_stall_count" split_words:"true"`
	MaxResetCount *int `yaml:"max_reset_count" split_words:"true"`
	MaxRoundCount *int `yaml:"max_round_count" split_words:"true"`
}

// RateLimitConfig throttles model calls. Zero disables throttling.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute" split_words:"true"`
	Burst             int     `yaml:"burst" split_words:"true"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level      string `yaml:"level" split_words:"true"`
	Format     string `yaml:"format" split_words:"true"`
	File       string `yaml:"file" split_words:"true"`
	MaxSizeMB  int    `yaml:"max_size_mb" split_words:"true"`
	MaxBackups int    `yaml:"max_backups" split_words:"true"`
	MaxAgeDays int    `yaml:"max_age_days" split_words:"true"`
	Compress   bool   `yaml:"compress" split_words:"true"`
}

// MemberConfig declares one team member backed by the configured model.
type MemberConfig struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Instructions string `yaml:"instructions"`
	Stateful     bool   `yaml:"stateful"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider: ProviderOpenAI,
		},
		Manager: ManagerConfig{
			MaxStallCount: orchestration.DefaultMaxStallCount,
		},
		Log: LogConfig{
			Level:      "warn",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Validate checks the configuration before anything is built from it.
func (c *Config) Validate() error {
	var errs []error

	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("model.provider: unsupported provider %q", c.Model.Provider))
	}

	if err := c.Limits().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("manager: %w", err))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("rate_limit.requests_per_minute must be >= 0"))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	if len(c.Members) == 0 {
		errs = append(errs, errors.New("members: at least one member is required"))
	}
	seen := make(map[string]bool, len(c.Members))
	for i, m := range c.Members {
		if strings.TrimSpace(m.Name) == "" {
			errs = append(errs, fmt.Errorf("members[%d].name is required", i))
			continue
		}
		if seen[m.Name] {
			errs = append(errs, fmt.Errorf("members[%d]: duplicate name %q", i, m.Name))
		}
		seen[m.Name] = true
		if strings.TrimSpace(m.Description) == "" {
			errs = append(errs, fmt.Errorf("members[%d] (%s): description is required", i, m.Name))
		}
	}

	return errors.Join(errs...)
}

// Limits converts the manager section into orchestration limits.
func (c *Config) Limits() orchestration.Limits {
	return orchestration.Limits{
		MaxStallCount: c.Manager.MaxStallCount,
		MaxResetCount: c.Manager.MaxResetCount,
		MaxRoundCount: c.Manager.MaxRoundCount,
	}
}

// LoggerConfig converts the log section into a logging configuration.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultLoggerConfig()
	if lvl, err := logging.ParseLevel(c.Log.Level); err == nil {
		cfg.Level = lvl
	}
	if c.Log.Format != "" {
		cfg.Format = c.Log.Format
	}
	if c.Log.File != "" {
		cfg.File = &logging.FileConfig{
			Path:       c.Log.File,
			MaxSizeMB:  c.Log.MaxSizeMB,
			MaxBackups: c.Log.MaxBackups,
			MaxAgeDays: c.Log.MaxAgeDays,
			Compress:   c.Log.Compress,
		}
	}
	cfg.Component = "magentic"
	return cfg
}
