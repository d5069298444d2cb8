package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/magentic/logging"
)

const sampleYAML = `
model:
  provider: mock
  name: test-model
  temperature: 0.2
manager:
  max_stall_count: 2
  max_round_count: 10
rate_limit:
  requests_per_minute: 60
  burst: 2
log:
  level: debug
  format: json
members:
  - name: researcher
    description: finds sources
    instructions: Cite everything.
  - name: coder
    description: writes code
    stateful: true
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "magentic.yaml", sampleYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderMock, cfg.Model.Provider)
	assert.Equal(t, "test-model", cfg.Model.Name)
	require.NotNil(t, cfg.Model.Temperature)
	assert.InDelta(t, 0.2, *cfg.Model.Temperature, 1e-9)

	limits := cfg.Limits()
	assert.Equal(t, 2, limits.MaxStallCount)
	require.NotNil(t, limits.MaxRoundCount)
	assert.Equal(t, 10, *limits.MaxRoundCount)
	assert.Nil(t, limits.MaxResetCount)

	assert.InDelta(t, 60, cfg.RateLimit.RequestsPerMinute, 1e-9)
	require.Len(t, cfg.Members, 2)
	assert.Equal(t, "Cite everything.", cfg.Members[0].Instructions)
	assert.True(t, cfg.Members[1].Stateful)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "magentic.yaml", sampleYAML)
	t.Setenv("MAGENTIC_MODEL_NAME", "from-env")
	t.Setenv("MAGENTIC_MANAGER_MAX_RESET_COUNT", "4")
	t.Setenv("MAGENTIC_LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Model.Name)
	require.NotNil(t, cfg.Manager.MaxResetCount)
	assert.Equal(t, 4, *cfg.Manager.MaxResetCount)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Manager.MaxStallCount, "unset variables keep file values")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "magentic.yaml", sampleYAML)
	writeFile(t, dir, ".env", "MAGENTIC_MODEL_NAME=from-dotenv\n")
	t.Cleanup(func() { _ = os.Unsetenv("MAGENTIC_MODEL_NAME") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Model.Name)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad yaml", yaml: "model: [unclosed"},
		{name: "no members", yaml: "model:\n  provider: mock\n"},
		{name: "unknown provider", yaml: "model:\n  provider: nope\nmembers:\n  - name: a\n    description: d\n"},
		{name: "missing description", yaml: "model:\n  provider: mock\nmembers:\n  - name: a\n"},
		{name: "duplicate member", yaml: "model:\n  provider: mock\nmembers:\n  - name: a\n    description: d\n  - name: a\n    description: d\n"},
		{name: "invalid limit", yaml: "model:\n  provider: mock\nmanager:\n  max_round_count: 0\nmembers:\n  - name: a\n    description: d\n"},
		{name: "bad log level", yaml: "model:\n  provider: mock\nlog:\n  level: loud\nmembers:\n  - name: a\n    description: d\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "magentic.yaml", tt.yaml)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err, "defaults have no members")
	assert.Contains(t, err.Error(), "members")
}

func TestConfig_LoggerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "debug"
	cfg.Log.File = filepath.Join(t.TempDir(), "magentic.log")

	lc := cfg.LoggerConfig()
	assert.Equal(t, logging.LogLevelDebug, lc.Level)
	assert.Equal(t, "text", lc.Format)
	require.NotNil(t, lc.File)
	assert.Equal(t, cfg.Log.File, lc.File.Path)
	assert.Equal(t, 10, lc.File.MaxSizeMB)
}
