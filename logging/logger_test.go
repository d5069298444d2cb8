package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{in: "debug", want: LogLevelDebug},
		{in: "INFO", want: LogLevelInfo},
		{in: "", want: LogLevelInfo},
		{in: "warning", want: LogLevelWarn},
		{in: "error", want: LogLevelError},
		{in: "loud", want: LogLevelInfo, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger_JSONWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf, Component: "test"})
	defer closer.Close()

	With(logger, "run_id", "r1").Debug("inner loop", "round", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "inner loop", entry["msg"])
	assert.Equal(t, "test", entry["component"])
	assert.Equal(t, "r1", entry["run_id"])
	assert.Equal(t, float64(2), entry["round"])
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: "text", Output: &buf})
	logger.Info("hidden")
	assert.Empty(t, buf.String())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "magentic.log")
	logger, closer := NewLogger(&LoggerConfig{Level: LogLevelInfo, File: &FileConfig{Path: path, MaxSizeMB: 1}})
	logger.Info("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestWith_NoOpPassthrough(t *testing.T) {
	var l Logger = NoOpLogger{}
	assert.Equal(t, l, With(l, "k", "v"))
}
