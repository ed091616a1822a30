package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/penwyp/go-tracker-monitor/internal/core/registry"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.Backend.URL)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "file", cfg.State.Backend)
	assert.Equal(t, 15*time.Second, cfg.Watch.Interval)
	assert.Equal(t, 4, cfg.Watch.Concurrency)
	assert.Equal(t, 0.1, cfg.Watch.FitPadding)
	assert.Equal(t, "keep", cfg.Trackers.RenamePolicy)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "Local", cfg.Timezone)
	assert.Empty(t, cfg.File)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
backend:
  url: https://tracker.example.com
  timeout: 3s
state:
  backend: sqlite
  dir: /tmp/tracker-state
watch:
  interval: 30s
trackers:
  renamePolicy: regenerate
log:
  level: debug
  gelf: graylog.local:12201
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "https://tracker.example.com", cfg.Backend.URL)
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "sqlite", cfg.State.Backend)
	assert.Equal(t, 30*time.Second, cfg.Watch.Interval)
	assert.Equal(t, 4, cfg.Watch.Concurrency, "unset keys keep their defaults")
	assert.Equal(t, "regenerate", cfg.Trackers.RenamePolicy)
	assert.Equal(t, "graylog.local:12201", cfg.LoggerOptions().GELFAddress)
}

func TestLoad_EnvAndFlagsOverride(t *testing.T) {
	path := writeConfig(t, "backend:\n  url: https://file.example.com\nwatch:\n  interval: 30s\n")
	t.Setenv("TRACKER_BACKEND_URL", "https://env.example.com")
	t.Setenv("TRACKER_WATCH_CONCURRENCY", "8")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("backend", "", "")
	flags.Duration("interval", 0, "")
	require.NoError(t, flags.Parse([]string{"--interval", "5s"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Backend.URL, "env beats file; an unchanged flag does not")
	assert.Equal(t, 5*time.Second, cfg.Watch.Interval, "changed flag beats file")
	assert.Equal(t, 8, cfg.Watch.Concurrency)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad url", "backend:\n  url: not a url\n"},
		{"unknown store", "state:\n  backend: redis\n"},
		{"interval too short", "watch:\n  interval: 100ms\n"},
		{"unknown rename policy", "trackers:\n  renamePolicy: sometimes\n"},
		{"bad log level", "log:\n  level: chatty\n"},
		{"zero concurrency", "watch:\n  concurrency: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestTracking(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("", nil)
	require.NoError(t, err)
	cfg.Trackers.RenamePolicy = "regenerate"

	tc, err := cfg.Tracking()
	require.NoError(t, err)
	assert.Equal(t, registry.RenameRegenerateColor, tc.RenamePolicy)
	assert.Equal(t, cfg.Backend.URL, tc.BackendURL)
	assert.True(t, filepath.IsAbs(tc.StateDir))
	assert.Equal(t, 15*time.Second, tc.Interval)
	assert.Equal(t, 0.1, tc.FitPadding)
}

func TestTracking_ZeroFitPadding(t *testing.T) {
	cfg, err := Load(writeConfig(t, "watch:\n  fitPadding: 0\n"), nil)
	require.NoError(t, err)
	assert.Zero(t, cfg.Watch.FitPadding)

	tc, err := cfg.Tracking()
	require.NoError(t, err)
	assert.Zero(t, tc.FitPadding, "an explicit zero is not replaced by the default")
}

func TestWriteRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("", nil)
	require.NoError(t, err)
	cfg.Backend.URL = "https://written.example.com"
	cfg.Watch.Interval = 45 * time.Second

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.Write(path, false))
	assert.Error(t, cfg.Write(path, false), "existing file is kept")
	require.NoError(t, cfg.Write(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "interval: 45s")

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://written.example.com", loaded.Backend.URL)
	assert.Equal(t, 45*time.Second, loaded.Watch.Interval)
}
