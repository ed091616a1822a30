package util

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerTextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerOptions{Level: "info", Console: &buf})

	logger.Debug("hidden")
	logger.Info("cycle applied", F("trackers", 3), F("cycle_id", 7))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] cycle applied")
	// fields are sorted by key
	assert.Contains(t, out, "cycle_id=7 trackers=3")
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerOptions{Level: "debug", Console: &buf, Format: FormatJSON})

	logger.With(F("serial", "T1")).Warn("history fetch failed")

	var entry LogEntry
	require.NoError(t, sonic.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "history fetch failed", entry.Message)
	assert.Equal(t, "T1", entry.Fields["serial"])
}

func TestLoggerWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerOptions{Level: "debug", Console: &buf})

	ctx := context.WithValue(context.Background(), CycleIDKey, uint64(12))
	logger.WithContext(ctx).Debug("discovery done")

	assert.Contains(t, buf.String(), "cycle_id=12")
}

func TestGlobalFormattedHelpers(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewLogger(LoggerOptions{Level: "debug", Console: &buf}))
	defer SetLogger(nil)

	LogDebugf("preloaded %d keys", 3)
	LogInfof("using file store at %s", "/tmp/state")
	LogErrorf("watch error: %v", "queue overflow")

	out := buf.String()
	assert.Contains(t, out, "[DEBUG] preloaded 3 keys")
	assert.Contains(t, out, "[INFO] using file store at /tmp/state")
	assert.Contains(t, out, "[ERROR] watch error: queue overflow")

	SetLogger(nil)
	assert.NotPanics(t, func() { LogInfof("dropped %s", "silently") })
}

func TestGlobalLoggerHelpers(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewLogger(LoggerOptions{Level: "warn", Console: &buf}))
	defer SetLogger(nil)

	LogInfo("ignored")
	LogWarnf("store %s corrupt", "trackerNames")
	LogError("boom", F("key", "hiddenTrackers"))

	out := buf.String()
	assert.NotContains(t, out, "ignored")
	assert.Contains(t, out, "store trackerNames corrupt")
	assert.Contains(t, out, "key=hiddenTrackers")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLogLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, LevelError, ParseLogLevel("error"))
	assert.Equal(t, LevelInfo, ParseLogLevel("nonsense"))
}
