package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelString(t *testing.T) {
	testCases := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warn"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestLoggerTextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Format: "text", Output: &buf})

	logger.Info(context.Background(), "settings saved", "count", 3)

	out := buf.String()
	assert.Contains(t, out, "settings saved")
	assert.Contains(t, out, "count=3")
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Format: "json", Output: &buf})

	logger.Error(context.Background(), fmt.Errorf("boom"), "save failed", "key", "menu_width")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "save failed", entry["msg"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "menu_width", entry["key"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Format: "text", Output: &buf})

	logger.Debug(context.Background(), "not shown")
	logger.Info(context.Background(), "not shown either")
	assert.Empty(t, buf.String())

	logger.Warn(context.Background(), nil, "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestLoggerWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Format: "text", Output: &buf})

	logger.WithComponent("gate").Info(context.Background(), "request admitted")

	assert.Contains(t, buf.String(), "component=gate")
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Format: "text", Output: &buf})

	scoped := logger.With("request_id", "01J0")
	scoped.Info(context.Background(), "first")
	scoped.Info(context.Background(), "second")

	assert.Equal(t, 2, strings.Count(buf.String(), "request_id=01J0"))
}

func TestRedactToken(t *testing.T) {
	assert.Equal(t, "[REDACTED]", RedactToken("short"))
	assert.Equal(t, "[REDACTED]", RedactToken(""))

	redacted := RedactToken("eyJhbGciOiJIUzI1NiJ9.payload.signature")
	assert.Equal(t, "eyJh...ture", redacted)
	assert.NotContains(t, redacted, "payload")
}

func TestNopLoggerDoesNothing(t *testing.T) {
	var logger Logger = NopLogger{}
	// Must not panic and must keep returning a usable logger.
	logger.Debug(context.Background(), "x")
	logger.Error(context.Background(), fmt.Errorf("x"), "x")
	assert.NotNil(t, logger.With("a", 1).WithComponent("b"))
}
