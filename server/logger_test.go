package server

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLogLevel("debug"))
	assert.Equal(t, WARN, ParseLogLevel(" warning "))
	assert.Equal(t, ERROR, ParseLogLevel("ERROR"))
	assert.Equal(t, INFO, ParseLogLevel(""))
	assert.Equal(t, INFO, ParseLogLevel("chatty"))
}

func TestLogger_LevelFilterAndStreams(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := NewLoggerWithOutput(&stdout, &stderr, INFO, false)

	logger.Debug("hidden %d", 1)
	logger.Info("visible %d", 2)
	logger.WithContext(&LogContext{JobID: "job-1", Model: "m"}).InfoWithFields("done", map[string]interface{}{
		"b": 2,
		"a": 1,
	})
	logger.Error("broken")

	out := stdout.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO]  visible 2")
	assert.Contains(t, out, "[Job:job-1][Model:m] done | a=1 b=2")
	assert.NotContains(t, out, "broken")
	assert.Contains(t, stderr.String(), "[ERROR] broken")
}

func TestLogger_JSONOutput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := NewLoggerWithOutput(&stdout, &stderr, DEBUG, true)

	logger.WarnWithContext(&LogContext{RequestID: "req-9"}, "slow <call> %s", "x")

	var entry JSONLogEntry
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &entry))
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "slow <call> x", entry.Message)
	require.NotNil(t, entry.Context)
	assert.Equal(t, "req-9", entry.Context.RequestID)
	assert.Empty(t, stderr.String())
}
