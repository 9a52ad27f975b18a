package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbiflow/sfbuild/internal/config"
)

func TestNewLoggerWithWriter_Formats(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
		logger.Info("scanning modules", slog.Int("count", 3))

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "scanning modules", record["msg"])
		assert.Equal(t, float64(3), record["count"])
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
		logger.Info("executing stage", slog.String("stage", "synth"))
		assert.Contains(t, buf.String(), "executing stage")
		assert.Contains(t, buf.String(), "stage=synth")
	})
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLoggerWithWriter_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	logger.Info("module env", slog.String("token", "super-secret-token"))
	assert.NotContains(t, buf.String(), "super-secret-token")
	assert.Contains(t, buf.String(), "[REDACTED]")
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	WithComponent(logger, "planner").Info("resolving")
	assert.Contains(t, buf.String(), "component=planner")
}
