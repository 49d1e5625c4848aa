package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/valkyrie/internal/config"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{name: "Should parse debug", input: "debug", want: slog.LevelDebug},
		{name: "Should parse mixed case warn", input: "Warn", want: slog.LevelWarn},
		{name: "Should parse error", input: "ERROR", want: slog.LevelError},
		{name: "Should default to info on empty input", input: "", want: slog.LevelInfo},
		{name: "Should default to info on unknown input", input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	t.Run("Should emit JSON with identity attributes", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := NewWithWriter(&config.AppConfig{
			Name:        "valkyrie-engine",
			Version:     "1.2.3",
			Environment: "staging",
			LogLevel:    "info",
			LogFormat:   "json",
		}, &buf)

		log.Info("rule fired", slog.String("rule_id", "r1"))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "rule fired", entry["msg"])
		assert.Equal(t, "valkyrie-engine", entry["service"])
		assert.Equal(t, "1.2.3", entry["version"])
		assert.Equal(t, "staging", entry["env"])
		assert.Equal(t, "r1", entry["rule_id"])
	})

	t.Run("Should emit text when configured", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := NewWithWriter(&config.AppConfig{
			Name:        "valkyrie-scheduler",
			Environment: "development",
			LogLevel:    "info",
			LogFormat:   "text",
		}, &buf)

		log.Info("tick")

		assert.True(t, strings.Contains(buf.String(), "msg=tick"))
		assert.True(t, strings.Contains(buf.String(), "service=valkyrie-scheduler"))
	})

	t.Run("Should drop records below the configured level", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := NewWithWriter(&config.AppConfig{
			Environment: config.EnvironmentProduction,
			LogLevel:    "warn",
			LogFormat:   "json",
		}, &buf)

		log.Info("hidden")
		log.Debug("hidden too")
		assert.Empty(t, buf.String())

		log.Warn("visible")
		assert.Contains(t, buf.String(), "visible")
	})

	t.Run("Should redact attributes that look like secrets", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := NewWithWriter(&config.AppConfig{Name: "valkyrie-engine", LogLevel: "info"}, &buf)

		log.Info("webhook configured",
			slog.String("webhook_secret", "s3cr3t"),
			slog.String("api_key", "k"),
			slog.String("url", "https://hooks.example.com"),
		)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, Redacted, entry["webhook_secret"])
		assert.Equal(t, Redacted, entry["api_key"])
		assert.Equal(t, "https://hooks.example.com", entry["url"])
	})

	t.Run("Should panic on nil config", func(t *testing.T) {
		t.Parallel()
		assert.PanicsWithValue(t, "logger: config cannot be nil", func() {
			NewWithWriter(nil, &bytes.Buffer{})
		})
	})
}
