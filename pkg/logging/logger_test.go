package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase TRACE", "TRACE", LevelTrace},
		{"warn", "Warn", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"unknown defaults to info", "loud", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
	assert.True(t, ValidLevel(""))
	assert.True(t, ValidLevel("Debug"))
	assert.False(t, ValidLevel("loud"))
}

func TestTraceLevelIsLabelled(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(context.Background(), LevelTrace, "drew record", "activity", "Eating")
	assert.Contains(t, buf.String(), "level=TRACE")
	assert.Contains(t, buf.String(), "activity=Eating")
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", &buf)
	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	NewJSONLogger("debug", &buf).Debug("trained", "rows", 350)
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "trained", line["msg"])
	assert.Equal(t, float64(350), line["rows"])
}

func TestDiscard(t *testing.T) {
	require.NotNil(t, Discard())
	Discard().Info("nothing")
}
