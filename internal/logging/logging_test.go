package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/starmarket/internal/config"
)

func TestInit_JSON(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger := Init(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	slog.Warn("market crash", "turn", 12)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "market crash", line["msg"])
	assert.Equal(t, float64(12), line["turn"])
}

func TestInit_Text(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	Init(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)
	slog.Debug("turn advanced", "turn", 3)
	assert.Contains(t, buf.String(), "msg=\"turn advanced\" turn=3")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
