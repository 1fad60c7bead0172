package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelWarn},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_SimpleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(slog.LevelInfo, &buf, FormatSimple, false)

	log.Debug("hidden")
	log.Info("model loaded", "model", "llama3.2", "n_ctx", 2000)

	assert.Equal(t, "INFO model loaded model=llama3.2 n_ctx=2000\n", buf.String())
}

func TestNew_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	log := New(slog.LevelInfo, &buf, FormatSimple, false).
		With("request_id", "abc").
		WithGroup("tool")

	log.Warn("invoke failed", "name", "calculator")

	assert.Equal(t, "WARN invoke failed request_id=abc tool.name=calculator\n", buf.String())
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(slog.LevelDebug, &buf, FormatJSON, false)

	log.Debug("token", "data", "Hel")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "token", rec["msg"])
	assert.Equal(t, "Hel", rec["data"])
	assert.Equal(t, "DEBUG", rec["level"])
}

func TestNew_ColorWrapsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(slog.LevelInfo, &buf, FormatSimple, true)

	log.Error("boom")

	assert.Contains(t, buf.String(), "\033[31mERROR\033[0m boom")
}

func TestOpenLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	f, cleanup, err := OpenLogFile(path)
	require.NoError(t, err)
	defer cleanup()

	Init(slog.LevelInfo, f, FormatSimple)
	GetLogger().Info("written")

	assert.FileExists(t, path)
}
