package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
)

func TestInitLoggerFromCLI_Precedence(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")
	t.Setenv(LogFormatEnvVar, "")
	t.Setenv(LogFileEnvVar, "")

	logs, err := initLoggerFromCLI("debug", "", "")
	require.NoError(t, err)
	defer logs.Close()

	assert.Equal(t, "debug", logs.level, "flag beats env")
	assert.True(t, logs.pinnedLevel)
	assert.Equal(t, DefaultLogFormat, logs.format)
	assert.False(t, logs.pinnedFormat)

	logs2, err := initLoggerFromCLI("", "", "")
	require.NoError(t, err)
	defer logs2.Close()
	assert.Equal(t, "warn", logs2.level, "env beats default")
}

func TestLogSettings_ApplyConfig(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	t.Setenv(LogFormatEnvVar, "")
	t.Setenv(LogFileEnvVar, "")

	logs, err := initLoggerFromCLI("error", "", "")
	require.NoError(t, err)
	defer logs.Close()

	file := filepath.Join(t.TempDir(), "textserver.log")
	require.NoError(t, logs.applyConfig(&config.LoggerConfig{Level: "debug", Format: "json", File: file}))

	assert.Equal(t, "error", logs.level, "pinned by flag")
	assert.Equal(t, "json", logs.format)
	assert.Equal(t, file, logs.file)
	assert.FileExists(t, file)
}
