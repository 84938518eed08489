package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithAPIKey(t *testing.T) {
	t.Setenv("GRANTPILOT_LLM_GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.ModelName)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, 4, cfg.Task.WorkerCount)
	assert.Equal(t, 30*time.Minute, cfg.Task.DefaultTimeLimit)
	assert.Equal(t, 32, cfg.Realtime.SendBuffer)
	assert.Equal(t, 300*time.Second, cfg.Realtime.MaxIdle)
	assert.Equal(t, 60*time.Second, cfg.Realtime.EvictInterval)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("GRANTPILOT_LLM_GEMINI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GRANTPILOT_LLM_GEMINI_API_KEY", "test-key")
	t.Setenv("GRANTPILOT_SERVER_PORT", "9090")
	t.Setenv("GRANTPILOT_SERVER_LOG_LEVEL", "debug")
	t.Setenv("GRANTPILOT_REALTIME_SEND_BUFFER", "64")
	t.Setenv("GRANTPILOT_TASK_DEFAULT_TIME_LIMIT", "10m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 64, cfg.Realtime.SendBuffer)
	assert.Equal(t, 10*time.Minute, cfg.Task.DefaultTimeLimit)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("GRANTPILOT_LLM_GEMINI_API_KEY", "test-key")
	t.Setenv("GRANTPILOT_SERVER_PORT", "70000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Server.Port")
}

func TestLoad_RejectsBadLogLevel(t *testing.T) {
	t.Setenv("GRANTPILOT_LLM_GEMINI_API_KEY", "test-key")
	t.Setenv("GRANTPILOT_SERVER_LOG_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LogLevel")
}
