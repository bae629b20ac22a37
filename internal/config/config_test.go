package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	t.Setenv("HTTP_PORT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3001, cfg.HTTPPort)
	assert.Equal(t, "mistral-large-3", cfg.DefaultModel)
	assert.Equal(t, 60, cfg.VisibilityCap)
	assert.Equal(t, 12, cfg.TrimKeep)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBase)
	assert.Equal(t, 300*time.Millisecond, cfg.PersistDebounce)
	assert.Equal(t, 5*time.Second, cfg.NotificationTTL)
	assert.False(t, cfg.TelemetryEnabled)
	assert.False(t, cfg.MockMode)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_port: 9000
default_model: gemini-2.5-flash
telemetry_enabled: true
visibility_cap: 40
retry_base_ms: 250
mode: mock
`), 0o644))

	t.Setenv(EnvConfigFile, path)
	t.Setenv("HTTP_PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.HTTPPort, "env overrides file")
	assert.Equal(t, "gemini-2.5-flash", cfg.DefaultModel)
	assert.True(t, cfg.TelemetryEnabled)
	assert.Equal(t, 40, cfg.VisibilityCap)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBase)
	assert.True(t, cfg.MockMode)
	assert.Equal(t, 12, cfg.TrimKeep, "unset keys keep defaults")
}

func TestLoadTestProfile(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	t.Setenv("STREAMCHAT_PROFILE", ProfileTest)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, cfg.RetryBase)
	assert.Equal(t, 3, cfg.RetryAttempts)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, policy.Base)
	assert.Equal(t, 300*time.Millisecond, policy.JitterMax)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_port: [not a number"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestInvalidEnvFallsBack(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	t.Setenv("TRIM_KEEP", "many")
	t.Setenv("TELEMETRY_ENABLED", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.TrimKeep)
	assert.False(t, cfg.TelemetryEnabled)
}
