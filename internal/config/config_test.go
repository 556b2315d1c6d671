package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remora.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// inTempDir переключает рабочую директорию, чтобы .env из репозитория не подхватился.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

// --- Load Tests ---

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Client.RetriesEnabled)
	assert.Equal(t, 150*time.Second, cfg.Client.RetryDuration)
	assert.Equal(t, 60*time.Second, cfg.Client.AbandonCompleteScriptAfter)
	assert.Equal(t, 4, cfg.Agent.Concurrency)
	assert.Empty(t, cfg.Workers)
}

func TestLoad_File(t *testing.T) {
	inTempDir(t)

	path := writeConfig(t, `
workers:
  - http://worker-1:8080
  - http://worker-2:8080
client:
  retries_enabled: false
  retry_duration: 30s
  disable_script_service_v3: true
  requests_per_second: 5
agent:
  concurrency: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://worker-1:8080", "http://worker-2:8080"}, cfg.Workers)
	assert.False(t, cfg.Client.RetriesEnabled)
	assert.Equal(t, 30*time.Second, cfg.Client.RetryDuration)
	assert.True(t, cfg.Client.DisableScriptServiceV3)
	assert.Equal(t, 5.0, cfg.Client.RequestsPerSecond)
	assert.Equal(t, 60*time.Second, cfg.Client.AbandonCompleteScriptAfter, "unset keys keep defaults")
	assert.Equal(t, 8, cfg.Agent.Concurrency)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	inTempDir(t)

	path := writeConfig(t, "client:\n  retry_duration: 30s\n")
	t.Setenv("REMORA_RETRY_DURATION", "45s")
	t.Setenv("REMORA_WORKERS", "http://a;http://b")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Client.RetryDuration)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Workers)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REMORA_AGENT_CONCURRENCY=2\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("REMORA_AGENT_CONCURRENCY") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Agent.Concurrency)
}

func TestLoad_Errors(t *testing.T) {
	inTempDir(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "client: [not, a, map]"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "client:\n  retry_duration: -1s\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

// --- Mapping Tests ---

func TestClientOptions(t *testing.T) {
	cfg := Default()
	cfg.Client.RetriesEnabled = false
	cfg.Client.RetryDuration = 10 * time.Second
	cfg.Client.DisableScriptServiceV3 = true
	cfg.Client.AbandonCapabilitiesAfter = 2 * time.Second

	opts := cfg.ClientOptions()
	assert.False(t, opts.RetrySettings.RetriesEnabled)
	assert.Equal(t, 10*time.Second, opts.RetrySettings.RetryDuration)
	assert.True(t, opts.DisableScriptServiceV3)
	assert.Equal(t, 2*time.Second, opts.AbandonCapabilitiesAfter)
	assert.NotNil(t, opts.ObserverBackoff)
	assert.NotNil(t, opts.RetryBackoff)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero retry duration", func(c *Config) { c.Client.RetryDuration = 0 }},
		{"zero abandon", func(c *Config) { c.Client.AbandonCompleteScriptAfter = 0 }},
		{"negative capabilities abandon", func(c *Config) { c.Client.AbandonCapabilitiesAfter = -time.Second }},
		{"negative rate", func(c *Config) { c.Client.RequestsPerSecond = -1 }},
		{"zero concurrency", func(c *Config) { c.Agent.Concurrency = 0 }},
		{"empty worker", func(c *Config) { c.Workers = []string{""} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
