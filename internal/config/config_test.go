package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 8080
  host: "0.0.0.0"

database:
  host: "localhost"
  port: 5432
  name: "grid"
  user: "testuser"
  password: "testpass"
  ssl_mode: "require"

logging:
  level: "debug"
  format: "text"

upstream:
  timeout: 10s
  retry_attempts: 5
  rate_limits:
    PJM: 2
    caiso: 0.5

collector:
  enabled: true
  schedule: "*/15 * * * *"
  bootstrap_days: 7
  authorities:
    - code: PJM
    - code: EU
      nodes: [DE, FR]
`)

	config, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, "localhost", config.Database.Host)
	assert.Equal(t, "grid", config.Database.Name)
	assert.Equal(t, "require", config.Database.SSLMode)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "text", config.Logging.Format)

	assert.Equal(t, 10*time.Second, config.Upstream.Timeout)
	assert.Equal(t, 5, config.Upstream.RetryAttempts)
	assert.Equal(t, 2.0, config.Upstream.RateLimit("PJM"))
	assert.Equal(t, 0.5, config.Upstream.RateLimit("CAISO"))
	assert.Zero(t, config.Upstream.RateLimit("MISO"))

	assert.True(t, config.Collector.Enabled)
	assert.Equal(t, "*/15 * * * *", config.Collector.Schedule)
	assert.Equal(t, 7, config.Collector.BootstrapDays)
	require.Len(t, config.Collector.Authorities, 2)
	assert.Equal(t, []string{"DE", "FR"}, config.Collector.Authorities[1].Nodes)
}

func TestLoadDefaults(t *testing.T) {
	config, err := Load(writeConfig(t, "database:\n  host: db\n"))
	require.NoError(t, err)

	assert.Equal(t, 50051, config.Server.Port)
	assert.Equal(t, 5432, config.Database.Port)
	assert.Equal(t, "disable", config.Database.SSLMode)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.Equal(t, 30*time.Second, config.Upstream.Timeout)
	assert.Equal(t, 2*time.Minute, config.Upstream.CallTimeout)
	assert.Equal(t, 3, config.Upstream.RetryAttempts)
	assert.Equal(t, 250*time.Millisecond, config.Upstream.RetryBaseDelay)
	assert.Equal(t, 256, config.Upstream.ArchiveCacheSize)
	assert.Equal(t, 6*time.Hour, config.Upstream.ArchiveCacheTTL)
	assert.Equal(t, "*/5 * * * *", config.Collector.Schedule)
	assert.Equal(t, time.Hour, config.Collector.Lookback)
	assert.False(t, config.Collector.Enabled)
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("APP_DATABASE_HOST", "envhost")
	t.Setenv("APP_DATABASE_PORT", "5433")
	t.Setenv("EIA_API_KEY", "secret-key")

	config, err := Load(writeConfig(t, `
database:
  host: $APP_DATABASE_HOST
  port: $APP_DATABASE_PORT
  name: "grid"
credentials:
  eia: ${EIA_API_KEY}
`))
	require.NoError(t, err)

	assert.Equal(t, "envhost", config.Database.Host)
	assert.Equal(t, 5433, config.Database.Port)
	assert.Equal(t, "secret-key", config.Credentials.Map()["eia"])
	assert.Contains(t, config.Database.DSN(), "host=envhost port=5433")
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not a mapping", content: "- just\n- a list\n"},
		{name: "bad level", content: "logging:\n  level: loud\n"},
		{name: "bad duration", content: "upstream:\n  timeout: soon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
