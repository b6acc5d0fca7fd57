package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, "dev", cfg.Auth.Mode)
	assert.False(t, cfg.Webhook.BreakerEnabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("PORT", "9090")
	t.Setenv("WEBHOOK_TIMEOUT", "2s")
	t.Setenv("WEBHOOK_MAX_IN_FLIGHT", "3")
	t.Setenv("WEBHOOK_BREAKER_ENABLED", "true")
	t.Setenv("ALLOW_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 3, cfg.Webhook.MaxInFlight)
	assert.True(t, cfg.Webhook.BreakerEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowOrigins)
}

func TestLoadFromFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("webhook:\n  timeout: 7s\n  workers: 2\nlog:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("WEBHOOK_WORKERS", "6")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 6, cfg.Webhook.Workers, "env overrides file")
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"zero timeout":       func(c *Config) { c.Webhook.Timeout = 0 },
		"negative in-flight": func(c *Config) { c.Webhook.MaxInFlight = -1 },
		"unknown auth mode":  func(c *Config) { c.Auth.Mode = "magic" },
		"hmac no secret":     func(c *Config) { c.Auth.Mode = "hmac" },
		"bad port":           func(c *Config) { c.Server.Port = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
