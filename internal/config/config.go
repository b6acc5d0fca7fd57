// Package config loads service configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tenanthooks/config.yaml",
}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Auth     AuthConfig     `koanf:"auth"`
	Rate     RateConfig     `koanf:"rate"`
	Log      LogConfig      `koanf:"log"`
	Webhook  WebhookConfig  `koanf:"webhook"`
}

type ServerConfig struct {
	Port              int           `koanf:"port"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	AllowOrigins      []string      `koanf:"allow_origins"`
}

type DatabaseConfig struct {
	// URL selects the Postgres store; empty means in-memory.
	URL     string `koanf:"url"`
	Migrate bool   `koanf:"migrate"`
}

type RedisConfig struct {
	// URL enables the Redis activity broker; empty means in-process.
	URL string `koanf:"url"`
}

type AuthConfig struct {
	Mode        string `koanf:"mode"` // dev, hmac, jwks
	HMACSecret  string `koanf:"hmac_secret"`
	JWKSURL     string `koanf:"jwks_url"`
	TenantClaim string `koanf:"tenant_claim"`
	RoleClaim   string `koanf:"role_claim"`
}

type RateConfig struct {
	RPS   float64 `koanf:"rps"`
	Burst int     `koanf:"burst"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// WebhookConfig tunes outbound delivery.
type WebhookConfig struct {
	Timeout        time.Duration `koanf:"timeout"`
	MaxInFlight    int           `koanf:"max_in_flight"`
	QueueSize      int           `koanf:"queue_size"`
	Workers        int           `koanf:"workers"`
	BreakerEnabled bool          `koanf:"breaker_enabled"`

	// BreakerFailures is the consecutive failure count that opens a host's breaker.
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config { return defaultConfig() }

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			AllowOrigins:      []string{"*"},
		},
		Database: DatabaseConfig{Migrate: true},
		Auth: AuthConfig{
			Mode:        "dev",
			TenantClaim: "tenant",
			RoleClaim:   "role",
		},
		Rate: RateConfig{RPS: 0, Burst: 20},
		Log:  LogConfig{Level: "info", Format: "json"},
		Webhook: WebhookConfig{
			Timeout:         5 * time.Second,
			MaxInFlight:     16,
			QueueSize:       256,
			Workers:         4,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
	}
}

// envMappings keeps the historical flat variable names working.
var envMappings = map[string]string{
	"port":                     "server.port",
	"read_header_timeout":      "server.read_header_timeout",
	"shutdown_timeout":         "server.shutdown_timeout",
	"allow_origins":            "server.allow_origins",
	"database_url":             "database.url",
	"db_migrate":               "database.migrate",
	"redis_url":                "redis.url",
	"auth_mode":                "auth.mode",
	"auth_hmac_secret":         "auth.hmac_secret",
	"auth_jwks_url":            "auth.jwks_url",
	"auth_tenant_claim":        "auth.tenant_claim",
	"auth_role_claim":          "auth.role_claim",
	"rate_rps":                 "rate.rps",
	"rate_burst":               "rate.burst",
	"log_level":                "log.level",
	"log_format":               "log.format",
	"webhook_timeout":          "webhook.timeout",
	"webhook_max_in_flight":    "webhook.max_in_flight",
	"webhook_queue_size":       "webhook.queue_size",
	"webhook_workers":          "webhook.workers",
	"webhook_breaker_enabled":  "webhook.breaker_enabled",
	"webhook_breaker_failures": "webhook.breaker_failures",
	"webhook_breaker_cooldown": "webhook.breaker_cooldown",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// Load builds the configuration. Environment variables win over the file,
// which wins over defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	// Comma-separated lists arrive from the environment as a single string.
	if v, ok := k.Get("server.allow_origins").(string); ok {
		if err := k.Set("server.allow_origins", splitList(v)); err != nil {
			return nil, fmt.Errorf("parse allow_origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	switch c.Auth.Mode {
	case "dev":
	case "hmac":
		if c.Auth.HMACSecret == "" {
			errs = append(errs, errors.New("auth.hmac_secret is required in hmac mode"))
		}
	case "jwks":
		if c.Auth.JWKSURL == "" {
			errs = append(errs, errors.New("auth.jwks_url is required in jwks mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth.mode %q", c.Auth.Mode))
	}
	if c.Webhook.Timeout <= 0 {
		errs = append(errs, errors.New("webhook.timeout must be positive"))
	}
	if c.Webhook.MaxInFlight < 0 {
		errs = append(errs, errors.New("webhook.max_in_flight must be >= 0"))
	}
	if c.Webhook.QueueSize <= 0 {
		errs = append(errs, errors.New("webhook.queue_size must be positive"))
	}
	if c.Webhook.Workers <= 0 {
		errs = append(errs, errors.New("webhook.workers must be positive"))
	}
	if c.Rate.RPS > 0 && c.Rate.Burst <= 0 {
		errs = append(errs, errors.New("rate.burst must be positive when rate.rps is set"))
	}
	return errors.Join(errs...)
}
