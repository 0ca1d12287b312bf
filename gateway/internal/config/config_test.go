package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadgate/leadgate/gateway/internal/relay"
)

func TestLoad_WithDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(1048576), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "memory", cfg.Database.Type)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, 5*time.Minute, cfg.Redis.CacheTTL)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.Dispatch.SkipDelivered)
	assert.True(t, cfg.Dispatch.SkipExcluded)
	assert.Equal(t, relay.BackendNone, cfg.Relay.Backend)
	assert.Equal(t, 2*time.Second, cfg.Relay.PublishTimeout)
	assert.Equal(t, 64, cfg.Feed.Buffer)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
  admin_token: from-file
drivers:
  crm:
    enabled: true
    webhook_url: https://crm.example.com/rest/1/abc
    timeout: 3s
relay:
  backend: kafka
  kafka_brokers: ["k1:9092", "k2:9092"]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("LEADGATE_SERVER_ADMIN_TOKEN", "from-env")
	t.Setenv("LEADGATE_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Server.AdminToken)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Drivers.CRM.Enabled)
	assert.Equal(t, 3*time.Second, cfg.Drivers.CRM.Timeout)
	assert.Equal(t, relay.BackendKafka, cfg.Relay.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Relay.KafkaBrokers)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Database: DatabaseConfig{Type: "memory"}}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad database type", func(c *Config) { c.Database.Type = "sqlite" }},
		{"crm without url", func(c *Config) { c.Drivers.CRM.Enabled = true }},
		{"tracking without urls", func(c *Config) { c.Drivers.Tracking.Enabled = true }},
		{"rate limit without redis", func(c *Config) { c.RateLimit.Enabled = true }},
		{"rate limit zero window", func(c *Config) {
			c.RateLimit.Enabled = true
			c.Redis.URL = "redis://localhost:6379"
			c.RateLimit.Requests = 10
		}},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestPostgresURL(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, Database: "leadgate", User: "lead", Password: "p@ss", SSLMode: "require"}
	assert.Equal(t, "postgres://lead:p%40ss@db:5432/leadgate?sslmode=require", p.URL())
}
