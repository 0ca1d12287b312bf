package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/leadgate/leadgate/common/database"
	"github.com/leadgate/leadgate/gateway/internal/feed"
	"github.com/leadgate/leadgate/gateway/internal/relay"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Drivers   DriversConfig   `mapstructure:"drivers"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Relay     relay.Config    `mapstructure:"relay"`
	Feed      feed.Config     `mapstructure:"feed"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	// AdminToken guards /admin routes. Empty disables them.
	AdminToken  string `mapstructure:"admin_token"`
	AuditSecret string `mapstructure:"audit_secret"`
}

type DatabaseConfig struct {
	Type          string         `mapstructure:"type"`
	Postgres      PostgresConfig `mapstructure:"postgres"`
	MigrationsDir string         `mapstructure:"migrations_dir"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// URL renders the pgx connection string.
func (p PostgresConfig) URL() string {
	return database.PostgresURL(p.Host, p.Port, p.Database, p.User, p.Password, p.SSLMode)
}

type RedisConfig struct {
	// URL enables the application cache and the rate limiter. Empty disables both.
	URL      string        `mapstructure:"url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type DriversConfig struct {
	CRM      CRMConfig      `mapstructure:"crm"`
	Tracking TrackingConfig `mapstructure:"tracking"`
}

type CRMConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type TrackingConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	ServerURL string        `mapstructure:"server_url"`
	SaleURL   string        `mapstructure:"sale_url"`
	Login     string        `mapstructure:"login"`
	Password  string        `mapstructure:"password"`
	AccountID string        `mapstructure:"account_id"`
	VisitorID string        `mapstructure:"visitor_id"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// DispatchConfig selects the batch eligibility rules.
type DispatchConfig struct {
	// SkipDelivered skips batch leads whose request row is already terminal.
	SkipDelivered bool `mapstructure:"skip_delivered"`
	// SkipExcluded honours each lead's exclusion list.
	SkipExcluded bool `mapstructure:"skip_excluded"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from defaults, an optional YAML file and
// LEADGATE_* environment variables, in increasing precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 1048576)
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.audit_secret", "")
	v.SetDefault("database.type", "memory")
	v.SetDefault("database.migrations_dir", "gateway/migrations")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "leadgate")
	v.SetDefault("database.postgres.user", "leadgate")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.cache_ttl", "5m")
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests", 600)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("drivers.crm.enabled", false)
	v.SetDefault("drivers.crm.webhook_url", "")
	v.SetDefault("drivers.crm.timeout", "10s")
	v.SetDefault("drivers.tracking.enabled", false)
	v.SetDefault("drivers.tracking.server_url", "")
	v.SetDefault("drivers.tracking.sale_url", "")
	v.SetDefault("drivers.tracking.login", "")
	v.SetDefault("drivers.tracking.password", "")
	v.SetDefault("drivers.tracking.account_id", "")
	v.SetDefault("drivers.tracking.visitor_id", "")
	v.SetDefault("drivers.tracking.timeout", "10s")
	v.SetDefault("dispatch.skip_delivered", true)
	v.SetDefault("dispatch.skip_excluded", true)
	v.SetDefault("relay.backend", relay.BackendNone)
	v.SetDefault("relay.nats_url", "nats://localhost:4222")
	v.SetDefault("relay.username", "")
	v.SetDefault("relay.password", "")
	v.SetDefault("relay.token", "")
	v.SetDefault("relay.kafka_brokers", []string{})
	v.SetDefault("relay.kafka_topic", "leadgate.outcomes")
	v.SetDefault("relay.publish_timeout", "2s")
	v.SetDefault("feed.buffer", 64)
	v.SetDefault("feed.allowed_origins", []string{})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/leadgate")
	}

	// LEADGATE_DRIVERS_CRM_WEBHOOK_URL overrides drivers.crm.webhook_url.
	v.SetEnvPrefix("LEADGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "memory", "postgres":
	default:
		return fmt.Errorf("database.type must be memory or postgres, got %q", c.Database.Type)
	}
	if c.Drivers.CRM.Enabled && c.Drivers.CRM.WebhookURL == "" {
		return errors.New("drivers.crm.webhook_url is required when the crm driver is enabled")
	}
	if c.Drivers.Tracking.Enabled && (c.Drivers.Tracking.ServerURL == "" || c.Drivers.Tracking.SaleURL == "") {
		return errors.New("drivers.tracking.server_url and sale_url are required when the tracking driver is enabled")
	}
	if c.RateLimit.Enabled && c.Redis.URL == "" {
		return errors.New("ratelimit.enabled requires redis.url")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return errors.New("ratelimit.requests and ratelimit.window must be positive")
	}
	return nil
}
