package seeder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MaxBatchSize mirrors the gateway's per-request batch limit.
const MaxBatchSize = 500

// Config describes a seeding run.
type Config struct {
	// Count is the number of leads to generate.
	Count int `mapstructure:"count" yaml:"count"`
	// BatchSize groups leads into batch submissions. 1 sends leads one by one.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
	// Interval is the pause between submissions.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	// Exclude lists drivers to skip for every generated lead.
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
	// Event sets the tracking action name on each lead when non-empty.
	Event string `mapstructure:"event" yaml:"event"`
	// Fields overrides generated values with fixed ones.
	Fields map[string]string `mapstructure:"fields" yaml:"fields"`
}

// LoadConfig loads configuration with cascade: ./seeder.yaml > ~/.leadctl/seeder.yaml > defaults.
// An explicit configPath must exist.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("seeder")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SEEDER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".leadctl"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("count", 10)
	v.SetDefault("batch_size", 1)
	v.SetDefault("interval", 0)
}

// Validate checks the run parameters.
func (c *Config) Validate() error {
	if c.Count <= 0 {
		return fmt.Errorf("count must be positive, got %d", c.Count)
	}
	if c.BatchSize <= 0 || c.BatchSize > MaxBatchSize {
		return fmt.Errorf("batch_size must be between 1 and %d, got %d", MaxBatchSize, c.BatchSize)
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}
	return nil
}
