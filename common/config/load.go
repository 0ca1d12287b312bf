package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

func defaultDir() (string, error) {
	if dir := os.Getenv("LEADCTL_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".leadctl"), nil
}

// LoadCLI loads the config from path, or from $LEADCTL_CONFIG_DIR/config.yaml
// ($HOME/.leadctl by default) when path is empty. A missing file yields defaults.
// LEADCTL_GATEWAY_URL and LEADCTL_NATS_URL override the defaults section.
func LoadCLI(path string) (*CLIConfig, error) {
	if path == "" {
		dir, err := defaultDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "config.yaml")
	}

	v := viper.New()
	def := DefaultCLI()
	v.SetDefault("current_profile", def.CurrentProfile)
	v.SetDefault("defaults.gateway_url", def.Defaults.GatewayURL)
	v.SetDefault("defaults.nats_url", def.Defaults.NATSURL)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("LEADCTL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("defaults.gateway_url", "LEADCTL_GATEWAY_URL")
	_ = v.BindEnv("defaults.nats_url", "LEADCTL_NATS_URL")

	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := DefaultCLI()
	cfg.path = path
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]*CLIProfile)
	}
	return cfg, nil
}
