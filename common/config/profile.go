// Package config holds the leadctl profile configuration: named sets of
// gateway URL and application credentials, persisted as YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrProfileNotFound is returned when a named profile does not exist.
var ErrProfileNotFound = errors.New("profile not found")

// CLIConfig holds leadctl configuration.
type CLIConfig struct {
	CurrentProfile string                 `yaml:"current_profile" mapstructure:"current_profile"`
	Profiles       map[string]*CLIProfile `yaml:"profiles" mapstructure:"profiles"`
	Defaults       *CLIDefaults           `yaml:"defaults" mapstructure:"defaults"`
	path           string
}

// CLIProfile holds the endpoint and credentials used to sign gateway requests.
type CLIProfile struct {
	GatewayURL   string `yaml:"gateway_url" mapstructure:"gateway_url"`
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
}

// CLIDefaults apply when a profile leaves a field empty.
type CLIDefaults struct {
	GatewayURL string `yaml:"gateway_url" mapstructure:"gateway_url"`
	NATSURL    string `yaml:"nats_url" mapstructure:"nats_url"`
}

// DefaultCLI returns a CLIConfig with default values.
func DefaultCLI() *CLIConfig {
	return &CLIConfig{
		CurrentProfile: "default",
		Profiles:       make(map[string]*CLIProfile),
		Defaults: &CLIDefaults{
			GatewayURL: "http://localhost:8080",
			NATSURL:    "nats://localhost:4222",
		},
	}
}

// Path returns the file the config is saved to.
func (c *CLIConfig) Path() string {
	return c.path
}

// Save writes the config to disk with owner-only permissions.
func (c *CLIConfig) Save() error {
	if c.path == "" {
		dir, err := defaultDir()
		if err != nil {
			return err
		}
		c.path = filepath.Join(dir, "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(c.path, data, 0o600)
}

// SetProfile stores p under name, makes it current and saves.
func (c *CLIConfig) SetProfile(name string, p *CLIProfile) error {
	if c.Profiles == nil {
		c.Profiles = make(map[string]*CLIProfile)
	}
	c.Profiles[name] = p
	c.CurrentProfile = name
	return c.Save()
}

// GetProfile retrieves a profile by name (or the current profile if name is empty).
func (c *CLIConfig) GetProfile(name string) (*CLIProfile, error) {
	if name == "" {
		name = c.CurrentProfile
	}

	profile, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	return profile, nil
}

// RemoveProfile deletes a profile and saves.
func (c *CLIConfig) RemoveProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}

	delete(c.Profiles, name)
	if c.CurrentProfile == name {
		c.CurrentProfile = ""
	}
	return c.Save()
}

// GatewayURL returns the gateway URL from the profile, falling back to defaults.
func (c *CLIConfig) GatewayURL(profile string) string {
	if p, err := c.GetProfile(profile); err == nil && p.GatewayURL != "" {
		return p.GatewayURL
	}
	if c.Defaults != nil {
		return c.Defaults.GatewayURL
	}
	return ""
}

// NATSURL returns the configured NATS URL for outcome watching.
func (c *CLIConfig) NATSURL() string {
	if c.Defaults != nil {
		return c.Defaults.NATSURL
	}
	return ""
}
