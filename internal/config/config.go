// Package config loads the host-level configuration for the deploy tool.
// Everything has a default; a missing config file is not an error.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/isotopp/deploy/pkg/fileutil"
)

const (
	// DefaultDomain is the domain suffix every hostname must end with.
	DefaultDomain = "snackbag.net"

	// DefaultStoreDir is where descriptor files live, one per project.
	DefaultStoreDir = "/etc/projects"

	// DefaultHistoryDB is the SQLite database recording code deploys.
	DefaultHistoryDB = "/var/lib/deploy/history.db"

	// ConfigFileName is the name of the host config file.
	ConfigFileName = "deploy.yaml"

	// MinWebhookSecretLength guards against placeholder webhook secrets.
	MinWebhookSecretLength = 32
)

// DefaultAllowedUsers is the fixed allow-list used when the config file
// does not override it.
var DefaultAllowedUsers = []string{"kris", "joram"}

// Config is the host-level configuration.
type Config struct {
	Domain       string        `yaml:"domain"`
	StoreDir     string        `yaml:"store_dir"`
	HistoryDB    string        `yaml:"history_db"`
	AllowedUsers []string      `yaml:"allowed_users"`
	Webhook      WebhookConfig `yaml:"webhook"`
}

// WebhookConfig configures the optional webhook server.
type WebhookConfig struct {
	Secret       string `yaml:"secret"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ExposeOutput bool   `yaml:"expose_output"`
}

// Default returns a config with every field set to its built-in default.
func Default() *Config {
	return &Config{
		Domain:       DefaultDomain,
		StoreDir:     DefaultStoreDir,
		HistoryDB:    DefaultHistoryDB,
		AllowedUsers: append([]string(nil), DefaultAllowedUsers...),
		Webhook: WebhookConfig{
			Host: "127.0.0.1",
			Port: 5000,
		},
	}
}

// Load reads and validates the configuration from a YAML file.
// Fields left unset in the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if cfg.Domain == "" {
		return nil, fmt.Errorf("invalid config %s: domain cannot be empty", path)
	}
	if cfg.StoreDir == "" {
		return nil, fmt.Errorf("invalid config %s: store_dir cannot be empty", path)
	}
	if len(cfg.AllowedUsers) == 0 {
		return nil, fmt.Errorf("invalid config %s: allowed_users cannot be empty", path)
	}
	if cfg.Webhook.Port < 0 || cfg.Webhook.Port > 65535 {
		return nil, fmt.Errorf("invalid config %s: webhook port %d out of range", path, cfg.Webhook.Port)
	}

	return cfg, nil
}

// LoadDefault searches the default locations for deploy.yaml and loads it.
// If no config file exists anywhere, the built-in defaults are returned.
func LoadDefault() (*Config, error) {
	path := fileutil.SearchPathsOptional(fileutil.DefaultConfigPaths(ConfigFileName))
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// ValidateWebhook checks the parts of the config only the serve command needs.
func (c *Config) ValidateWebhook() error {
	if c.Webhook.Secret == "" {
		return fmt.Errorf("webhook secret is not configured")
	}
	if len(c.Webhook.Secret) < MinWebhookSecretLength {
		return fmt.Errorf("webhook secret too short (minimum %d characters)", MinWebhookSecretLength)
	}
	return nil
}
