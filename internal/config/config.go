// Package config loads the top-level paygate configuration and owns paths
// under the user-scoped state directory.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openclaw/paygate/internal/channel"
)

// VaultConfig selects the key backend.
type VaultConfig struct {
	Backend string `yaml:"backend"` // keyring | file | env
	KeyEnv  string `yaml:"key_env"` // env backend variable name
}

// ApprovalConfig bounds the human decision wait.
type ApprovalConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// LedgerConfig controls decision logging. Disabling it zeroes spend
// history and defeats daily/monthly limits.
type LedgerConfig struct {
	Disabled bool `yaml:"disabled"`
}

// Config is the top-level document at ~/.paygate/config.yaml.
type Config struct {
	Vault    VaultConfig    `yaml:"vault"`
	Channel  channel.Config `yaml:"channel"`
	Approval ApprovalConfig `yaml:"approval"`
	Ledger   LedgerConfig   `yaml:"ledger"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Vault:    VaultConfig{Backend: "keyring", KeyEnv: "PAYGATE_VAULT_KEY"},
		Channel:  channel.Config{Type: "terminal"},
		Approval: ApprovalConfig{TimeoutSeconds: 120},
	}
}

// DefaultYAML is the document written by `paygate init`.
func DefaultYAML() string {
	return `# paygate configuration
vault:
  backend: keyring    # keyring | file | env
  key_env: PAYGATE_VAULT_KEY

channel:
  type: terminal      # telegram | webhook | terminal
  telegram:
    token: ""
    chat_id: 0
  webhook:
    url: ""

approval:
  timeout_seconds: 120

ledger:
  disabled: false
`
}

// Load reads the configuration. A missing file returns defaults; invalid
// YAML is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApprovalTimeout returns the configured wait as a duration.
func (c *Config) ApprovalTimeout() time.Duration {
	if c.Approval.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.Approval.TimeoutSeconds) * time.Second
}
