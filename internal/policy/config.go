package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the configurable spending policy. blockAbove is expected to
// sit at or above autoApproveUnder but this is not enforced; the fixed
// evaluation order in Evaluate governs misconfigured combinations.
type Config struct {
	AutoApproveUnder     float64  `yaml:"auto_approve_under"     json:"auto_approve_under"`
	RequireApprovalAbove float64  `yaml:"require_approval_above" json:"require_approval_above"`
	BlockAbove           float64  `yaml:"block_above"            json:"block_above"`
	DailyLimit           float64  `yaml:"daily_limit"            json:"daily_limit"`
	MonthlyLimit         float64  `yaml:"monthly_limit"          json:"monthly_limit,omitempty"`
	BlockedKeywords      []string `yaml:"blocked_keywords"       json:"blocked_keywords,omitempty"`
	AllowedMerchants     []string `yaml:"allowed_merchants"      json:"allowed_merchants,omitempty"`
	BlockedMerchants     []string `yaml:"blocked_merchants"      json:"blocked_merchants,omitempty"`
	Currency             string   `yaml:"currency"               json:"currency"`
}

// DefaultConfig returns the built-in policy.
func DefaultConfig() *Config {
	return &Config{
		AutoApproveUnder:     50,
		RequireApprovalAbove: 50,
		BlockAbove:           500,
		DailyLimit:           1000,
		MonthlyLimit:         0,
		BlockedKeywords:      []string{"gambling", "crypto", "gift card"},
		Currency:             "USD",
	}
}

// Clone returns a deep copy; mutating it never touches the active policy.
func (c *Config) Clone() Config {
	out := *c
	out.BlockedKeywords = append([]string(nil), c.BlockedKeywords...)
	out.AllowedMerchants = append([]string(nil), c.AllowedMerchants...)
	out.BlockedMerchants = append([]string(nil), c.BlockedMerchants...)
	return out
}

// DefaultConfigYAML is the policy document written by `paygate init`.
func DefaultConfigYAML() string {
	return `# paygate spending policy
auto_approve_under: 50
require_approval_above: 50
block_above: 500
daily_limit: 1000
monthly_limit: 0
blocked_keywords:
  - gambling
  - crypto
  - gift card
# allowed_merchants: []   # non-empty list denies everything not on it
# blocked_merchants: []
currency: USD
`
}

// Load reads policy configuration from a YAML file. A missing file returns
// defaults; invalid YAML is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read policy config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse policy config: %w", err)
	}
	return cfg, nil
}

// LoadWithHash loads policy configuration and returns the SHA-256 of the
// raw YAML bytes on disk. When no file exists the hash is of empty input.
func LoadWithHash(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			h := sha256.Sum256(nil)
			return DefaultConfig(), "sha256:" + hex.EncodeToString(h[:]), nil
		}
		return nil, "", fmt.Errorf("read policy config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("parse policy config: %w", err)
	}

	h := sha256.Sum256(data)
	return cfg, "sha256:" + hex.EncodeToString(h[:]), nil
}
