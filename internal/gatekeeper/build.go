package gatekeeper

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/openclaw/paygate/internal/channel"
	"github.com/openclaw/paygate/internal/config"
	"github.com/openclaw/paygate/internal/ledger"
	"github.com/openclaw/paygate/internal/policy"
	"github.com/openclaw/paygate/internal/vault"
)

const (
	keyringService = "paygate"
	keyringUser    = "vault-key"
)

// BuildVault assembles the vault from configuration. The keyring backend
// gets the file backend as its degradation target; file and env stand
// alone.
func BuildVault(cfg *config.Config, logger *slog.Logger) (*vault.Vault, error) {
	var primary, fallback vault.KeyBackend
	switch cfg.Vault.Backend {
	case "", "keyring":
		primary = &vault.KeyringBackend{Service: keyringService, User: keyringUser}
		fallback = &vault.FileBackend{Path: config.KeyPath()}
	case "file":
		primary = &vault.FileBackend{Path: config.KeyPath()}
	case "env":
		keyEnv := cfg.Vault.KeyEnv
		if keyEnv == "" {
			keyEnv = "PAYGATE_VAULT_KEY"
		}
		primary = &vault.EnvBackend{Var: keyEnv}
	default:
		return nil, fmt.Errorf("unknown vault backend %q", cfg.Vault.Backend)
	}
	return vault.New(config.BlobPath(), primary, fallback, logger), nil
}

// FromConfig wires a Gatekeeper from the on-disk configuration and policy
// documents. The vault is not initialized here; setup and serve paths call
// Vault().Initialize() when they need key material.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Gatekeeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.EnsureDir(); err != nil {
		return nil, err
	}

	v, err := BuildVault(cfg, logger)
	if err != nil {
		return nil, err
	}

	pol, hash, err := policy.LoadWithHash(config.PolicyPath())
	if err != nil {
		return nil, err
	}

	// An unknown channel type fails closed: requests that need approval
	// are denied rather than approved on a typo'd config.
	var ch channel.Channel
	if cfg.Channel.Type != "" && cfg.Channel.Type != "none" {
		ch, err = channel.New(cfg.Channel, logger)
		if err != nil {
			if !errors.Is(err, channel.ErrUnknown) {
				return nil, err
			}
			logger.Warn("unknown approval channel, approvals will be denied", "type", cfg.Channel.Type)
			ch = nil
		}
	}

	return New(Params{
		Vault:      v,
		Ledger:     ledger.New(config.LedgerPath(), cfg.Ledger.Disabled),
		Policy:     pol,
		PolicyHash: hash,
		Channel:    ch,
		Timeout:    cfg.ApprovalTimeout(),
		Logger:     logger,
	}), nil
}
