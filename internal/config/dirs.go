package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir returns the user-scoped state directory. PAYGATE_HOME overrides the
// default ~/.paygate (useful for tests and containers).
func Dir() string {
	if dir := os.Getenv("PAYGATE_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "paygate")
	}
	return filepath.Join(home, ".paygate")
}

// EnsureDir creates the state directory, owner-only. Idempotent.
func EnsureDir() error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	return nil
}

// Path returns the top-level configuration document.
func Path() string { return filepath.Join(Dir(), "config.yaml") }

// PolicyPath returns the spending policy document.
func PolicyPath() string { return filepath.Join(Dir(), "policy.yaml") }

// BlobPath returns the encrypted credential blob.
func BlobPath() string { return filepath.Join(Dir(), "credential.enc") }

// KeyPath returns the file-backend key location.
func KeyPath() string { return filepath.Join(Dir(), "vault.key") }

// LedgerPath returns the transaction log document.
func LedgerPath() string { return filepath.Join(Dir(), "ledger.json") }
