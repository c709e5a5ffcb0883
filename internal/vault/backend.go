package vault

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyBackend stores and retrieves the vault's symmetric key.
// Get returns ErrKeyNotFound when the backend is reachable but empty;
// any other error means the backend cannot be used.
type KeyBackend interface {
	Name() string
	Get() ([]byte, error)
	Put(key []byte) error
}

// FileBackend keeps hex-encoded key material in an owner-only file.
type FileBackend struct {
	Path string
}

func (b *FileBackend) Name() string { return "file" }

// Get reads and decodes the key file.
func (b *FileBackend) Get() ([]byte, error) {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("read key file: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode key file: %w", err)
	}
	return key, nil
}

// Put writes the key hex-encoded with owner-only permissions.
func (b *FileBackend) Put(key []byte) error {
	if err := os.MkdirAll(filepath.Dir(b.Path), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(b.Path, []byte(hex.EncodeToString(key)+"\n"), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// EnvBackend sources the key from the process environment. Read-only —
// the key is supplied externally and never persisted by paygate.
type EnvBackend struct {
	Var string
}

func (b *EnvBackend) Name() string { return "env" }

func (b *EnvBackend) Get() ([]byte, error) {
	v := os.Getenv(b.Var)
	if v == "" {
		return nil, ErrKeyNotFound
	}
	key, err := hex.DecodeString(strings.TrimSpace(v))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", b.Var, err)
	}
	return key, nil
}

func (b *EnvBackend) Put(key []byte) error {
	return ErrReadOnlyBackend
}

// KeyringBackend keeps the key in the platform secret manager.
type KeyringBackend struct {
	Service string
	User    string
}

func (b *KeyringBackend) Name() string { return "keyring" }

func (b *KeyringBackend) Get() ([]byte, error) {
	v, err := keyring.Get(b.Service, b.User)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("keyring get: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(v))
	if err != nil {
		return nil, fmt.Errorf("decode keyring entry: %w", err)
	}
	return key, nil
}

func (b *KeyringBackend) Put(key []byte) error {
	if err := keyring.Set(b.Service, b.User, hex.EncodeToString(key)); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}
