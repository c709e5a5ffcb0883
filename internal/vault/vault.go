// Package vault encrypts the payment credential at rest and manages the
// symmetric key across pluggable backends.
package vault

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/openclaw/paygate/internal/model"
)

// encryptedBlob is the persisted triple. Written atomically as one unit —
// a partial write must leave the prior blob intact.
type encryptedBlob struct {
	IV         []byte `json:"iv"`
	Tag        []byte `json:"tag"`
	Ciphertext []byte `json:"ciphertext"`
}

// Vault owns the encryption key and the encrypted credential blob.
type Vault struct {
	blobPath string
	primary  KeyBackend
	fallback KeyBackend // file backend, used when the primary is unreachable
	logger   *slog.Logger

	mu      sync.Mutex
	backend KeyBackend // committed by Initialize, reused for every call
	key     []byte
}

// New creates a Vault persisting its blob at blobPath. fallback may be nil
// when no degradation target is configured.
func New(blobPath string, primary, fallback KeyBackend, logger *slog.Logger) *Vault {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vault{
		blobPath: blobPath,
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Initialize ensures a key exists, generating a random 256-bit key if the
// backend holds none. Idempotent: a second call never regenerates or
// discards an existing key. The backend choice (primary or fallback) is
// made here exactly once; Store and Reveal reuse it so a later call can
// never silently switch to a different key.
func (v *Vault) Initialize() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key != nil {
		return nil
	}

	// obtainKey mints a key when the backend is merely empty, so any error
	// here means the primary is unusable, not just unpopulated.
	key, backend, err := v.obtainKey(v.primary)
	if err != nil && v.fallback != nil && v.fallback != v.primary {
		v.logger.Warn("key backend unreachable, falling back",
			"backend", v.primary.Name(),
			"fallback", v.fallback.Name(),
			"err", err,
		)
		key, backend, err = v.obtainKey(v.fallback)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyBackendUnavailable, err)
	}

	v.key = key
	v.backend = backend
	return nil
}

// obtainKey fetches an existing key or generates and persists a new one.
func (v *Vault) obtainKey(b KeyBackend) ([]byte, KeyBackend, error) {
	key, err := b.Get()
	if err == nil {
		if len(key) != keySize {
			return nil, nil, fmt.Errorf("backend %s: key has wrong size %d", b.Name(), len(key))
		}
		return key, b, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, nil, err
	}

	key, err = newKey()
	if err != nil {
		return nil, nil, err
	}
	if err := b.Put(key); err != nil {
		// Read-only backends cannot mint a key; callers must supply one.
		return nil, nil, fmt.Errorf("backend %s: %w", b.Name(), err)
	}
	return key, b, nil
}

// Store serializes, encrypts, and persists the credential.
func (v *Vault) Store(cred *model.Credential) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key == nil {
		return ErrNotInitialized
	}

	plaintext, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("serialize credential: %w", err)
	}

	iv, tag, ciphertext, err := seal(v.key, plaintext)
	if err != nil {
		return fmt.Errorf("encrypt credential: %w", err)
	}

	blob := encryptedBlob{IV: iv, Tag: tag, Ciphertext: ciphertext}
	return v.writeBlob(blob)
}

// Reveal decrypts and returns the stored credential. Fails closed: a tag
// that does not verify yields ErrDecryptionFailure, never altered plaintext.
func (v *Vault) Reveal() (*model.Credential, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key == nil {
		return nil, ErrNotInitialized
	}

	data, err := os.ReadFile(v.blobPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSecretStored
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}

	var blob encryptedBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("%w: malformed blob", ErrDecryptionFailure)
	}

	plaintext, err := open(v.key, blob.IV, blob.Tag, blob.Ciphertext)
	if err != nil {
		return nil, err
	}

	var cred model.Credential
	if err := json.Unmarshal(plaintext, &cred); err != nil {
		return nil, fmt.Errorf("%w: malformed plaintext", ErrDecryptionFailure)
	}
	return &cred, nil
}

// Exists reports whether an encrypted blob is stored. No decryption.
func (v *Vault) Exists() bool {
	_, err := os.Stat(v.blobPath)
	return err == nil
}

// Purge overwrites the persisted blob with random bytes before removing it,
// to defeat naive undelete. No-op if nothing is stored.
func (v *Vault) Purge() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	info, err := os.Stat(v.blobPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat blob: %w", err)
	}

	junk := make([]byte, info.Size())
	if _, err := rand.Read(junk); err != nil {
		return fmt.Errorf("generate overwrite: %w", err)
	}
	if err := os.WriteFile(v.blobPath, junk, 0o600); err != nil {
		return fmt.Errorf("overwrite blob: %w", err)
	}
	if err := os.Remove(v.blobPath); err != nil {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// writeBlob persists the triple atomically: write to a temp file, then
// rename over the old blob so a crash mid-write leaves the prior blob.
func (v *Vault) writeBlob(blob encryptedBlob) error {
	data, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("marshal blob: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(v.blobPath), 0o700); err != nil {
		return fmt.Errorf("create vault directory: %w", err)
	}

	tmp := v.blobPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, v.blobPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit blob: %w", err)
	}
	return nil
}
