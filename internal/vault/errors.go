package vault

import "errors"

var (
	// ErrNotInitialized means no encryption key is available yet.
	ErrNotInitialized = errors.New("vault not initialized")

	// ErrNoSecretStored means no encrypted credential blob exists.
	ErrNoSecretStored = errors.New("no credential stored")

	// ErrDecryptionFailure means the authentication tag did not verify:
	// the blob was tampered with or a different key was used. The vault
	// fails closed — no partial plaintext is ever returned.
	ErrDecryptionFailure = errors.New("decryption failed")

	// ErrKeyBackendUnavailable means no key backend, including the file
	// fallback, could be reached.
	ErrKeyBackendUnavailable = errors.New("key backend unavailable")

	// ErrKeyNotFound means the backend is reachable but holds no key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrReadOnlyBackend means the backend cannot persist key material.
	ErrReadOnlyBackend = errors.New("key backend is read-only")
)
