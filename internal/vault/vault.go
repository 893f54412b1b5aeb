// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package vault provides at-rest encryption for the persisted credential
// bundle.
//
// Credentials are bearer values: anyone who reads the snapshot file owns
// the session. The bundle is therefore sealed with AES-256-GCM under a
// randomly generated key held in platform key storage (DPAPI on Windows,
// a 0600 key file elsewhere), with PBKDF2-SHA-256 used to stretch the
// stored key material.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

// SealedPrefix marks a value as sealed (format: ENC:base64(salt|nonce|ciphertext)).
const SealedPrefix = "ENC:"

// KeySize is the size of the AES-256 key (32 bytes).
const KeySize = 32

// NonceSize is the size of the AES-GCM nonce (12 bytes).
const NonceSize = 12

// SaltSize is the size of the per-seal key derivation salt (16 bytes).
const SaltSize = 16

// pbkdf2Iterations stretches the stored key material before use.
// OWASP 2023 recommends 600,000+ for PBKDF2-SHA-256.
const pbkdf2Iterations = 600000

var (
	// ErrInvalidCiphertext indicates the sealed format is invalid.
	ErrInvalidCiphertext = errors.New("invalid sealed value format")

	// ErrUnsealFailed indicates decryption failed (wrong key or tampered data).
	ErrUnsealFailed = errors.New("unseal failed: authentication tag mismatch")
)

// ZeroBytes securely zeros sensitive byte slices.
// SECURITY: Zero key material to prevent memory disclosure via crash dumps.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Vault seals and unseals small secrets with a key from a KeyStore.
type Vault struct {
	mu    sync.Mutex
	store KeyStore
	key   []byte
}

// New creates a vault backed by the given key store. A key is generated
// and stored on first use if none exists.
func New(store KeyStore) *Vault {
	return &Vault{store: store}
}

// loadKey fetches (or creates) the root key. Caller holds v.mu.
func (v *Vault) loadKey() ([]byte, error) {
	if v.key != nil {
		return v.key, nil
	}

	if v.store.Exists() {
		key, err := v.store.Retrieve()
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve vault key: %w", err)
		}
		if len(key) != KeySize {
			return nil, fmt.Errorf("vault key has wrong size: %d", len(key))
		}
		v.key = key
		return v.key, nil
	}

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate vault key: %w", err)
	}
	if err := v.store.Store(key); err != nil {
		ZeroBytes(key)
		return nil, fmt.Errorf("failed to store vault key: %w", err)
	}
	v.key = key
	return v.key, nil
}

// Seal encrypts plaintext and returns a self-describing string value.
func (v *Vault) Seal(plaintext []byte) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	rootKey, err := v.loadKey()
	if err != nil {
		return "", err
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	derived := pbkdf2.Key(rootKey, salt, pbkdf2Iterations, KeySize, sha256.New)
	defer ZeroBytes(derived)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	buf := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	buf = append(buf, salt...)
	buf = append(buf, nonce...)
	buf = append(buf, sealed...)

	return SealedPrefix + base64.StdEncoding.EncodeToString(buf), nil
}

// Unseal decrypts a value produced by Seal.
func (v *Vault) Unseal(value string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !strings.HasPrefix(value, SealedPrefix) {
		return nil, ErrInvalidCiphertext
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	if len(raw) < SaltSize+NonceSize+1 {
		return nil, ErrInvalidCiphertext
	}

	rootKey, err := v.loadKey()
	if err != nil {
		return nil, err
	}

	salt := raw[:SaltSize]
	nonce := raw[SaltSize : SaltSize+NonceSize]
	ciphertext := raw[SaltSize+NonceSize:]

	derived := pbkdf2.Key(rootKey, salt, pbkdf2Iterations, KeySize, sha256.New)
	defer ZeroBytes(derived)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrUnsealFailed
	}
	return plaintext, nil
}

// Destroy removes the root key from storage. Called on full teardown so a
// later sign-in starts from a fresh key.
func (v *Vault) Destroy() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key != nil {
		ZeroBytes(v.key)
		v.key = nil
	}
	if !v.store.Exists() {
		return nil
	}
	return v.store.Delete()
}
