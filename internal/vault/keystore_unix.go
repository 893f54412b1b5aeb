// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows
// +build !windows

package vault

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/keynest/keynest-tui/internal/util"
)

// UnixKeyStore provides file-based key storage on Unix systems.
// The key file is protected by filesystem permissions only; the vault's
// PBKDF2 stretching limits the value of a copied key file on its own.
type UnixKeyStore struct {
	path string
}

// NewKeyStore returns a Unix file-based key store rooted at path.
func NewKeyStore(path string) KeyStore {
	return &UnixKeyStore{path: path}
}

// Store saves the key with restricted permissions (0600 file, 0700 dir).
func (u *UnixKeyStore) Store(key []byte) error {
	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFileWithDir(u.path, key, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}

	// Verify the file did not end up group/world readable.
	info, err := os.Stat(u.path)
	if err != nil {
		return fmt.Errorf("failed to stat key file: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		_ = os.Remove(u.path)
		return fmt.Errorf("key file was created with insecure permissions (%o); "+
			"the file has been deleted, fix the directory mode and retry", mode)
	}
	return nil
}

// Retrieve reads the key from the file.
func (u *UnixKeyStore) Retrieve() ([]byte, error) {
	// Refuse to use a key that lives in a directory other users can read.
	dir := filepath.Dir(u.path)
	dirInfo, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat key directory: %w", err)
	}
	if mode := dirInfo.Mode().Perm(); mode&0077 != 0 {
		return nil, fmt.Errorf("key directory has insecure permissions (%o); "+
			"fix with: chmod 700 %s", mode, dir)
	}

	key, err := os.ReadFile(u.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return key, nil
}

// Delete removes the key file.
func (u *UnixKeyStore) Delete() error {
	if err := os.Remove(u.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete key file: %w", err)
	}
	return nil
}

// Exists checks if the key file exists.
func (u *UnixKeyStore) Exists() bool {
	_, err := os.Stat(u.path)
	return err == nil
}
