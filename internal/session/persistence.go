// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/keynest/keynest-tui/internal/api"
	"github.com/keynest/keynest-tui/internal/util"
	"github.com/keynest/keynest-tui/internal/vault"
)

// =============================================================================
// PERSISTENCE
// =============================================================================

// Persistence stores session state across process restarts. Load methods
// return ok=false for an absent snapshot and an error only for a present
// but unreadable one.
type Persistence interface {
	SaveCredentials(access, refresh string) error
	LoadCredentials() (access, refresh string, ok bool, err error)
	DeleteCredentials() error

	SaveIdentity(user *api.User) error
	LoadIdentity() (user *api.User, ok bool, err error)
	DeleteIdentity() error
}

const (
	credentialsFile = "credentials.json.enc"
	identityFile    = "identity.json"

	// snapshotVersion is bumped when the snapshot schema changes; readers
	// reject versions they don't know.
	snapshotVersion = 1
)

// credentialSnapshot is the sealed on-disk credential format.
type credentialSnapshot struct {
	Version int       `json:"version"`
	Access  string    `json:"access"`
	Refresh string    `json:"refresh"`
	SavedAt time.Time `json:"saved_at"`
}

// FilePersistence keeps session snapshots under a directory (normally
// ~/.keynest). The credential pair is sealed with the vault before it
// touches disk; the identity is non-secret and stored in the clear.
type FilePersistence struct {
	dir   string
	vault *vault.Vault
}

// NewFilePersistence creates a file-backed persistence rooted at dir.
func NewFilePersistence(dir string, v *vault.Vault) *FilePersistence {
	return &FilePersistence{dir: dir, vault: v}
}

// SaveCredentials seals the pair and writes it atomically.
func (p *FilePersistence) SaveCredentials(access, refresh string) error {
	snap := credentialSnapshot{
		Version: snapshotVersion,
		Access:  access,
		Refresh: refresh,
		SavedAt: time.Now().UTC(),
	}
	plain, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode credential snapshot: %w", err)
	}
	defer vault.ZeroBytes(plain)

	sealed, err := p.vault.Seal(plain)
	if err != nil {
		return fmt.Errorf("failed to seal credential snapshot: %w", err)
	}

	// SECURITY: 0600; the sealed blob still names the account it belongs to
	path := filepath.Join(p.dir, credentialsFile)
	if err := util.AtomicWriteFileWithDir(path, []byte(sealed), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write credential snapshot: %w", err)
	}
	return nil
}

// LoadCredentials reads and unseals the persisted pair.
func (p *FilePersistence) LoadCredentials() (string, string, bool, error) {
	raw, err := os.ReadFile(filepath.Join(p.dir, credentialsFile))
	if os.IsNotExist(err) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("failed to read credential snapshot: %w", err)
	}

	plain, err := p.vault.Unseal(string(raw))
	if err != nil {
		return "", "", false, fmt.Errorf("failed to unseal credential snapshot: %w", err)
	}
	defer vault.ZeroBytes(plain)

	var snap credentialSnapshot
	if err := json.Unmarshal(plain, &snap); err != nil {
		return "", "", false, fmt.Errorf("failed to decode credential snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return "", "", false, fmt.Errorf("unknown credential snapshot version %d", snap.Version)
	}
	if snap.Access == "" || snap.Refresh == "" {
		return "", "", false, fmt.Errorf("credential snapshot is missing half the pair")
	}
	return snap.Access, snap.Refresh, true, nil
}

// DeleteCredentials removes the snapshot and destroys the key that sealed
// it, so the next sign-in seals under a fresh key. Absence is not an error.
func (p *FilePersistence) DeleteCredentials() error {
	err := os.Remove(filepath.Join(p.dir, credentialsFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credential snapshot: %w", err)
	}
	if err := p.vault.Destroy(); err != nil {
		return fmt.Errorf("failed to destroy vault key: %w", err)
	}
	return nil
}

// SaveIdentity writes the user's profile for display before the first
// profile fetch completes.
func (p *FilePersistence) SaveIdentity(user *api.User) error {
	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	path := filepath.Join(p.dir, identityFile)
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write identity: %w", err)
	}
	return nil
}

// LoadIdentity reads the persisted user profile.
func (p *FilePersistence) LoadIdentity() (*api.User, bool, error) {
	raw, err := os.ReadFile(filepath.Join(p.dir, identityFile))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read identity: %w", err)
	}

	var user api.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, false, fmt.Errorf("failed to decode identity: %w", err)
	}
	return &user, true, nil
}

// DeleteIdentity removes the persisted profile. Absence is not an error.
func (p *FilePersistence) DeleteIdentity() error {
	err := os.Remove(filepath.Join(p.dir, identityFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove identity: %w", err)
	}
	return nil
}
