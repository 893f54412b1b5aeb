// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keynest/keynest-tui/internal/api"
	"github.com/keynest/keynest-tui/internal/vault"
)

func newTestPersistence(t *testing.T, dir string) *FilePersistence {
	t.Helper()
	v := vault.New(vault.NewKeyStore(filepath.Join(dir, "keynest.key")))
	return NewFilePersistence(dir, v)
}

func TestCredentialSnapshotRoundTrip(t *testing.T) {
	p := newTestPersistence(t, t.TempDir())

	require.NoError(t, p.SaveCredentials("access-token", "refresh-token"))

	access, refresh, ok, err := p.LoadCredentials()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "access-token", access)
	assert.Equal(t, "refresh-token", refresh)
}

func TestCredentialSnapshotIsSealedOnDisk(t *testing.T) {
	dir := t.TempDir()
	p := newTestPersistence(t, dir)
	require.NoError(t, p.SaveCredentials("super-secret-access", "super-secret-refresh"))

	raw, err := os.ReadFile(filepath.Join(dir, "credentials.json.enc"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "super-secret-access")
	assert.NotContains(t, string(raw), "super-secret-refresh")
}

func TestLoadCredentialsAbsentSnapshot(t *testing.T) {
	p := newTestPersistence(t, t.TempDir())

	_, _, ok, err := p.LoadCredentials()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadCredentialsCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	p := newTestPersistence(t, dir)

	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "credentials.json.enc"), []byte("garbage"), 0600))

	_, _, _, err := p.LoadCredentials()
	assert.Error(t, err)
}

func TestHydrateDiscardsCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	p := newTestPersistence(t, dir)
	path := filepath.Join(dir, "credentials.json.enc")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))

	s := NewStore(p)
	s.Hydrate()

	assert.False(t, s.IsAuthenticated())
	// The unreadable file is removed so the next save starts clean.
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestIdentityRoundTrip(t *testing.T) {
	p := newTestPersistence(t, t.TempDir())

	require.NoError(t, p.SaveIdentity(&api.User{
		ID:        42,
		Username:  "maya",
		Email:     "maya@example.com",
		FirstName: "Maya",
	}))

	user, ok, err := p.LoadIdentity()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "maya", user.Username)
}

func TestDeleteIsIdempotent(t *testing.T) {
	p := newTestPersistence(t, t.TempDir())

	require.NoError(t, p.DeleteCredentials())
	require.NoError(t, p.DeleteIdentity())
}

func TestDeleteCredentialsDestroysSealingKey(t *testing.T) {
	dir := t.TempDir()
	p := newTestPersistence(t, dir)
	require.NoError(t, p.SaveCredentials("a", "r"))

	keyPath := filepath.Join(dir, "keynest.key")
	_, err := os.Stat(keyPath)
	require.NoError(t, err)

	require.NoError(t, p.DeleteCredentials())

	// Both the sealed snapshot and the key that sealed it are gone.
	_, err = os.Stat(keyPath)
	assert.True(t, os.IsNotExist(err))

	// The next sign-in seals under a freshly generated key.
	require.NoError(t, p.SaveCredentials("a2", "r2"))
	access, refresh, ok, err := p.LoadCredentials()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a2", access)
	assert.Equal(t, "r2", refresh)
}

