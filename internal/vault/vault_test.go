// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	return New(NewKeyStore(filepath.Join(t.TempDir(), "keynest.key")))
}

func TestSealUnsealRoundTrip(t *testing.T) {
	v := newTestVault(t)

	sealed, err := v.Seal([]byte("refresh-credential-value"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, SealedPrefix))
	assert.NotContains(t, sealed, "refresh-credential-value")

	plain, err := v.Unseal(sealed)
	require.NoError(t, err)
	assert.Equal(t, "refresh-credential-value", string(plain))
}

func TestSealProducesUniqueValues(t *testing.T) {
	v := newTestVault(t)

	a, err := v.Seal([]byte("same input"))
	require.NoError(t, err)
	b, err := v.Seal([]byte("same input"))
	require.NoError(t, err)

	// Fresh salt and nonce per seal.
	assert.NotEqual(t, a, b)
}

func TestUnsealRejectsInvalidFormat(t *testing.T) {
	v := newTestVault(t)

	_, err := v.Unseal("not sealed at all")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = v.Unseal(SealedPrefix + "!!!not-base64!!!")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = v.Unseal(SealedPrefix + base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestUnsealRejectsTamperedCiphertext(t *testing.T) {
	v := newTestVault(t)

	sealed, err := v.Seal([]byte("payload"))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, SealedPrefix))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF

	_, err = v.Unseal(SealedPrefix + base64.StdEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrUnsealFailed)
}

func TestKeyPersistsAcrossVaults(t *testing.T) {
	// t.TempDir honors the process umask, so the directory may come out
	// group/world-readable; Retrieve requires 0700.
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0700))
	path := filepath.Join(dir, "keynest.key")

	sealed, err := New(NewKeyStore(path)).Seal([]byte("survives restart"))
	require.NoError(t, err)

	// A second vault over the same store must unseal the first's output.
	plain, err := New(NewKeyStore(path)).Unseal(sealed)
	require.NoError(t, err)
	assert.Equal(t, "survives restart", string(plain))
}

func TestDestroyRemovesKey(t *testing.T) {
	store := NewKeyStore(filepath.Join(t.TempDir(), "keynest.key"))
	v := New(store)

	sealed, err := v.Seal([]byte("gone after teardown"))
	require.NoError(t, err)
	require.True(t, store.Exists())

	require.NoError(t, v.Destroy())
	assert.False(t, store.Exists())

	// A new key cannot unseal the old value.
	_, err = New(store).Unseal(sealed)
	assert.ErrorIs(t, err, ErrUnsealFailed)
}

func TestKeyStoreLifecycle(t *testing.T) {
	store := NewKeyStore(filepath.Join(t.TempDir(), "sub", "keynest.key"))

	assert.False(t, store.Exists())
	_, err := store.Retrieve()
	assert.Error(t, err)

	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	require.NoError(t, store.Store(key))
	assert.True(t, store.Exists())

	got, err := store.Retrieve()
	require.NoError(t, err)
	assert.Equal(t, key, got)

	require.NoError(t, store.Delete())
	assert.False(t, store.Exists())
	// Deleting an absent key is not an error.
	require.NoError(t, store.Delete())
}

func TestKeyStoreRejectsInsecureDirectory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission checks are Unix-only")
	}

	dir := t.TempDir()
	store := NewKeyStore(filepath.Join(dir, "keynest.key"))
	require.NoError(t, store.Store(make([]byte, KeySize)))

	require.NoError(t, os.Chmod(dir, 0755))
	_, err := store.Retrieve()
	assert.ErrorContains(t, err, "insecure permissions")
}
