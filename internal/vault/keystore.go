// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

// KeyStore defines the interface for root key storage.
// Implementations provide platform-specific protection:
//   - Windows: DPAPI (Data Protection API), bound to the logged-in user
//   - Unix: a key file with 0600 permissions in a 0700 directory
type KeyStore interface {
	// Store saves the root key.
	Store(key []byte) error
	// Retrieve reads the root key back.
	Retrieve() ([]byte, error)
	// Delete removes the root key from storage.
	Delete() error
	// Exists reports whether a root key is stored.
	Exists() bool
}
