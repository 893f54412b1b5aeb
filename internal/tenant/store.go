// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package tenant

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/keynest/keynest-tui/internal/api"
	"github.com/keynest/keynest-tui/internal/util"
)

// =============================================================================
// TENANT CONTEXT STORE
// =============================================================================

const (
	selectionFile = "tenant.json"

	// selectionVersion is bumped when the selection schema changes.
	selectionVersion = 1
)

// selectionSnapshot is the on-disk format of the persisted selection.
type selectionSnapshot struct {
	Version      int              `json:"version"`
	Organization api.Organization `json:"organization"`
	SavedAt      time.Time        `json:"saved_at"`
}

// Store holds the active organization selection.
//
// The selection is a cached projection of one element of the user's
// organization list. It is persisted independently of the session, so a
// selection loaded at startup may belong to a previous sign-in; screens
// re-validate it against a fresh organization list before trusting it.
type Store struct {
	mu      sync.Mutex
	current *api.Organization

	// dir is where the selection snapshot lives; empty keeps the store
	// memory-only.
	dir string

	subscribers []func()
}

// NewStore creates a tenant store persisting its selection under dir.
// An empty dir disables persistence.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads any persisted selection into memory. A missing or malformed
// snapshot leaves the store empty; a malformed one is removed.
func (s *Store) Load() {
	if s.dir == "" {
		return
	}
	path := filepath.Join(s.dir, selectionFile)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		log.Printf("tenant: failed to read selection snapshot: %v", err)
		return
	}

	var snap selectionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil || snap.Version != selectionVersion {
		log.Printf("tenant: discarding unreadable selection snapshot")
		if rerr := os.Remove(path); rerr != nil {
			log.Printf("tenant: failed to remove selection snapshot: %v", rerr)
		}
		return
	}

	s.mu.Lock()
	org := snap.Organization
	s.current = &org
	s.mu.Unlock()
}

// Current returns the active organization, or nil when none is selected.
func (s *Store) Current() *api.Organization {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// HasSelection reports whether an organization is selected.
func (s *Store) HasSelection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// SetCurrent records a passive selection, such as auto-picking the first
// organization after the initial list fetch. It persists the choice but
// does not force navigation; use Switcher.Switch for user-initiated
// changes.
func (s *Store) SetCurrent(org api.Organization) {
	s.mu.Lock()
	s.current = &org
	s.mu.Unlock()

	s.persist(org)
	s.notify()
}

// Clear wipes the selection and its persisted snapshot. Wired to session
// sign-out so a later sign-in never inherits a stale tenant.
func (s *Store) Clear() {
	s.mu.Lock()
	had := s.current != nil
	s.current = nil
	s.mu.Unlock()

	if s.dir != "" {
		err := os.Remove(filepath.Join(s.dir, selectionFile))
		if err != nil && !os.IsNotExist(err) {
			log.Printf("tenant: failed to remove selection snapshot: %v", err)
		}
	}
	if had {
		s.notify()
	}
}

// Subscribe registers a callback invoked after every selection change.
// Callbacks run synchronously and must not block.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// SessionSource is the slice of the session store the tenant store watches.
type SessionSource interface {
	IsAuthenticated() bool
	Subscribe(fn func())
}

// ClearOnLogout wipes the selection whenever the session transitions to
// signed out. This covers teardown paths that never reach an explicit
// sign-out command, most importantly a revoked session discovered by the
// transport, which clears only the credential store itself. Clear is
// idempotent, so firing on every signed-out notification is harmless.
func ClearOnLogout(sessions SessionSource, store *Store) {
	sessions.Subscribe(func() {
		if !sessions.IsAuthenticated() {
			store.Clear()
		}
	})
}

func (s *Store) persist(org api.Organization) {
	if s.dir == "" {
		return
	}
	snap := selectionSnapshot{
		Version:      selectionVersion,
		Organization: org,
		SavedAt:      time.Now().UTC(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		log.Printf("tenant: failed to encode selection: %v", err)
		return
	}
	path := filepath.Join(s.dir, selectionFile)
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		log.Printf("tenant: %v", fmt.Errorf("failed to persist selection: %w", err))
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	subs := make([]func(), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
