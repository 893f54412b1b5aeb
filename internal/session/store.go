// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"log"
	"sync"

	"github.com/keynest/keynest-tui/internal/api"
)

// =============================================================================
// SESSION STORE
// =============================================================================

// Store holds the in-memory session state: the signed-in user's identity
// and the access/refresh credential pair.
//
// Store implements api.CredentialSource, so the transport reads and
// rotates credentials through it directly.
type Store struct {
	mu sync.Mutex

	user          *api.User
	access        string
	refresh       string
	authenticated bool

	// Hydration runs exactly once per process, even under concurrent
	// callers; ready is closed when it completes. A sign-in also completes
	// hydration, so ready has its own once.
	hydrateOnce sync.Once
	readyOnce   sync.Once
	hydrated    bool
	ready       chan struct{}

	persistence Persistence
	subscribers []func()
}

// NewStore creates an empty, un-hydrated session store. A nil persistence
// keeps the store memory-only, which is what most tests want.
func NewStore(persistence Persistence) *Store {
	return &Store{
		persistence: persistence,
		ready:       make(chan struct{}),
	}
}

// =============================================================================
// HYDRATION
// =============================================================================

// Hydrate loads any persisted identity and credential pair into memory.
// It runs at most once; later calls (from any goroutine) are no-ops.
// A missing or unreadable snapshot leaves the store signed out; hydration
// itself never fails.
func (s *Store) Hydrate() {
	s.hydrateOnce.Do(func() {
		s.mu.Lock()
		hydrated := s.hydrated
		s.mu.Unlock()
		if hydrated {
			// A sign-in already established the session state; there is
			// nothing on disk worth reading over it.
			return
		}
		if s.persistence != nil {
			s.loadPersisted()
		}
		s.completeHydration()
		s.notify()
	})
}

// completeHydration marks the session state known and releases waiters.
// Safe to call more than once.
func (s *Store) completeHydration() {
	s.mu.Lock()
	s.hydrated = true
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Store) loadPersisted() {
	access, refresh, ok, err := s.persistence.LoadCredentials()
	if err != nil {
		// Malformed or undecryptable snapshot: treat as signed out and
		// drop it so the next save starts clean.
		log.Printf("session: discarding unreadable credential snapshot: %v", err)
		if derr := s.persistence.DeleteCredentials(); derr != nil {
			log.Printf("session: failed to remove credential snapshot: %v", derr)
		}
		return
	}
	if !ok {
		return
	}

	user, userOK, err := s.persistence.LoadIdentity()
	if err != nil {
		log.Printf("session: discarding unreadable identity snapshot: %v", err)
		user, userOK = nil, false
	}
	if !userOK || user == nil {
		// A credential pair without its identity is not a session: an
		// authenticated store always holds identity and both credentials.
		// Drop both snapshots so the next save starts clean.
		log.Printf("session: credential snapshot has no matching identity; discarding")
		if derr := s.persistence.DeleteCredentials(); derr != nil {
			log.Printf("session: failed to remove credential snapshot: %v", derr)
		}
		if derr := s.persistence.DeleteIdentity(); derr != nil {
			log.Printf("session: failed to remove identity snapshot: %v", derr)
		}
		return
	}

	s.mu.Lock()
	s.user = user
	s.access = access
	s.refresh = refresh
	s.authenticated = true
	s.mu.Unlock()
}

// Hydrated reports whether hydration has completed.
func (s *Store) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// Ready returns a channel that is closed once hydration completes.
// Callers that must not read session state early (the route gate, the
// first screen render) wait on it.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// =============================================================================
// STATE ACCESS
// =============================================================================

// User returns the signed-in user's identity, or nil when signed out.
func (s *Store) User() *api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// IsAuthenticated reports whether a session is active.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// AccessCredential returns the current access credential ("" when signed out).
func (s *Store) AccessCredential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

// RefreshCredential returns the current refresh credential ("" when signed out).
func (s *Store) RefreshCredential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh
}

// =============================================================================
// STATE MUTATION
// =============================================================================

// SetAuthenticated installs a complete session (identity plus the
// credential pair) in one step under one lock. This is the only sign-in
// entry point: no observer, including the first subscriber notification,
// can ever see an active session missing its identity or half its pair.
// A sign-in also completes hydration; the session state is known from this
// moment regardless of what is on disk.
func (s *Store) SetAuthenticated(user *api.User, access, refresh string) {
	s.mu.Lock()
	s.user = user
	s.access = access
	s.refresh = refresh
	s.authenticated = user != nil && access != "" && refresh != ""
	authenticated := s.authenticated
	s.mu.Unlock()

	if s.persistence != nil && authenticated {
		if err := s.persistence.SaveIdentity(user); err != nil {
			log.Printf("session: failed to persist identity: %v", err)
		}
		if err := s.persistence.SaveCredentials(access, refresh); err != nil {
			// The in-memory session stays valid; only restart continuity
			// is lost.
			log.Printf("session: failed to persist credentials: %v", err)
		}
	}
	s.completeHydration()
	s.notify()
}

// SetIdentity updates the signed-in user's profile (for example after a
// fresh profile fetch). It cannot by itself activate a session: the active
// flag always follows the derived definition: identity present and both
// credentials present.
func (s *Store) SetIdentity(user *api.User) {
	s.mu.Lock()
	s.user = user
	s.authenticated = user != nil && s.access != "" && s.refresh != ""
	s.mu.Unlock()

	if s.persistence != nil {
		if err := s.persistence.SaveIdentity(user); err != nil {
			log.Printf("session: failed to persist identity: %v", err)
		}
	}
	s.notify()
}

// SetCredentials replaces the credential pair of an existing session. The
// pair is written as a unit: there is no way to set only one half. Like
// SetIdentity, it cannot activate a session on its own.
func (s *Store) SetCredentials(access, refresh string) {
	s.mu.Lock()
	s.access = access
	s.refresh = refresh
	s.authenticated = s.user != nil && access != "" && refresh != ""
	s.mu.Unlock()

	if s.persistence != nil {
		if err := s.persistence.SaveCredentials(access, refresh); err != nil {
			log.Printf("session: failed to persist credentials: %v", err)
		}
	}
	s.notify()
}

// SetAccessCredential replaces only the access credential, keeping the
// current refresh credential. Used after a successful refresh, which
// returns a new access credential without rotating the refresh one.
func (s *Store) SetAccessCredential(access string) {
	s.mu.Lock()
	s.access = access
	s.authenticated = s.user != nil && access != "" && s.refresh != ""
	refresh := s.refresh
	s.mu.Unlock()

	if s.persistence != nil {
		if err := s.persistence.SaveCredentials(access, refresh); err != nil {
			log.Printf("session: failed to persist credentials: %v", err)
		}
	}
	s.notify()
}

// Logout clears the identity, both credentials, and the persisted
// snapshots. It is idempotent: calling it on a signed-out store is a
// no-op that still leaves the store signed out.
func (s *Store) Logout() {
	s.mu.Lock()
	wasAuthenticated := s.authenticated || s.access != "" || s.refresh != "" || s.user != nil
	s.user = nil
	s.access = ""
	s.refresh = ""
	s.authenticated = false
	s.mu.Unlock()

	if s.persistence != nil {
		if err := s.persistence.DeleteCredentials(); err != nil {
			log.Printf("session: failed to remove persisted credentials: %v", err)
		}
		if err := s.persistence.DeleteIdentity(); err != nil {
			log.Printf("session: failed to remove persisted identity: %v", err)
		}
	}
	if wasAuthenticated {
		s.notify()
	}
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers a callback invoked after every session state change
// (sign-in, credential rotation, sign-out, hydration). Callbacks run
// synchronously on the mutating goroutine and must not block.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
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
