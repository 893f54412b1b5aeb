// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keynest/keynest-tui/internal/api"
)

func TestCredentialPairSetAndClearedTogether(t *testing.T) {
	s := NewStore(nil)

	s.SetAuthenticated(&api.User{ID: 1, Username: "maya"}, "access-1", "refresh-1")
	assert.Equal(t, "access-1", s.AccessCredential())
	assert.Equal(t, "refresh-1", s.RefreshCredential())
	assert.True(t, s.IsAuthenticated())

	s.Logout()
	assert.Empty(t, s.AccessCredential())
	assert.Empty(t, s.RefreshCredential())
	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.User())
}

func TestSetAccessCredentialKeepsRefresh(t *testing.T) {
	s := NewStore(nil)
	s.SetAuthenticated(&api.User{ID: 1, Username: "maya"}, "access-1", "refresh-1")

	s.SetAccessCredential("access-2")

	assert.True(t, s.IsAuthenticated())

	assert.Equal(t, "access-2", s.AccessCredential())
	assert.Equal(t, "refresh-1", s.RefreshCredential())
}

func TestLogoutIsIdempotent(t *testing.T) {
	s := NewStore(nil)
	s.SetAuthenticated(&api.User{ID: 1, Username: "maya"}, "a", "r")

	s.Logout()
	s.Logout()

	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.AccessCredential())
}

func TestHydrateRunsExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	p := newTestPersistence(t, dir)
	require.NoError(t, p.SaveIdentity(&api.User{ID: 3, Username: "maya"}))
	require.NoError(t, p.SaveCredentials("persisted-access", "persisted-refresh"))

	s := NewStore(p)
	assert.False(t, s.Hydrated())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Hydrate()
		}()
	}
	wg.Wait()

	assert.True(t, s.Hydrated())
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "persisted-access", s.AccessCredential())
	assert.Equal(t, "persisted-refresh", s.RefreshCredential())

	select {
	case <-s.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready channel never closed")
	}

	// A second explicit call must not reload or re-notify.
	var notified int
	s.Subscribe(func() { notified++ })
	s.Hydrate()
	assert.Zero(t, notified)
}

func TestHydrateWithoutSnapshotLeavesSignedOut(t *testing.T) {
	s := NewStore(newTestPersistence(t, t.TempDir()))
	s.Hydrate()

	assert.True(t, s.Hydrated())
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.AccessCredential())
}

func TestSubscribersNotifiedOnStateChanges(t *testing.T) {
	s := NewStore(nil)

	var events []bool
	s.Subscribe(func() { events = append(events, s.IsAuthenticated()) })

	s.SetAuthenticated(&api.User{ID: 1, Username: "maya"}, "a", "r")
	s.Logout()
	s.Logout() // signed out already: no event

	assert.Equal(t, []bool{true, false}, events)
}

func TestLogoutRemovesDurableSnapshots(t *testing.T) {
	dir := t.TempDir()
	p := newTestPersistence(t, dir)

	s := NewStore(p)
	s.Hydrate()
	s.SetAuthenticated(&api.User{ID: 7, Username: "maya"}, "a", "r")

	_, _, ok, err := p.LoadCredentials()
	require.NoError(t, err)
	require.True(t, ok)

	s.Logout()

	_, _, ok, err = p.LoadCredentials()
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = p.LoadIdentity()
	require.NoError(t, err)
	assert.False(t, ok)
}

// sessionView is one observed snapshot of the store's externally visible
// state, taken inside a subscriber callback.
type sessionView struct {
	authenticated bool
	hasUser       bool
	access        string
	refresh       string
}

func TestSignInIsObservedAtomically(t *testing.T) {
	s := NewStore(nil)

	var views []sessionView
	s.Subscribe(func() {
		views = append(views, sessionView{
			authenticated: s.IsAuthenticated(),
			hasUser:       s.User() != nil,
			access:        s.AccessCredential(),
			refresh:       s.RefreshCredential(),
		})
	})

	s.SetAuthenticated(&api.User{ID: 1, Username: "maya"}, "a1", "r1")

	// Exactly one notification, and it already carries the complete
	// session: an active flag is never visible next to a missing identity
	// or half a pair.
	require.Len(t, views, 1)
	assert.Equal(t, sessionView{
		authenticated: true,
		hasUser:       true,
		access:        "a1",
		refresh:       "r1",
	}, views[0])
}

func TestIdentityAloneDoesNotActivateSession(t *testing.T) {
	s := NewStore(nil)

	s.SetIdentity(&api.User{ID: 1, Username: "maya"})

	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.AccessCredential())
	assert.Empty(t, s.RefreshCredential())
}

func TestCredentialsAloneDoNotActivateSession(t *testing.T) {
	s := NewStore(nil)

	s.SetCredentials("a1", "r1")

	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.User())
}

func TestSignInCompletesHydration(t *testing.T) {
	s := NewStore(nil)

	s.SetAuthenticated(&api.User{ID: 1, Username: "maya"}, "a1", "r1")

	assert.True(t, s.Hydrated())
	select {
	case <-s.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready channel never closed")
	}

	// A later Hydrate call must not disturb the live session.
	s.Hydrate()
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "a1", s.AccessCredential())
}

func TestHydrateDiscardsPairWithoutIdentity(t *testing.T) {
	dir := t.TempDir()
	p := newTestPersistence(t, dir)
	require.NoError(t, p.SaveCredentials("orphan-access", "orphan-refresh"))

	s := NewStore(p)
	s.Hydrate()

	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.AccessCredential())

	// The orphaned snapshot is gone; the next start is clean.
	_, _, ok, err := p.LoadCredentials()
	require.NoError(t, err)
	assert.False(t, ok)
}

