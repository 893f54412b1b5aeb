// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keynest/keynest-tui/internal/api"
	"github.com/keynest/keynest-tui/internal/session"
	"github.com/keynest/keynest-tui/internal/tenant"
)

func newTestApp() *App {
	store := session.NewStore(nil)
	return &App{
		Client:  api.NewClient("http://localhost:0", store),
		Session: store,
		Tenants: tenant.NewStore(""),
	}
}

// Navigation happens synchronously inside Update; the returned commands
// (screen Init fetches, channel pumps) are deliberately not executed in
// these tests.

func TestRootShowsLoadingBeforeHydration(t *testing.T) {
	m := NewModel(newTestApp())

	view := m.View()
	assert.Contains(t, view, "Unlocking session")
	// No screen exists yet: protected content cannot flash.
	assert.Nil(t, m.activeScreen())
}

func TestRootRedirectsToLoginAfterHydrationWhenSignedOut(t *testing.T) {
	m := NewModel(newTestApp())

	// Run the hydrate command the way the runtime would.
	msg := m.hydrate()()
	require.IsType(t, hydratedMsg{}, msg)
	m.Update(msg)

	assert.Equal(t, RouteLogin, m.route)
	assert.NotNil(t, m.login)
	assert.Nil(t, m.dashboard)
}

func TestRootMovesToDashboardOnSignIn(t *testing.T) {
	m := NewModel(newTestApp())
	m.Update(m.hydrate()())

	m.app.Session.SetAuthenticated(&api.User{ID: 1, Username: "maya"}, "a1", "r1")
	m.Update(sessionChangedMsg{})

	assert.Equal(t, RouteDashboard, m.route)
	assert.NotNil(t, m.dashboard)
	assert.Nil(t, m.login)
}

func TestBackgroundTeardownBouncesDashboardToLogin(t *testing.T) {
	m := NewModel(newTestApp())
	m.app.Session.SetAuthenticated(&api.User{ID: 1, Username: "maya"}, "a1", "r1")
	m.Update(m.hydrate()())
	require.Equal(t, RouteDashboard, m.route)

	// Transport-triggered teardown (refresh failed): the gate re-runs on
	// the session change, not on the next keypress.
	m.app.Session.Logout()
	m.Update(sessionChangedMsg{})

	assert.Equal(t, RouteLogin, m.route)
	assert.Nil(t, m.dashboard)
	assert.NotNil(t, m.login)
}

func TestTenantSwitchRebuildsDashboard(t *testing.T) {
	m := NewModel(newTestApp())
	m.app.Session.SetAuthenticated(&api.User{ID: 1, Username: "maya"}, "a1", "r1")
	m.Update(m.hydrate()())
	require.Equal(t, RouteDashboard, m.route)

	previous := m.dashboard
	previous.projects = []api.Project{{ID: 1, Name: "stale", Organization: 5}}

	// The switch controller calls the navigator, which queues a forced
	// jump home; the root model rebuilds the dashboard from scratch.
	sw := tenant.NewSwitcher(m.app.Tenants, nil, m.Navigator())
	m.app.Tenants.SetCurrent(api.Organization{ID: 5, Name: "acme"})
	sw.Switch(api.Organization{ID: 9, Name: "globex"})

	m.Update(navigateMsg{route: <-m.navEvents})

	require.NotNil(t, m.dashboard)
	assert.NotSame(t, previous, m.dashboard)
	assert.Empty(t, m.dashboard.projects, "no view state survives a tenant switch")
}
