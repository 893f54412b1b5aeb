// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keynest/keynest-tui/internal/api"
	"github.com/keynest/keynest-tui/internal/config"
	"github.com/keynest/keynest-tui/internal/session"
	"github.com/keynest/keynest-tui/internal/tenant"
)

func newTestApp(t *testing.T, handler http.Handler) (*App, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := session.NewStore(nil)
	return &App{
		Config:  config.Default(),
		Client:  api.NewClient(server.URL, store),
		Session: store,
		Tenants: tenant.NewStore(""),
	}, server
}

func signIn(app *App) {
	app.Session.Hydrate()
	app.Session.SetAuthenticated(&api.User{ID: 1, Username: "dev", Email: "dev@example.com"}, "a1", "r1")
}

func orgsHandler(t *testing.T, orgs []api.Organization) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/core/organizations/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(orgs)
	})
	return mux
}

func TestCommandsRequireASession(t *testing.T) {
	app, _ := newTestApp(t, http.NotFoundHandler())

	err := HandleWhoami(app, Args{})
	assert.ErrorIs(t, err, ErrNotSignedIn)

	err = HandleOrgs(app, Args{})
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestActiveOrganizationFallsBackToFirst(t *testing.T) {
	orgs := []api.Organization{
		{ID: 3, Name: "acme"},
		{ID: 9, Name: "umbrella"},
	}
	app, _ := newTestApp(t, orgsHandler(t, orgs))
	signIn(app)

	org, err := activeOrganization(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, int64(3), org.ID)

	// The fallback becomes the selection.
	require.True(t, app.Tenants.HasSelection())
	assert.Equal(t, int64(3), app.Tenants.Current().ID)
}

func TestActiveOrganizationKeepsValidSelection(t *testing.T) {
	orgs := []api.Organization{
		{ID: 3, Name: "acme"},
		{ID: 9, Name: "umbrella"},
	}
	app, _ := newTestApp(t, orgsHandler(t, orgs))
	signIn(app)
	app.Tenants.SetCurrent(orgs[1])

	org, err := activeOrganization(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, int64(9), org.ID)
}

func TestActiveOrganizationDropsStaleSelection(t *testing.T) {
	orgs := []api.Organization{{ID: 3, Name: "acme"}}
	app, _ := newTestApp(t, orgsHandler(t, orgs))
	signIn(app)

	// Selection left over from another account.
	app.Tenants.SetCurrent(api.Organization{ID: 99, Name: "ghost"})

	org, err := activeOrganization(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, int64(3), org.ID)
	assert.Equal(t, int64(3), app.Tenants.Current().ID)
}

func TestActiveOrganizationWithNoMemberships(t *testing.T) {
	app, _ := newTestApp(t, orgsHandler(t, []api.Organization{}))
	signIn(app)

	_, err := activeOrganization(context.Background(), app)
	assert.Error(t, err)
}

func TestSwitchOrgRejectsForeignOrganization(t *testing.T) {
	orgs := []api.Organization{{ID: 3, Name: "acme"}}
	app, _ := newTestApp(t, orgsHandler(t, orgs))
	signIn(app)

	err := HandleOrgs(app, Args{Subcommand: "switch", Raw: []string{"42"}})
	assert.ErrorContains(t, err, "not one of yours")
}

func TestSwitchOrgUpdatesSelection(t *testing.T) {
	orgs := []api.Organization{
		{ID: 3, Name: "acme"},
		{ID: 9, Name: "umbrella"},
	}
	app, _ := newTestApp(t, orgsHandler(t, orgs))
	signIn(app)

	err := HandleOrgs(app, Args{Subcommand: "switch", Raw: []string{"9"}, Quiet: true})
	require.NoError(t, err)
	require.True(t, app.Tenants.HasSelection())
	assert.Equal(t, "umbrella", app.Tenants.Current().Name)
}

func TestFindVariableMatchesByKey(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/core/environments/42/variables/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]api.Variable{
			{ID: 1, Key: "API_KEY", Environment: 42},
			{ID: 2, Key: "DATABASE_URL", Environment: 42},
		})
	})
	app, _ := newTestApp(t, mux)
	signIn(app)

	found, err := findVariable(context.Background(), app, 42, "DATABASE_URL")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(2), found.ID)

	missing, err := findVariable(context.Background(), app, 42, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
