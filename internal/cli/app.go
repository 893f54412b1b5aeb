// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Shared dependencies and helpers for CLI command handlers.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/keynest/keynest-tui/internal/api"
	"github.com/keynest/keynest-tui/internal/audit"
	"github.com/keynest/keynest-tui/internal/cache"
	"github.com/keynest/keynest-tui/internal/config"
	"github.com/keynest/keynest-tui/internal/session"
	"github.com/keynest/keynest-tui/internal/tenant"
)

// =============================================================================
// CLI STYLES
// =============================================================================

var (
	cliTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")) // Indigo

	cliLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(16)

	cliValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	cliOkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")) // Emerald

	cliErrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("204")) // Rose

	cliDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))
)

// =============================================================================
// APP DEPENDENCIES
// =============================================================================

// App bundles the client-side stores a command handler needs. main assembles
// one App per invocation and hands it to every handler.
type App struct {
	Config  *config.Config
	Client  *api.Client
	Session *session.Store
	Tenants *tenant.Store
	Cache   *cache.Cache
	Trail   *audit.Trail
}

// ErrNotSignedIn is returned by commands that require an authenticated session.
var ErrNotSignedIn = errors.New("not signed in (run 'keynest login')")

// requireSession hydrates the session store and fails if nobody is signed in.
func requireSession(app *App) (*api.User, error) {
	app.Session.Hydrate()
	if !app.Session.IsAuthenticated() {
		return nil, ErrNotSignedIn
	}
	return app.Session.User(), nil
}

// activeOrganization resolves the tenant a scoped command operates in.
// A persisted selection is trusted only if the server still lists that
// organization for this user; otherwise the first listed organization
// becomes the selection.
func activeOrganization(ctx context.Context, app *App) (api.Organization, error) {
	app.Tenants.Load()

	orgs, err := app.Client.ListOrganizations(ctx)
	if err != nil {
		return api.Organization{}, err
	}
	if len(orgs) == 0 {
		return api.Organization{}, errors.New("you do not belong to any organization yet")
	}

	if current := app.Tenants.Current(); current != nil {
		for _, org := range orgs {
			if org.ID == current.ID {
				return org, nil
			}
		}
	}

	app.Tenants.SetCurrent(orgs[0])
	return orgs[0], nil
}

// parseID parses a positional numeric ID argument.
func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %q", what, s)
	}
	return id, nil
}

// outputJSON writes data as indented JSON to stdout.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// printKV prints an aligned label/value row.
func printKV(label, value string) {
	fmt.Printf("%s %s\n", cliLabelStyle.Render(label), cliValueStyle.Render(value))
}
