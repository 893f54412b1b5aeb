// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the Bubble Tea application shell.
//
// The root model owns routing: every screen sits behind the route gate,
// which re-evaluates on each session change. Screens are rebuilt from
// scratch on navigation; nothing survives a route change except the
// stores themselves.
package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/keynest/keynest-tui/internal/api"
	"github.com/keynest/keynest-tui/internal/audit"
	"github.com/keynest/keynest-tui/internal/cache"
	"github.com/keynest/keynest-tui/internal/session"
	"github.com/keynest/keynest-tui/internal/tenant"
	"github.com/keynest/keynest-tui/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// hydratedMsg is sent once the session store finished its durable read.
type hydratedMsg struct{}

// sessionChangedMsg is sent whenever the session store notifies a change
// (sign-in, refresh rotation, background teardown).
type sessionChangedMsg struct{}

// navigateMsg requests a top-level navigation. Screens never navigate
// themselves; they emit this and the root model rebuilds.
type navigateMsg struct {
	route Route
}

// =============================================================================
// APP MODEL
// =============================================================================

// App is the dependency bundle the shell runs on.
type App struct {
	Client  *api.Client
	Session *session.Store
	Tenants *tenant.Store
	Cache   *cache.Cache
	Trail   *audit.Trail
}

// Model is the root Bubble Tea model.
type Model struct {
	app   *App
	theme *styles.Theme

	route     Route
	loading   spinner.Model
	width     int
	height    int
	quitting  bool
	navEvents chan Route
	sessions  chan struct{}

	login     *loginModel
	register  *registerModel
	dashboard *dashboardModel
}

// NewModel builds the root model. The starting route is the dashboard;
// the gate bounces unauthenticated sessions to login once hydration
// completes.
func NewModel(app *App) *Model {
	theme := styles.NewTheme()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	m := &Model{
		app:       app,
		theme:     theme,
		route:     RouteDashboard,
		loading:   sp,
		navEvents: make(chan Route, 8),
		sessions:  make(chan struct{}, 8),
	}

	// Store notifications arrive on arbitrary goroutines; forward them
	// into the event loop through a channel the Init command drains.
	app.Session.Subscribe(func() {
		select {
		case m.sessions <- struct{}{}:
		default:
		}
	})

	return m
}

// Navigator returns the tenant.Navigator bound to this model. The switch
// controller calls it to force the jump home.
func (m *Model) Navigator() tenant.Navigator {
	return navigatorFunc(func() {
		select {
		case m.navEvents <- RouteDashboard:
		default:
		}
	})
}

type navigatorFunc func()

func (n navigatorFunc) NavigateHome() { n() }

// =============================================================================
// LIFECYCLE
// =============================================================================

// Init starts hydration and the channel pumps.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.loading.Tick,
		m.hydrate(),
		m.waitForNavigation(),
		m.waitForSessionChange(),
	)
}

// hydrate loads persisted session and tenant state off the event loop.
func (m *Model) hydrate() tea.Cmd {
	return func() tea.Msg {
		m.app.Session.Hydrate()
		m.app.Tenants.Load()
		return hydratedMsg{}
	}
}

func (m *Model) waitForNavigation() tea.Cmd {
	return func() tea.Msg {
		return navigateMsg{route: <-m.navEvents}
	}
}

func (m *Model) waitForSessionChange() tea.Cmd {
	return func() tea.Msg {
		<-m.sessions
		return sessionChangedMsg{}
	}
}

// Update routes messages to the active screen after the gate has spoken.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		return m, m.forwardToScreen(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, m.forwardToScreen(msg)

	case hydratedMsg:
		// Hydration complete: run the gate for the first real render.
		return m, m.applyGate()

	case sessionChangedMsg:
		// Background teardown or sign-in: the gate re-runs immediately,
		// not on the next screen entry.
		return m, tea.Batch(m.applyGate(), m.waitForSessionChange())

	case navigateMsg:
		cmd := m.navigate(msg.route)
		return m, tea.Batch(cmd, m.waitForNavigation())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.loading, cmd = m.loading.Update(msg)
		return m, cmd
	}

	return m, m.forwardToScreen(msg)
}

// applyGate resolves the current route and navigates if the gate demands
// it.
func (m *Model) applyGate() tea.Cmd {
	decision, target := Resolve(m.route, m.app.Session)
	if decision == DecisionRedirect {
		return m.navigate(target)
	}
	if decision == DecisionRender && m.activeScreen() == nil {
		return m.navigate(m.route)
	}
	return nil
}

// navigate switches to route, rebuilding the screen model from scratch.
// The gate gets the final word on the destination.
func (m *Model) navigate(route Route) tea.Cmd {
	if decision, target := Resolve(route, m.app.Session); decision == DecisionRedirect {
		route = target
	}

	m.route = route
	m.login, m.register, m.dashboard = nil, nil, nil

	switch route {
	case RouteLogin:
		m.login = newLoginModel(m.app, m.theme, m.width)
		return m.login.Init()
	case RouteRegister:
		m.register = newRegisterModel(m.app, m.theme, m.width)
		return m.register.Init()
	case RouteDashboard:
		m.dashboard = newDashboardModel(m.app, m.theme, m.Navigator(), m.width, m.height)
		return m.dashboard.Init()
	}
	return nil
}

// forwardToScreen hands a message to whichever screen is active.
func (m *Model) forwardToScreen(msg tea.Msg) tea.Cmd {
	switch {
	case m.login != nil:
		return m.login.Update(msg)
	case m.register != nil:
		return m.register.Update(msg)
	case m.dashboard != nil:
		return m.dashboard.Update(msg)
	}
	return nil
}

func (m *Model) activeScreen() any {
	switch {
	case m.login != nil:
		return m.login
	case m.register != nil:
		return m.register
	case m.dashboard != nil:
		return m.dashboard
	}
	return nil
}

// View renders the gated screen. Until hydration completes every route
// shows the same neutral loading view; protected content never flashes.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	decision, _ := Resolve(m.route, m.app.Session)
	if decision == DecisionLoading {
		return m.theme.Container.Render(
			m.loading.View() + " " + m.theme.LoadingText.Render("Unlocking session..."))
	}

	switch {
	case m.login != nil:
		return m.login.View()
	case m.register != nil:
		return m.register.View()
	case m.dashboard != nil:
		return m.dashboard.View()
	}
	return ""
}

// =============================================================================
// SIGN-OUT
// =============================================================================

// signOut tears down the session everywhere: best-effort server
// blacklist, local stores, tenant selection, listing cache. Used by the
// logout key binding and reused by the CLI.
func signOut(ctx context.Context, app *App) {
	refresh := app.Session.RefreshCredential()
	var username string
	if u := app.Session.User(); u != nil {
		username = u.Username
	}

	if refresh != "" {
		// Server failure must not block local teardown.
		_ = app.Client.LogoutServer(ctx, refresh)
	}

	app.Session.Logout()
	app.Tenants.Clear()
	if app.Cache != nil {
		_ = app.Cache.Clear()
	}
	if app.Trail != nil {
		_ = app.Trail.RecordSignOut(username)
	}
}
