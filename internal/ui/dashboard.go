// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/keynest/keynest-tui/internal/api"
	"github.com/keynest/keynest-tui/internal/cache"
	"github.com/keynest/keynest-tui/internal/tenant"
	"github.com/keynest/keynest-tui/internal/ui/styles"
	"github.com/keynest/keynest-tui/internal/util"
)

// =============================================================================
// DASHBOARD SCREEN
// =============================================================================

// level is the drill-down depth: projects, environments, variables.
type level int

const (
	levelProjects level = iota
	levelEnvironments
	levelVariables
)

// Messages produced by dashboard fetch commands.
type (
	organizationsLoadedMsg struct {
		orgs []api.Organization
		err  error
	}
	projectsLoadedMsg struct {
		projects []api.Project
		err      error
	}
	environmentsLoadedMsg struct {
		envs []api.Environment
		err  error
	}
	variablesLoadedMsg struct {
		vars []api.Variable
		err  error
	}
)

type dashboardModel struct {
	app       *App
	theme     *styles.Theme
	navigator tenant.Navigator
	width     int
	height    int

	level   level
	cursor  int
	loading bool
	errMsg  string

	orgs     []api.Organization
	projects []api.Project
	envs     []api.Environment
	vars     []api.Variable

	// Drill-down context
	activeProject api.Project
	activeEnv     api.Environment

	// Organization picker overlay
	picking   bool
	pickIndex int

	revealValues bool
}

func newDashboardModel(app *App, theme *styles.Theme, navigator tenant.Navigator, width, height int) *dashboardModel {
	return &dashboardModel{
		app:       app,
		theme:     theme,
		navigator: navigator,
		width:     width,
		height:    height,
		loading:   true,
	}
}

// Init fetches organizations first; the project list follows once a
// tenant is selected.
func (m *dashboardModel) Init() tea.Cmd {
	return m.loadOrganizations()
}

// =============================================================================
// FETCH COMMANDS
// =============================================================================

func (m *dashboardModel) loadOrganizations() tea.Cmd {
	app := m.app
	return func() tea.Msg {
		orgs, err := app.Client.ListOrganizations(context.Background())
		return organizationsLoadedMsg{orgs: orgs, err: err}
	}
}

func (m *dashboardModel) loadProjects() tea.Cmd {
	app := m.app
	org := app.Tenants.Current()
	if org == nil {
		return nil
	}
	orgID := org.ID
	return func() tea.Msg {
		if app.Cache != nil {
			var cached []api.Project
			if hit, _ := app.Cache.Get(orgID, cache.KindProjects, orgID, &cached); hit {
				return projectsLoadedMsg{projects: cached}
			}
		}
		projects, err := app.Client.ListProjects(context.Background(), orgID)
		if err == nil && app.Cache != nil {
			_ = app.Cache.Put(orgID, cache.KindProjects, orgID, projects)
		}
		return projectsLoadedMsg{projects: projects, err: err}
	}
}

func (m *dashboardModel) loadEnvironments(project api.Project) tea.Cmd {
	app := m.app
	return func() tea.Msg {
		if app.Cache != nil {
			var cached []api.Environment
			if hit, _ := app.Cache.Get(project.Organization, cache.KindEnvironments, project.ID, &cached); hit {
				return environmentsLoadedMsg{envs: cached}
			}
		}
		envs, err := app.Client.ListEnvironments(context.Background(), project.ID)
		if err == nil && app.Cache != nil {
			_ = app.Cache.Put(project.Organization, cache.KindEnvironments, project.ID, envs)
		}
		return environmentsLoadedMsg{envs: envs, err: err}
	}
}

func (m *dashboardModel) loadVariables(env api.Environment) tea.Cmd {
	app := m.app
	return func() tea.Msg {
		// Variable values are secrets: they are fetched fresh every time
		// and never written to the listing cache.
		vars, err := app.Client.ListVariables(context.Background(), env.ID)
		return variablesLoadedMsg{vars: vars, err: err}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

func (m *dashboardModel) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return nil

	case organizationsLoadedMsg:
		return m.onOrganizationsLoaded(msg)

	case projectsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return nil
		}
		m.projects = msg.projects
		m.clampCursor()
		return nil

	case environmentsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return nil
		}
		m.envs = msg.envs
		m.clampCursor()
		return nil

	case variablesLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return nil
		}
		m.vars = msg.vars
		m.clampCursor()
		return nil

	case tea.KeyMsg:
		return m.onKey(msg)
	}
	return nil
}

func (m *dashboardModel) onOrganizationsLoaded(msg organizationsLoadedMsg) tea.Cmd {
	if msg.err != nil {
		m.loading = false
		m.errMsg = msg.err.Error()
		return nil
	}
	m.orgs = msg.orgs

	// A persisted selection is only trusted if this identity still
	// belongs to that organization; otherwise fall back to the first one.
	current := m.app.Tenants.Current()
	valid := false
	if current != nil {
		for _, org := range m.orgs {
			if org.ID == current.ID {
				valid = true
				break
			}
		}
	}
	if !valid {
		if len(m.orgs) == 0 {
			m.loading = false
			m.errMsg = "You are not a member of any organization yet."
			return nil
		}
		m.app.Tenants.SetCurrent(m.orgs[0])
	}

	return m.loadProjects()
}

func (m *dashboardModel) onKey(msg tea.KeyMsg) tea.Cmd {
	if m.picking {
		return m.onPickerKey(msg)
	}

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < m.listLen()-1 {
			m.cursor++
		}
	case "enter", "l":
		return m.drillIn()
	case "esc", "h":
		return m.drillOut()
	case "o":
		if len(m.orgs) > 1 {
			m.picking = true
			m.pickIndex = 0
		}
	case "v":
		if m.level == levelVariables {
			m.revealValues = !m.revealValues
		}
	case "r":
		return m.reload()
	case "ctrl+d":
		app := m.app
		return func() tea.Msg {
			signOut(context.Background(), app)
			// The session notification flips the gate to the login screen.
			return nil
		}
	}
	return nil
}

func (m *dashboardModel) onPickerKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if m.pickIndex > 0 {
			m.pickIndex--
		}
	case "down", "j":
		if m.pickIndex < len(m.orgs)-1 {
			m.pickIndex++
		}
	case "esc":
		m.picking = false
	case "enter":
		m.picking = false
		selected := m.orgs[m.pickIndex]
		from := ""
		if cur := m.app.Tenants.Current(); cur != nil {
			from = cur.Name
		}
		app := m.app
		navigator := m.navigator
		var invalidator tenant.Invalidator
		if app.Cache != nil {
			invalidator = app.Cache
		}
		return func() tea.Msg {
			// The switch controller wipes the cache and forces the
			// navigation; this model is torn down by it.
			tenant.NewSwitcher(app.Tenants, invalidator, navigator).Switch(selected)
			if app.Trail != nil && from != selected.Name {
				_ = app.Trail.RecordTenantSwitch(from, selected.Name)
			}
			return nil
		}
	}
	return nil
}

func (m *dashboardModel) drillIn() tea.Cmd {
	switch m.level {
	case levelProjects:
		if m.cursor >= len(m.projects) {
			return nil
		}
		m.activeProject = m.projects[m.cursor]
		m.level = levelEnvironments
		m.cursor = 0
		m.loading = true
		m.errMsg = ""
		return m.loadEnvironments(m.activeProject)
	case levelEnvironments:
		if m.cursor >= len(m.envs) {
			return nil
		}
		m.activeEnv = m.envs[m.cursor]
		m.level = levelVariables
		m.cursor = 0
		m.loading = true
		m.errMsg = ""
		m.revealValues = false
		return m.loadVariables(m.activeEnv)
	}
	return nil
}

func (m *dashboardModel) drillOut() tea.Cmd {
	switch m.level {
	case levelVariables:
		m.level = levelEnvironments
		m.cursor = 0
		m.vars = nil
	case levelEnvironments:
		m.level = levelProjects
		m.cursor = 0
		m.envs = nil
	}
	return nil
}

func (m *dashboardModel) reload() tea.Cmd {
	m.loading = true
	m.errMsg = ""
	switch m.level {
	case levelProjects:
		if org := m.app.Tenants.Current(); org != nil && m.app.Cache != nil {
			_ = m.app.Cache.InvalidateOrganization(org.ID)
		}
		return m.loadProjects()
	case levelEnvironments:
		return m.loadEnvironments(m.activeProject)
	case levelVariables:
		return m.loadVariables(m.activeEnv)
	}
	return nil
}

func (m *dashboardModel) listLen() int {
	switch m.level {
	case levelProjects:
		return len(m.projects)
	case levelEnvironments:
		return len(m.envs)
	default:
		return len(m.vars)
	}
}

func (m *dashboardModel) clampCursor() {
	if n := m.listLen(); m.cursor >= n {
		m.cursor = 0
	}
}

// =============================================================================
// VIEW
// =============================================================================

func (m *dashboardModel) View() string {
	t := m.theme
	var b strings.Builder

	b.WriteString(t.Header.Width(max(m.width, 40)).Render(
		t.HeaderTitle.Render("KeyNest") + "  " +
			t.HeaderSubtitle.Render(m.breadcrumb())))
	b.WriteString("\n\n")

	switch {
	case m.picking:
		b.WriteString(m.viewPicker())
	case m.loading:
		b.WriteString(t.LoadingText.Render("Loading..."))
	case m.errMsg != "":
		b.WriteString(t.ErrorBox.Render(m.errMsg))
	default:
		b.WriteString(m.viewList())
	}
	b.WriteString("\n\n")

	user := ""
	if u := m.app.Session.User(); u != nil {
		user = u.Name()
	}
	tenantName := ""
	if org := m.app.Tenants.Current(); org != nil {
		tenantName = org.Name
	}
	b.WriteString(renderStatusBar(t, m.width, statusBarData{
		tenant: tenantName,
		user:   user,
		hint:   m.hint(),
	}))

	return b.String()
}

func (m *dashboardModel) breadcrumb() string {
	switch m.level {
	case levelEnvironments:
		return m.activeProject.Name
	case levelVariables:
		return m.activeProject.Name + " / " + m.activeEnv.Name
	default:
		return "Projects"
	}
}

func (m *dashboardModel) hint() string {
	base := "enter: open  •  esc: back  •  o: org  •  r: refresh  •  ctrl+d: sign out"
	if m.level == levelVariables {
		return "v: reveal  •  " + base
	}
	return base
}

func (m *dashboardModel) viewPicker() string {
	t := m.theme
	var b strings.Builder
	b.WriteString(t.FormLabel.Render("Switch organization"))
	b.WriteString("\n\n")
	for i, org := range m.orgs {
		line := fmt.Sprintf("%s  %s", org.Name,
			t.ListCount.Render(fmt.Sprintf("(%d members, %s)", org.MemberCount, org.UserRole)))
		if i == m.pickIndex {
			b.WriteString(t.ListItemSelected.Render("› " + line))
		} else {
			b.WriteString(t.ListItem.Render("  " + line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(t.FormHint.Render("enter: switch  •  esc: cancel"))
	return t.FormBox.Render(b.String())
}

func (m *dashboardModel) viewList() string {
	t := m.theme
	var b strings.Builder

	switch m.level {
	case levelProjects:
		if len(m.projects) == 0 {
			return t.FormHint.Render("No projects in this organization yet.")
		}
		for i, p := range m.projects {
			line := fmt.Sprintf("%-24s %s", truncateCell(p.Name, 24),
				t.ListCount.Render(fmt.Sprintf("%d environments", p.EnvironmentCount)))
			b.WriteString(m.renderRow(i, line))
		}

	case levelEnvironments:
		if len(m.envs) == 0 {
			return t.FormHint.Render("No environments in this project yet.")
		}
		for i, e := range m.envs {
			badge := lipglossBadge(t, e.EnvironmentType)
			line := fmt.Sprintf("%-20s %s %s", truncateCell(e.Name, 20), badge,
				t.ListCount.Render(fmt.Sprintf("%d variables", e.VariableCount)))
			b.WriteString(m.renderRow(i, line))
		}

	case levelVariables:
		if len(m.vars) == 0 {
			return t.FormHint.Render("No variables in this environment yet.")
		}
		for i, v := range m.vars {
			value := v.DecryptedValue
			if value == "" {
				value = "(hidden by role)"
			} else if !m.revealValues {
				value = util.MaskSecret(value)
			}
			line := fmt.Sprintf("%-28s %s", truncateCell(v.Key, 28),
				t.SecretValue.Render(truncateCell(value, 40)))
			b.WriteString(m.renderRow(i, line))
		}
	}

	return b.String()
}

func (m *dashboardModel) renderRow(i int, line string) string {
	if i == m.cursor {
		return m.theme.ListItemSelected.Render("› "+line) + "\n"
	}
	return m.theme.ListItem.Render("  "+line) + "\n"
}

func lipglossBadge(t *styles.Theme, envType string) string {
	return t.ListItem.Foreground(styles.EnvColor(envType)).Render("[" + envType + "]")
}
