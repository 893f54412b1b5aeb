// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/keynest/keynest-tui/internal/api"
	"github.com/keynest/keynest-tui/internal/ui/styles"
)

// =============================================================================
// LOGIN SCREEN
// =============================================================================

// loginResultMsg carries the outcome of a sign-in attempt.
type loginResultMsg struct {
	auth *api.AuthResponse
	err  error
}

type loginModel struct {
	app   *App
	theme *styles.Theme
	width int

	email      textinput.Model
	password   textinput.Model
	focusIndex int
	submitting bool
	errMsg     string
}

func newLoginModel(app *App, theme *styles.Theme, width int) *loginModel {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 254
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128

	return &loginModel{
		app:      app,
		theme:    theme,
		width:    width,
		email:    email,
		password: password,
	}
}

func (m *loginModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *loginModel) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return nil

	case loginResultMsg:
		m.submitting = false
		if msg.err != nil {
			m.errMsg = signInErrorText(msg.err)
			return nil
		}
		// One atomic install: the store notification that flips the gate
		// already carries the identity and the complete credential pair.
		m.app.Session.SetAuthenticated(&msg.auth.User, msg.auth.Access, msg.auth.Refresh)
		if m.app.Trail != nil {
			_ = m.app.Trail.RecordSignIn(msg.auth.User.Username, nil)
		}
		return nil

	case tea.KeyMsg:
		if m.submitting {
			return nil
		}
		switch msg.String() {
		case "tab", "shift+tab", "up", "down":
			m.cycleFocus(msg.String() == "shift+tab" || msg.String() == "up")
			return nil
		case "enter":
			if m.focusIndex == 0 {
				m.cycleFocus(false)
				return nil
			}
			return m.submit()
		case "ctrl+r":
			return func() tea.Msg { return navigateMsg{route: RouteRegister} }
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.email, cmd = m.email.Update(msg)
	cmds = append(cmds, cmd)
	m.password, cmd = m.password.Update(msg)
	cmds = append(cmds, cmd)
	return tea.Batch(cmds...)
}

func (m *loginModel) cycleFocus(backwards bool) {
	m.focusIndex = (m.focusIndex + 1) % 2
	_ = backwards // two fields: forward and backward are the same hop
	if m.focusIndex == 0 {
		m.email.Focus()
		m.password.Blur()
	} else {
		m.email.Blur()
		m.password.Focus()
	}
}

func (m *loginModel) submit() tea.Cmd {
	email := strings.TrimSpace(m.email.Value())
	password := m.password.Value()
	if email == "" || password == "" {
		m.errMsg = "Email and password are required."
		return nil
	}

	m.submitting = true
	m.errMsg = ""
	app := m.app
	return func() tea.Msg {
		auth, err := app.Client.Login(context.Background(), email, password)
		return loginResultMsg{auth: auth, err: err}
	}
}

// signInErrorText maps transport errors to something worth showing.
func signInErrorText(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Status == 401 {
		return "Invalid email or password."
	}
	return "Sign-in failed: " + err.Error()
}

func (m *loginModel) View() string {
	t := m.theme
	var b strings.Builder

	b.WriteString(t.HeaderTitle.Render("KeyNest"))
	b.WriteString("  ")
	b.WriteString(t.HeaderSubtitle.Render("Sign in to your workspace"))
	b.WriteString("\n\n")

	b.WriteString(t.FormLabel.Render("Email"))
	b.WriteString("\n")
	b.WriteString(m.email.View())
	b.WriteString("\n\n")
	b.WriteString(t.FormLabel.Render("Password"))
	b.WriteString("\n")
	b.WriteString(m.password.View())
	b.WriteString("\n\n")

	if m.submitting {
		b.WriteString(t.LoadingText.Render("Signing in..."))
	} else if m.errMsg != "" {
		b.WriteString(t.FormError.Render(m.errMsg))
	} else {
		b.WriteString(t.FormHint.Render("enter: sign in  •  ctrl+r: create account  •  ctrl+c: quit"))
	}
	b.WriteString("\n")

	return t.FormBox.Render(b.String())
}
