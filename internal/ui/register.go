// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/keynest/keynest-tui/internal/api"
	"github.com/keynest/keynest-tui/internal/ui/styles"
)

// =============================================================================
// REGISTER SCREEN
// =============================================================================

type registerResultMsg struct {
	auth *api.AuthResponse
	err  error
}

const (
	regFieldUsername = iota
	regFieldEmail
	regFieldPassword
	regFieldConfirm
	regFieldCount
)

type registerModel struct {
	app   *App
	theme *styles.Theme
	width int

	inputs     []textinput.Model
	focusIndex int
	submitting bool
	errMsg     string
}

func newRegisterModel(app *App, theme *styles.Theme, width int) *registerModel {
	inputs := make([]textinput.Model, regFieldCount)
	for i := range inputs {
		inputs[i] = textinput.New()
		inputs[i].CharLimit = 128
	}
	inputs[regFieldUsername].Placeholder = "username"
	inputs[regFieldEmail].Placeholder = "you@example.com"
	inputs[regFieldEmail].CharLimit = 254
	inputs[regFieldPassword].Placeholder = "password"
	inputs[regFieldPassword].EchoMode = textinput.EchoPassword
	inputs[regFieldPassword].EchoCharacter = '•'
	inputs[regFieldConfirm].Placeholder = "confirm password"
	inputs[regFieldConfirm].EchoMode = textinput.EchoPassword
	inputs[regFieldConfirm].EchoCharacter = '•'
	inputs[regFieldUsername].Focus()

	return &registerModel{
		app:    app,
		theme:  theme,
		width:  width,
		inputs: inputs,
	}
}

func (m *registerModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *registerModel) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return nil

	case registerResultMsg:
		m.submitting = false
		if msg.err != nil {
			m.errMsg = "Registration failed: " + msg.err.Error()
			return nil
		}
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
		case "tab", "down":
			m.setFocus((m.focusIndex + 1) % regFieldCount)
			return nil
		case "shift+tab", "up":
			m.setFocus((m.focusIndex - 1 + regFieldCount) % regFieldCount)
			return nil
		case "enter":
			if m.focusIndex < regFieldConfirm {
				m.setFocus(m.focusIndex + 1)
				return nil
			}
			return m.submit()
		case "esc":
			return func() tea.Msg { return navigateMsg{route: RouteLogin} }
		}
	}

	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
	}
	return tea.Batch(cmds...)
}

func (m *registerModel) setFocus(index int) {
	m.focusIndex = index
	for i := range m.inputs {
		if i == index {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

func (m *registerModel) submit() tea.Cmd {
	req := api.RegisterRequest{
		Username:        strings.TrimSpace(m.inputs[regFieldUsername].Value()),
		Email:           strings.TrimSpace(m.inputs[regFieldEmail].Value()),
		Password:        m.inputs[regFieldPassword].Value(),
		ConfirmPassword: m.inputs[regFieldConfirm].Value(),
	}

	switch {
	case req.Username == "" || req.Email == "" || req.Password == "":
		m.errMsg = "Username, email and password are required."
		return nil
	case req.Password != req.ConfirmPassword:
		m.errMsg = "Passwords do not match."
		return nil
	case len(req.Password) < 8:
		m.errMsg = "Password must be at least 8 characters."
		return nil
	}

	m.submitting = true
	m.errMsg = ""
	app := m.app
	return func() tea.Msg {
		auth, err := app.Client.Register(context.Background(), req)
		return registerResultMsg{auth: auth, err: err}
	}
}

func (m *registerModel) View() string {
	t := m.theme
	labels := []string{"Username", "Email", "Password", "Confirm password"}

	var b strings.Builder
	b.WriteString(t.HeaderTitle.Render("KeyNest"))
	b.WriteString("  ")
	b.WriteString(t.HeaderSubtitle.Render("Create your account"))
	b.WriteString("\n\n")

	for i, input := range m.inputs {
		b.WriteString(t.FormLabel.Render(labels[i]))
		b.WriteString("\n")
		b.WriteString(input.View())
		b.WriteString("\n\n")
	}

	if m.submitting {
		b.WriteString(t.LoadingText.Render("Creating account..."))
	} else if m.errMsg != "" {
		b.WriteString(t.FormError.Render(m.errMsg))
	} else {
		b.WriteString(t.FormHint.Render("enter: create account  •  esc: back to sign-in"))
	}
	b.WriteString("\n")

	return t.FormBox.Render(b.String())
}
