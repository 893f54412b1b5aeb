// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/keynest/keynest-tui/internal/ui/styles"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// statusBarData is everything the bar displays.
type statusBarData struct {
	tenant string
	user   string
	hint   string
	errMsg string
}

// renderStatusBar draws a single-line bar: tenant badge, user, and either
// an error or the key hints, truncated to fit the terminal width.
func renderStatusBar(t *styles.Theme, width int, data statusBarData) string {
	if width <= 0 {
		width = 80
	}

	left := ""
	if data.tenant != "" {
		left = t.StatusTenant.Render(" " + truncateCell(data.tenant, 24) + " ")
	}
	if data.user != "" {
		left += t.StatusUser.Render(" " + truncateCell(data.user, 20))
	}

	right := data.hint
	rightStyle := t.ShortcutDesc
	if data.errMsg != "" {
		right = truncateCell(data.errMsg, width/2)
		rightStyle = t.StatusError
	}

	gap := width - lipgloss.Width(left) - runewidth.StringWidth(right) - 2
	if gap < 1 {
		gap = 1
	}

	return t.StatusBar.Width(width).Render(
		left + strings.Repeat(" ", gap) + rightStyle.Render(right))
}

// truncateCell trims by display width, not rune count, so wide glyphs
// don't push the bar past the terminal edge.
func truncateCell(s string, maxWidth int) string {
	return runewidth.Truncate(s, maxWidth, "…")
}
