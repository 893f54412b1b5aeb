// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package tenant

import (
	"log"

	"github.com/keynest/keynest-tui/internal/api"
)

// =============================================================================
// TENANT SWITCH CONTROLLER
// =============================================================================

// Navigator performs the forced jump to the landing screen after a
// switch. In the TUI this rebuilds the dashboard model from scratch so no
// widget keeps state built against the previous organization.
type Navigator interface {
	NavigateHome()
}

// Invalidator drops cached tenant-scoped data. Implemented by the
// listing cache.
type Invalidator interface {
	InvalidateOrganization(orgID int64) error
	Clear() error
}

// Switcher applies user-initiated organization changes.
//
// A switch is deliberately heavy-handed: it wipes the cached listings and
// unconditionally navigates home. Re-rendering in place is not enough;
// any view or cache entry built against the previous organization's
// identifiers must be gone before the new organization's data loads.
type Switcher struct {
	store     *Store
	cache     Invalidator
	navigator Navigator
}

// NewSwitcher wires the switch controller to its store, cache and
// navigator. cache may be nil when no listing cache is in use.
func NewSwitcher(store *Store, cache Invalidator, navigator Navigator) *Switcher {
	return &Switcher{store: store, cache: cache, navigator: navigator}
}

// Switch makes org the active organization. Selecting the organization
// that is already active is a no-op: nothing is invalidated and no
// navigation happens.
//
// For a real change the order is fixed: record the selection, drop cached
// listings, then navigate home exactly once. Cache errors are logged but
// do not cancel the navigation; showing an empty screen beats showing the
// previous organization's data.
func (s *Switcher) Switch(org api.Organization) {
	if cur := s.store.Current(); cur != nil && cur.ID == org.ID {
		return
	}

	s.store.SetCurrent(org)

	if s.cache != nil {
		if err := s.cache.Clear(); err != nil {
			log.Printf("tenant: failed to clear listing cache on switch: %v", err)
		}
	}

	s.navigator.NavigateHome()
}
