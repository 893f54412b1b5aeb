// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tenant tracks which organization's data the user is viewing.
//
// A user can belong to several organizations but works in exactly one at
// a time. The store keeps that selection (persisted across restarts), and
// the switcher guarantees a user-initiated change can never leave data
// from the previous organization on screen: it drops cached listings and
// forces a jump back to the landing screen.
package tenant
