// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the authenticated user's identity and credential
// pair for the lifetime of the process, and persists them across restarts.
//
// The store is the single source of truth for "who is signed in": the
// transport reads credentials from it, the route gate reads authentication
// state from it, and teardown clears it. Access and refresh credentials
// are set and cleared together; a half-set pair never exists.
package session
