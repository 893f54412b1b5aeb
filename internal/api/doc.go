// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the authenticated HTTP client for the KeyNest
// backend.
//
// All data access in the application goes through a single Client. The
// client attaches the current access credential to every outbound request,
// and owns the credential refresh protocol: a 401 response triggers at most
// one refresh-and-retry cycle per original call, after which the failure is
// terminal for the session. Every non-2xx response is normalized to *Error
// so callers never parse HTTP bodies themselves.
package api
