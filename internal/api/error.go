// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the failure classes callers branch on.
var (
	// ErrSessionExpired indicates the session could not be recovered: the
	// refresh protocol failed, no refresh credential was available, or the
	// retried call was rejected again. The local session has already been
	// torn down when this is returned.
	ErrSessionExpired = errors.New("session expired")

	// ErrForbidden indicates the authenticated user lacks the role required
	// for the operation (membership role below editor/admin).
	ErrForbidden = errors.New("permission denied")

	// ErrNotFound indicates the requested resource does not exist or is not
	// visible to the current tenant.
	ErrNotFound = errors.New("not found")
)

// Error is the normalized shape for every failure this layer reports:
// non-2xx backend responses and transport-level failures alike. Status is
// the HTTP status, or 0 when no response was received. Payload carries the
// raw response body so callers that understand field-level validation
// errors can inspect it; this layer never does.
type Error struct {
	Message string
	Status  int
	Payload json.RawMessage

	// sentinel is the wrapped classification (or underlying transport
	// error) so errors.Is works.
	sentinel error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("keynest api error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("keynest api error: %s", e.Message)
}

// Unwrap exposes the sentinel classification, if any.
func (e *Error) Unwrap() error { return e.sentinel }

// transportError wraps a failure that never produced an HTTP status
// (connection refused, DNS failure, timeout) in the same normalized shape
// callers branch on. Status stays 0 to mark the class, and the underlying
// error is preserved for errors.Is (context.DeadlineExceeded and friends).
func transportError(err error) *Error {
	return &Error{
		Message:  err.Error(),
		Status:   0,
		sentinel: err,
	}
}

// errorBody matches the common DRF error envelopes: {"detail": ...},
// {"error": ...} and {"message": ...}.
type errorBody struct {
	Detail  string `json:"detail"`
	ErrMsg  string `json:"error"`
	Message string `json:"message"`
}

// normalizeError converts a non-2xx response into *Error. The body is kept
// verbatim in Payload; Message is a best-effort human-readable summary.
func normalizeError(status int, body []byte) *Error {
	apiErr := &Error{
		Status:  status,
		Payload: json.RawMessage(body),
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		switch {
		case eb.Detail != "":
			apiErr.Message = eb.Detail
		case eb.ErrMsg != "":
			apiErr.Message = eb.ErrMsg
		case eb.Message != "":
			apiErr.Message = eb.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}

	switch status {
	case http.StatusUnauthorized:
		apiErr.sentinel = ErrSessionExpired
	case http.StatusForbidden:
		apiErr.sentinel = ErrForbidden
	case http.StatusNotFound:
		apiErr.sentinel = ErrNotFound
	}

	return apiErr
}
