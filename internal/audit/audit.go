// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audit records a local trail of session and tenant events.
//
// The server keeps the authoritative audit log; this one exists so a user
// can answer "when did this machine last sign in, refresh, or switch
// organizations" without a round trip. Events are JSON lines, append-only,
// rotated by size. Credential values never appear in events.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// EVENTS
// =============================================================================

// Event types recorded by the client.
const (
	EventSignIn       = "sign_in"
	EventSignOut      = "sign_out"
	EventRefresh      = "credential_refresh"
	EventSessionLost  = "session_expired"
	EventTenantSwitch = "tenant_switch"
)

// DefaultMaxFileSize is the rotation threshold (5MB).
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

// Event is a single trail entry.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Username  string            `json:"username,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// =============================================================================
// TRAIL
// =============================================================================

// Trail is a thread-safe append-only event log.
type Trail struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	maxSize int64
	enabled bool
}

// NewTrail opens (or creates) the trail file at path.
func NewTrail(path string) (*Trail, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit trail: %w", err)
	}
	return &Trail{
		path:    path,
		file:    file,
		maxSize: DefaultMaxFileSize,
		enabled: true,
	}, nil
}

// Path returns the trail file location.
func (t *Trail) Path() string {
	return t.path
}

// SetEnabled toggles recording. Disabled trails drop events silently.
func (t *Trail) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// Record appends one event. The timestamp is stamped here if unset.
func (t *Trail) Record(event Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.enabled {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	if _, err := t.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}

	return t.rotateLocked()
}

// rotateLocked swaps the file out once it passes maxSize. One rotated
// generation is kept (audit.log.1).
func (t *Trail) rotateLocked() error {
	info, err := t.file.Stat()
	if err != nil || info.Size() < t.maxSize {
		return nil
	}

	if err := t.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit trail for rotation: %w", err)
	}
	if err := os.Rename(t.path, t.path+".1"); err != nil {
		return fmt.Errorf("failed to rotate audit trail: %w", err)
	}
	file, err := os.OpenFile(t.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to reopen audit trail: %w", err)
	}
	t.file = file
	return nil
}

// Close flushes and closes the trail.
func (t *Trail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}

// =============================================================================
// EVENT HELPERS
// =============================================================================

// RecordSignIn records a sign-in attempt.
func (t *Trail) RecordSignIn(username string, err error) error {
	return t.Record(Event{
		EventType: EventSignIn,
		Username:  username,
		Success:   err == nil,
		Error:     errString(err),
	})
}

// RecordSignOut records a local session teardown.
func (t *Trail) RecordSignOut(username string) error {
	return t.Record(Event{EventType: EventSignOut, Username: username, Success: true})
}

// RecordRefresh records a credential refresh attempt.
func (t *Trail) RecordRefresh(err error) error {
	return t.Record(Event{
		EventType: EventRefresh,
		Success:   err == nil,
		Error:     errString(err),
	})
}

// RecordSessionExpired records an unrecoverable refresh failure.
func (t *Trail) RecordSessionExpired() error {
	return t.Record(Event{EventType: EventSessionLost, Success: false})
}

// RecordTenantSwitch records an organization change.
func (t *Trail) RecordTenantSwitch(fromOrg, toOrg string) error {
	return t.Record(Event{
		EventType: EventTenantSwitch,
		Success:   true,
		Metadata:  map[string]string{"from": fromOrg, "to": toOrg},
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
