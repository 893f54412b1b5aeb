// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
)

// The authentication endpoints are credential producers: they are always
// sent bare (no bearer header) and never participate in the refresh
// protocol. A 401 from login means bad credentials, not an expired session.

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges email and password for an identity and credential pair.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	resp, body, err := c.send(ctx, http.MethodPost, "/api/auth/login/", nil, loginRequest{Email: email, Password: password}, false)
	if err != nil {
		return nil, err
	}

	var auth AuthResponse
	if err := decodeResponse(resp.StatusCode, body, &auth); err != nil {
		return nil, err
	}
	if auth.Access == "" || auth.Refresh == "" {
		// The credential pair is set together or not at all.
		return nil, fmt.Errorf("login response missing credential pair")
	}
	return &auth, nil
}

// RegisterRequest carries the fields the registration endpoint accepts.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
}

// Register creates a new account and returns the established session.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	resp, body, err := c.send(ctx, http.MethodPost, "/api/auth/register/", nil, req, false)
	if err != nil {
		return nil, err
	}

	var auth AuthResponse
	if err := decodeResponse(resp.StatusCode, body, &auth); err != nil {
		return nil, err
	}
	if auth.Access == "" || auth.Refresh == "" {
		return nil, fmt.Errorf("registration response missing credential pair")
	}
	return &auth, nil
}

type logoutRequest struct {
	Refresh string `json:"refresh"`
}

// LogoutServer notifies the backend that the refresh credential should be
// blacklisted. Best effort: a failure here must never block local session
// teardown, so the error is informational only.
func (c *Client) LogoutServer(ctx context.Context, refresh string) error {
	if refresh == "" {
		return nil
	}
	resp, body, err := c.send(ctx, http.MethodPost, "/api/auth/logout/", nil, logoutRequest{Refresh: refresh}, true)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return normalizeError(resp.StatusCode, body)
	}
	return nil
}

// Profile fetches the identity record for the current session.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/auth/profile/", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

type passwordChangeRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword updates the account password for the current session.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/change-password/", nil,
		passwordChangeRequest{OldPassword: oldPassword, NewPassword: newPassword}, nil)
}

// Status fetches the backend's self-reported service status. Anonymous.
func (c *Client) Status(ctx context.Context) (*ServiceStatus, error) {
	resp, body, err := c.send(ctx, http.MethodGet, "/api/auth/status/", nil, nil, false)
	if err != nil {
		return nil, err
	}
	var status ServiceStatus
	if err := decodeResponse(resp.StatusCode, body, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Health probes the load-balancer health endpoint. Anonymous.
func (c *Client) Health(ctx context.Context) (*ServiceStatus, error) {
	resp, body, err := c.send(ctx, http.MethodGet, "/health/", nil, nil, false)
	if err != nil {
		return nil, err
	}
	var status ServiceStatus
	if err := decodeResponse(resp.StatusCode, body, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
