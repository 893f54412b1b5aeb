// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginReturnsIdentityAndCredentialPair(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login/", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		// Login is a credential producer: it must never carry a bearer.
		assert.Empty(t, r.Header.Get("Authorization"))

		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "maya@example.com", req.Email)

		writeJSON(t, w, http.StatusOK, AuthResponse{
			User:    User{ID: 1, Username: "maya", Email: "maya@example.com"},
			Access:  "a1",
			Refresh: "r1",
		})
	}))
	defer server.Close()

	creds := &fakeCredentials{access: "stale"} // must not leak into login
	auth, err := NewClient(server.URL, creds).Login(context.Background(), "maya@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "a1", auth.Access)
	assert.Equal(t, "r1", auth.Refresh)
	assert.Equal(t, "maya", auth.User.Username)
}

func TestLoginRejectsHalfACredentialPair(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"user":   User{ID: 1},
			"access": "a1",
		})
	}))
	defer server.Close()

	_, err := NewClient(server.URL, &fakeCredentials{}).Login(context.Background(), "x@y.z", "pw")
	assert.ErrorContains(t, err, "credential pair")
}

func TestLoginBadCredentialsIsNotSessionExpiry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]string{"detail": "invalid credentials"})
	}))
	defer server.Close()

	creds := &fakeCredentials{}
	_, err := NewClient(server.URL, creds).Login(context.Background(), "x@y.z", "wrong")
	require.Error(t, err)
	// A login 401 is a validation failure, not a torn-down session.
	assert.Zero(t, creds.logoutCount())

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "invalid credentials", apiErr.Message)
}

func TestRegisterEstablishesSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/register/", r.URL.Path)
		var req RegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "maya", req.Username)

		writeJSON(t, w, http.StatusCreated, AuthResponse{
			User:    User{ID: 2, Username: req.Username},
			Access:  "a1",
			Refresh: "r1",
		})
	}))
	defer server.Close()

	auth, err := NewClient(server.URL, &fakeCredentials{}).Register(context.Background(), RegisterRequest{
		Username:        "maya",
		Email:           "maya@example.com",
		Password:        "hunter22",
		ConfirmPassword: "hunter22",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), auth.User.ID)
}

func TestLogoutServerSendsRefreshForBlacklisting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/logout/", r.URL.Path)
		var req struct {
			Refresh string `json:"refresh"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "r1", req.Refresh)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := NewClient(server.URL, &fakeCredentials{access: "a1"}).
		LogoutServer(context.Background(), "r1")
	assert.NoError(t, err)
}

func TestLogoutServerWithoutRefreshIsANoOp(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	err := NewClient(server.URL, &fakeCredentials{}).LogoutServer(context.Background(), "")
	assert.NoError(t, err)
	assert.Zero(t, calls)
}

func TestHealthIsAnonymous(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health/", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(t, w, http.StatusOK, ServiceStatus{Status: "healthy"})
	}))
	defer server.Close()

	status, err := NewClient(server.URL, &fakeCredentials{access: "a1"}).
		Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
}
