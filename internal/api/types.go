// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"time"
)

// User is the identity record returned by the authentication endpoints.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// Name returns the best human-readable name for the user.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.FirstName != "" || u.LastName != "" {
		if u.FirstName == "" {
			return u.LastName
		}
		if u.LastName == "" {
			return u.FirstName
		}
		return u.FirstName + " " + u.LastName
	}
	return u.Username
}

// AuthResponse is the payload returned by login and registration.
type AuthResponse struct {
	User    User   `json:"user"`
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Organization is one tenant the signed-in user belongs to.
//
// MemberCount, ProjectCount and UserRole are server-computed projections of
// the membership table; they are read-only on the client.
type Organization struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	MemberCount  int       `json:"member_count"`
	ProjectCount int       `json:"project_count"`
	UserRole     string    `json:"user_role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Membership roles, as defined by the backend.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Project groups environments inside an organization.
type Project struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	Organization     int64     `json:"organization"`
	OrganizationName string    `json:"organization_name,omitempty"`
	EnvironmentCount int       `json:"environment_count"`
	CreatedByName    string    `json:"created_by_name,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Environment types, as defined by the backend.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

// Environment is a named variable namespace inside a project.
type Environment struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Project         int64     `json:"project"`
	ProjectName     string    `json:"project_name,omitempty"`
	EnvironmentType string    `json:"environment_type"`
	Description     string    `json:"description,omitempty"`
	VariableCount   int       `json:"variable_count"`
	CreatedByName   string    `json:"created_by_name,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Variable is one key/value pair in an environment. The server stores the
// value encrypted; DecryptedValue is only populated for roles allowed to
// read it and is never written to disk by this client.
type Variable struct {
	ID             int64     `json:"id"`
	Key            string    `json:"key"`
	DecryptedValue string    `json:"decrypted_value,omitempty"`
	Environment    int64     `json:"environment"`
	CreatedByName  string    `json:"created_by_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AuditLogEntry is one read-only audit trail record.
type AuditLogEntry struct {
	ID         int64           `json:"id"`
	UserName   string          `json:"user_name,omitempty"`
	UserEmail  string          `json:"user_email,omitempty"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   string          `json:"target_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	IPAddress  string          `json:"ip_address,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ServiceStatus is the backend's self-reported health.
type ServiceStatus struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
	Version string `json:"version,omitempty"`
}
