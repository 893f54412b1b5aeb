// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Typed wrappers over the tenant-scoped resource endpoints. These are thin:
// authorization, refresh and error normalization all live in the request
// core; nothing here interprets business semantics.

// =============================================================================
// ORGANIZATIONS
// =============================================================================

// ListOrganizations returns every organization the identity belongs to.
func (c *Client) ListOrganizations(ctx context.Context) ([]Organization, error) {
	var orgs []Organization
	if err := c.do(ctx, http.MethodGet, "/api/core/organizations/", nil, nil, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// GetOrganization fetches one organization by id.
func (c *Client) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	var org Organization
	path := fmt.Sprintf("/api/core/organizations/%d/", id)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

type createOrganizationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateOrganization creates a new organization owned by the current user.
func (c *Client) CreateOrganization(ctx context.Context, name, description string) (*Organization, error) {
	var org Organization
	err := c.do(ctx, http.MethodPost, "/api/core/organizations/", nil,
		createOrganizationRequest{Name: name, Description: description}, &org)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// =============================================================================
// PROJECTS
// =============================================================================

// ListProjects returns the projects of one organization.
func (c *Client) ListProjects(ctx context.Context, organizationID int64) ([]Project, error) {
	query := url.Values{"organization": {strconv.FormatInt(organizationID, 10)}}
	var projects []Project
	if err := c.do(ctx, http.MethodGet, "/api/core/projects/", query, nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

type createProjectRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Organization int64  `json:"organization"`
}

// CreateProject creates a project inside an organization.
func (c *Client) CreateProject(ctx context.Context, organizationID int64, name, description string) (*Project, error) {
	var project Project
	err := c.do(ctx, http.MethodPost, "/api/core/projects/", nil,
		createProjectRequest{Name: name, Description: description, Organization: organizationID}, &project)
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// DeleteProject removes a project and everything under it.
func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/api/core/projects/%d/", id)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// =============================================================================
// ENVIRONMENTS
// =============================================================================

// ListEnvironments returns the environments of one project.
func (c *Client) ListEnvironments(ctx context.Context, projectID int64) ([]Environment, error) {
	path := fmt.Sprintf("/api/core/projects/%d/environments/", projectID)
	var envs []Environment
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &envs); err != nil {
		return nil, err
	}
	return envs, nil
}

type createEnvironmentRequest struct {
	Name            string `json:"name"`
	Project         int64  `json:"project"`
	EnvironmentType string `json:"environment_type"`
	Description     string `json:"description,omitempty"`
}

// CreateEnvironment creates an environment inside a project.
func (c *Client) CreateEnvironment(ctx context.Context, projectID int64, name, envType, description string) (*Environment, error) {
	var env Environment
	err := c.do(ctx, http.MethodPost, "/api/core/environments/", nil,
		createEnvironmentRequest{Name: name, Project: projectID, EnvironmentType: envType, Description: description}, &env)
	if err != nil {
		return nil, err
	}
	return &env, nil
}

// DeleteEnvironment removes an environment and its variables.
func (c *Client) DeleteEnvironment(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/api/core/environments/%d/", id)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// =============================================================================
// VARIABLES
// =============================================================================

// ListVariables returns the variables of one environment. Whether decrypted
// values are present depends on the caller's membership role; the server
// decides, not this client.
func (c *Client) ListVariables(ctx context.Context, environmentID int64) ([]Variable, error) {
	path := fmt.Sprintf("/api/core/environments/%d/variables/", environmentID)
	var vars []Variable
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

type upsertVariableRequest struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Environment int64  `json:"environment"`
}

// CreateVariable creates a variable; the server encrypts the value at rest.
func (c *Client) CreateVariable(ctx context.Context, environmentID int64, key, value string) (*Variable, error) {
	var variable Variable
	err := c.do(ctx, http.MethodPost, "/api/core/variables/", nil,
		upsertVariableRequest{Key: key, Value: value, Environment: environmentID}, &variable)
	if err != nil {
		return nil, err
	}
	return &variable, nil
}

// UpdateVariable replaces a variable's value.
func (c *Client) UpdateVariable(ctx context.Context, id int64, key, value string, environmentID int64) (*Variable, error) {
	var variable Variable
	path := fmt.Sprintf("/api/core/variables/%d/", id)
	err := c.do(ctx, http.MethodPut, path, nil,
		upsertVariableRequest{Key: key, Value: value, Environment: environmentID}, &variable)
	if err != nil {
		return nil, err
	}
	return &variable, nil
}

// DeleteVariable removes a variable.
func (c *Client) DeleteVariable(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/api/core/variables/%d/", id)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// =============================================================================
// AUDIT LOGS
// =============================================================================

// ListAuditLogs returns the audit trail visible to the current user.
func (c *Client) ListAuditLogs(ctx context.Context) ([]AuditLogEntry, error) {
	var entries []AuditLogEntry
	if err := c.do(ctx, http.MethodGet, "/api/core/audit-logs/", nil, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
