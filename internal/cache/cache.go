// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache provides an on-disk cache for listing responses.
//
// Every entry is tagged with the organization it belongs to, so a tenant
// switch can drop exactly the data that must not survive the switch.
// Entries also expire on their own; the cache only smooths over screen
// transitions, the server stays authoritative.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// LISTING CACHE
// =============================================================================

// Listing kinds. Scope is the parent object the listing hangs off:
// organization id for projects, project id for environments, environment
// id for variables.
const (
	KindProjects     = "projects"
	KindEnvironments = "environments"
	KindVariables    = "variables"
	KindAuditLogs    = "audit_logs"
)

// DefaultTTL is how long an entry is served before it counts as a miss.
const DefaultTTL = 5 * time.Minute

const schema = `
CREATE TABLE IF NOT EXISTS listings (
	org_id     INTEGER NOT NULL,
	kind       TEXT    NOT NULL,
	scope_id   INTEGER NOT NULL,
	payload    TEXT    NOT NULL,
	fetched_at INTEGER NOT NULL,
	PRIMARY KEY (org_id, kind, scope_id)
);
CREATE INDEX IF NOT EXISTS idx_listings_org ON listings(org_id);
`

// Cache is a SQLite-backed listing cache.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
}

// Open opens (or creates) the cache database at path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &Cache{db: db, ttl: DefaultTTL}, nil
}

// WithTTL overrides the entry lifetime. Returns the cache for chaining.
func (c *Cache) WithTTL(ttl time.Duration) *Cache {
	c.ttl = ttl
	return c
}

// Put stores a listing for (orgID, kind, scopeID), replacing any previous
// entry.
func (c *Cache) Put(orgID int64, kind string, scopeID int64, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO listings (org_id, kind, scope_id, payload, fetched_at)
		 VALUES (?, ?, ?, ?, ?)`,
		orgID, kind, scopeID, string(payload), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Get loads a listing into out. Returns false on a miss (absent or
// expired entry); out is untouched in that case.
func (c *Cache) Get(orgID int64, kind string, scopeID int64, out any) (bool, error) {
	var payload string
	var fetchedAt int64
	err := c.db.QueryRow(
		`SELECT payload, fetched_at FROM listings
		 WHERE org_id = ? AND kind = ? AND scope_id = ?`,
		orgID, kind, scopeID,
	).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if time.Since(time.Unix(fetchedAt, 0)) > c.ttl {
		return false, nil
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		// A corrupt entry is a miss, not an error; the next Put heals it.
		return false, nil
	}
	return true, nil
}

// InvalidateOrganization drops every entry tagged with orgID.
func (c *Cache) InvalidateOrganization(orgID int64) error {
	if _, err := c.db.Exec(`DELETE FROM listings WHERE org_id = ?`, orgID); err != nil {
		return fmt.Errorf("failed to invalidate cache entries: %w", err)
	}
	return nil
}

// Clear drops every entry. Called on tenant switch and sign-out.
func (c *Cache) Clear() error {
	if _, err := c.db.Exec(`DELETE FROM listings`); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
