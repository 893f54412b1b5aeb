// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for the
// KeyNest client.
//
// Configuration is TOML with sensible defaults and environment variable
// overrides. File location: ~/.keynest/config.toml (or $KEYNEST_HOME/config.toml).
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/keynest/keynest-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete client configuration.
type Config struct {
	Version string `toml:"version"`

	// Server configuration
	Server ServerConfig `toml:"server"`

	// Security configuration
	Security SecurityConfig `toml:"security"`

	// Cache configuration
	Cache CacheConfig `toml:"cache"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// ServerConfig describes the KeyNest backend to talk to.
type ServerConfig struct {
	// BaseURL is the root of the KeyNest API (no trailing slash)
	BaseURL string `toml:"base_url"`
	// TimeoutSecs is the per-request timeout in seconds
	TimeoutSecs int `toml:"timeout_secs"`
}

// SecurityConfig contains security-related configuration.
type SecurityConfig struct {
	// AuditEnabled enables the local audit trail
	AuditEnabled bool `toml:"audit_enabled"`
	// AuditLogPath overrides the audit trail location (empty = ~/.keynest/audit.log)
	AuditLogPath string `toml:"audit_log_path"`
}

// CacheConfig controls the listing cache.
type CacheConfig struct {
	// Enabled toggles the on-disk listing cache
	Enabled bool `toml:"enabled"`
	// TTLSecs is how long a cached listing stays fresh
	TTLSecs int `toml:"ttl_secs"`
}

// UIConfig contains TUI configuration.
type UIConfig struct {
	// Theme is the color theme name: "dark" or "light"
	Theme string `toml:"theme"`
	// MaskValues hides variable values until explicitly revealed
	MaskValues bool `toml:"mask_values"`
}

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			BaseURL:     "http://localhost:8000",
			TimeoutSecs: 30,
		},
		Security: SecurityConfig{
			AuditEnabled: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTLSecs: 300,
		},
		UI: UIConfig{
			Theme:      "dark",
			MaskValues: true,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns the KeyNest home directory, normally ~/.keynest.
// KEYNEST_HOME overrides it, which tests and scripted use rely on.
func Dir() (string, error) {
	if dir := os.Getenv("KEYNEST_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".keynest"), nil
}

// Path returns the path to the config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config file, falling back to defaults when it is absent.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	path, err := Path()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFile decodes a TOML config file over cfg.
// SECURITY: Fixes file permissions on load; the file may hold a private URL.
func LoadFile(cfg *Config, path string) error {
	if info, err := os.Stat(path); err == nil && info.Mode().Perm() != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not fix permissions on %s: %v\n", path, err)
		}
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode config file: %w", err)
	}
	return nil
}

// Save writes cfg to the config file atomically.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString("# KeyNest client configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// =============================================================================
// OVERRIDES & VALIDATION
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - KEYNEST_SERVER_URL: overrides server.base_url
//   - KEYNEST_TIMEOUT_SECS: overrides server.timeout_secs
//   - KEYNEST_AUDIT: "0"/"false" disables the audit trail
//   - KEYNEST_CACHE: "0"/"false" disables the listing cache
//   - KEYNEST_THEME: overrides ui.theme
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("KEYNEST_SERVER_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("KEYNEST_TIMEOUT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Server.TimeoutSecs = secs
		}
	}
	if v := os.Getenv("KEYNEST_AUDIT"); v != "" {
		c.Security.AuditEnabled = v != "0" && v != "false"
	}
	if v := os.Getenv("KEYNEST_CACHE"); v != "" {
		c.Cache.Enabled = v != "0" && v != "false"
	}
	if v := os.Getenv("KEYNEST_THEME"); v != "" {
		c.UI.Theme = v
	}
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.base_url %q is not a valid URL", c.Server.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url scheme must be http or https, got %q", u.Scheme)
	}
	if c.Server.TimeoutSecs <= 0 {
		return fmt.Errorf("server.timeout_secs must be positive, got %d", c.Server.TimeoutSecs)
	}
	if c.Cache.TTLSecs < 0 {
		return fmt.Errorf("cache.ttl_secs must not be negative, got %d", c.Cache.TTLSecs)
	}
	switch c.UI.Theme {
	case "dark", "light":
	default:
		return fmt.Errorf("ui.theme must be \"dark\" or \"light\", got %q", c.UI.Theme)
	}
	return nil
}

// =============================================================================
// GLOBAL CONFIG
// =============================================================================

var (
	globalMu     sync.RWMutex
	globalConfig *Config
)

// Global returns the process-wide config, loading it on first use.
func Global() *Config {
	globalMu.RLock()
	if globalConfig != nil {
		defer globalMu.RUnlock()
		return globalConfig
	}
	globalMu.RUnlock()

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
		}
		globalConfig = cfg
	}
	return globalConfig
}

// SetGlobal replaces the process-wide config. Tests use this.
func SetGlobal(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}

// ReloadGlobal re-reads the config file into the global config.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}
