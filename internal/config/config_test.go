// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("KEYNEST_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Server.BaseURL, cfg.Server.BaseURL)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("KEYNEST_HOME", t.TempDir())

	cfg := Default()
	cfg.Server.BaseURL = "https://keynest.example.com"
	cfg.Server.TimeoutSecs = 10
	cfg.UI.Theme = "light"
	require.NoError(t, Save(cfg))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://keynest.example.com", loaded.Server.BaseURL)
	assert.Equal(t, 10, loaded.Server.TimeoutSecs)
	assert.Equal(t, "light", loaded.UI.Theme)
}

func TestSavedConfigHasRestrictedPermissions(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KEYNEST_HOME", dir)

	require.NoError(t, Save(Default()))

	info, err := os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KEYNEST_SERVER_URL", "https://override.example.com")
	t.Setenv("KEYNEST_TIMEOUT_SECS", "5")
	t.Setenv("KEYNEST_AUDIT", "0")
	t.Setenv("KEYNEST_THEME", "light")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "https://override.example.com", cfg.Server.BaseURL)
	assert.Equal(t, 5, cfg.Server.TimeoutSecs)
	assert.False(t, cfg.Security.AuditEnabled)
	assert.Equal(t, "light", cfg.UI.Theme)
}

func TestEnvOverrideIgnoresBadTimeout(t *testing.T) {
	t.Setenv("KEYNEST_TIMEOUT_SECS", "not-a-number")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, Default().Server.TimeoutSecs, cfg.Server.TimeoutSecs)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty url", func(c *Config) { c.Server.BaseURL = "" }},
		{"relative url", func(c *Config) { c.Server.BaseURL = "localhost:8000" }},
		{"bad scheme", func(c *Config) { c.Server.BaseURL = "ftp://example.com" }},
		{"zero timeout", func(c *Config) { c.Server.TimeoutSecs = 0 }},
		{"negative ttl", func(c *Config) { c.Cache.TTLSecs = -1 }},
		{"unknown theme", func(c *Config) { c.UI.Theme = "solarized" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KEYNEST_HOME", dir)

	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "config.toml"),
		[]byte("[server]\nbase_url = \"not a url\"\n"), 0600))

	_, err := Load()
	assert.Error(t, err)
}

func TestDirHonorsKeynestHome(t *testing.T) {
	t.Setenv("KEYNEST_HOME", "/tmp/keynest-test-home")

	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/keynest-test-home", dir)
}
