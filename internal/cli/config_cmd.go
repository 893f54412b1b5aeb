// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration inspection and mutation.
//
// Command: config [show|set <key> <value>|path]
//
// Settable keys:
//   server.url        Server base URL
//   server.timeout    Per-request timeout in seconds
//   audit.enabled     Local audit trail on/off
//   cache.enabled     Listing cache on/off
//   cache.ttl         Listing cache TTL in seconds
//   ui.theme          dark or light
//   ui.mask           Mask variable values by default
//
// Examples:
//   keynest config                 Show effective configuration
//   keynest config set server.url https://keynest.example.com
//   keynest config set ui.theme light
//   keynest config path            Print the config file location
package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/keynest/keynest-tui/internal/config"
)

// HandleConfig shows or mutates the configuration file.
func HandleConfig(app *App, args Args) error {
	switch args.Subcommand {
	case "", "show":
		return configShow(app, args)
	case "set":
		return configSet(args)
	case "path":
		path, err := config.Path()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	default:
		return fmt.Errorf("unknown config subcommand: %q (try show, set, path)", args.Subcommand)
	}
}

func configShow(app *App, args Args) error {
	cfg := app.Config

	if args.JSON {
		return outputJSON(map[string]any{
			"server.url":     cfg.Server.BaseURL,
			"server.timeout": cfg.Server.TimeoutSecs,
			"audit.enabled":  cfg.Security.AuditEnabled,
			"cache.enabled":  cfg.Cache.Enabled,
			"cache.ttl":      cfg.Cache.TTLSecs,
			"ui.theme":       cfg.UI.Theme,
			"ui.mask":        cfg.UI.MaskValues,
		})
	}

	fmt.Println(cliTitleStyle.Render("Configuration"))
	printKV("server.url", cfg.Server.BaseURL)
	printKV("server.timeout", fmt.Sprintf("%ds", cfg.Server.TimeoutSecs))
	printKV("audit.enabled", strconv.FormatBool(cfg.Security.AuditEnabled))
	printKV("cache.enabled", strconv.FormatBool(cfg.Cache.Enabled))
	printKV("cache.ttl", fmt.Sprintf("%ds", cfg.Cache.TTLSecs))
	printKV("ui.theme", cfg.UI.Theme)
	printKV("ui.mask", strconv.FormatBool(cfg.UI.MaskValues))
	return nil
}

func configSet(args Args) error {
	if args.ConfigKey == "" {
		return fmt.Errorf("usage: keynest config set <key> <value>")
	}

	// Mutate the file contents, not the effective config: environment
	// overrides must not be written back.
	cfg := config.Default()
	path, err := config.Path()
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		if err := config.LoadFile(cfg, path); err != nil {
			return err
		}
	}

	if err := applyConfigKey(cfg, args.ConfigKey, args.ConfigVal); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return err
	}

	if !args.Quiet {
		fmt.Println(cliOkStyle.Render(fmt.Sprintf("Set %s = %s", args.ConfigKey, args.ConfigVal)))
	}
	return nil
}

func applyConfigKey(cfg *config.Config, key, value string) error {
	switch key {
	case "server.url":
		cfg.Server.BaseURL = value
	case "server.timeout":
		secs, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("server.timeout must be a number of seconds")
		}
		cfg.Server.TimeoutSecs = secs
	case "audit.enabled":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("audit.enabled must be true or false")
		}
		cfg.Security.AuditEnabled = enabled
	case "cache.enabled":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cache.enabled must be true or false")
		}
		cfg.Cache.Enabled = enabled
	case "cache.ttl":
		secs, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("cache.ttl must be a number of seconds")
		}
		cfg.Cache.TTLSecs = secs
	case "ui.theme":
		cfg.UI.Theme = value
	case "ui.mask":
		mask, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("ui.mask must be true or false")
		}
		cfg.UI.MaskValues = mask
	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return nil
}
