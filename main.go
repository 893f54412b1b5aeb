// KeyNest TUI - a terminal client for the KeyNest secrets manager.
//
// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/keynest/keynest-tui/internal/api"
	"github.com/keynest/keynest-tui/internal/audit"
	"github.com/keynest/keynest-tui/internal/cache"
	"github.com/keynest/keynest-tui/internal/cli"
	"github.com/keynest/keynest-tui/internal/config"
	"github.com/keynest/keynest-tui/internal/session"
	"github.com/keynest/keynest-tui/internal/tenant"
	"github.com/keynest/keynest-tui/internal/ui"
	"github.com/keynest/keynest-tui/internal/vault"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdVersion:
		fmt.Printf("keynest %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		return
	case cli.CmdHelp:
		fmt.Print(cli.Usage())
		return
	}

	app, cleanup, err := buildApp(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	switch cmd {
	case cli.CmdTUI:
		runTUI(app)
	case cli.CmdLogin:
		exitOnError(cli.HandleLogin(app, args))
	case cli.CmdLogout:
		exitOnError(cli.HandleLogout(app, args))
	case cli.CmdWhoami:
		exitOnError(cli.HandleWhoami(app, args))
	case cli.CmdStatus:
		exitOnError(cli.HandleStatus(app, args))
	case cli.CmdOrgs:
		exitOnError(cli.HandleOrgs(app, args))
	case cli.CmdProjects:
		exitOnError(cli.HandleProjects(app, args))
	case cli.CmdEnvs:
		exitOnError(cli.HandleEnvs(app, args))
	case cli.CmdVars:
		exitOnError(cli.HandleVars(app, args))
	case cli.CmdAudit:
		exitOnError(cli.HandleAudit(app, args))
	case cli.CmdConfig:
		exitOnError(cli.HandleConfig(app, args))
	default:
		fmt.Print(cli.Usage())
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildApp assembles the client-side stores every command runs on.
// Degradations (unavailable cache, unwritable audit trail) are reported
// but never fatal.
func buildApp(args cli.Args) (*cli.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if args.Server != "" {
		cfg.Server.BaseURL = args.Server
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	config.SetGlobal(cfg)

	dir, err := config.Dir()
	if err != nil {
		return nil, nil, err
	}

	// Credentials live sealed on disk; the sealing key sits beside them
	// in the platform keystore.
	v := vault.New(vault.NewKeyStore(filepath.Join(dir, "keynest.key")))
	sessionStore := session.NewStore(session.NewFilePersistence(dir, v))
	tenantStore := tenant.NewStore(dir)

	// A tenant selection only exists inside a session: wipe it on every
	// logged-out transition, including revocations detected by the
	// transport that never pass through an explicit sign-out command.
	tenant.ClearOnLogout(sessionStore, tenantStore)

	var listingCache *cache.Cache
	if cfg.Cache.Enabled {
		listingCache, err = cache.Open(filepath.Join(dir, "cache.db"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: listing cache unavailable: %v\n", err)
		} else {
			listingCache = listingCache.WithTTL(time.Duration(cfg.Cache.TTLSecs) * time.Second)
		}
	}

	var trail *audit.Trail
	if cfg.Security.AuditEnabled {
		auditPath := cfg.Security.AuditLogPath
		if auditPath == "" {
			auditPath = filepath.Join(dir, "audit.log")
		}
		trail, err = audit.NewTrail(auditPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: audit trail unavailable: %v\n", err)
			trail = nil
		}
	}

	client := api.NewClient(cfg.Server.BaseURL, sessionStore).
		WithTimeout(time.Duration(cfg.Server.TimeoutSecs) * time.Second)
	if trail != nil {
		client = client.
			WithSessionExpiredHandler(func() {
				trail.RecordSessionExpired()
			}).
			WithRefreshObserver(func(err error) {
				trail.RecordRefresh(err)
			})
	}

	app := &cli.App{
		Config:  cfg,
		Client:  client,
		Session: sessionStore,
		Tenants: tenantStore,
		Cache:   listingCache,
		Trail:   trail,
	}
	cleanup := func() {
		if listingCache != nil {
			listingCache.Close()
		}
		if trail != nil {
			trail.Close()
		}
	}
	return app, cleanup, nil
}

func runTUI(app *cli.App) {
	// Pick up config edits made while the TUI is running. Server and
	// cache changes still need a restart; the reload keeps the global
	// in sync for the next screen build.
	watcher, err := config.NewWatcher(nil)
	if err == nil {
		if err := watcher.Watch(); err == nil {
			defer watcher.Close()
		}
	}

	model := ui.NewModel(&ui.App{
		Client:  app.Client,
		Session: app.Session,
		Tenants: app.Tenants,
		Cache:   app.Cache,
		Trail:   app.Trail,
	})

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
