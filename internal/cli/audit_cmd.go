// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// audit_cmd.go - Audit trail commands.
//
// Command: audit [server|local]
//
// Subcommands:
//   server (default)    Server-side audit log for the active organization
//   local               This machine's local sign-in/sign-out trail
//
// Examples:
//   keynest audit                 Show the server audit log
//   keynest audit local           Show the local trail
//   keynest audit server --json   Server audit log in JSON format
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/keynest/keynest-tui/internal/audit"
)

// HandleAudit shows the server or local audit trail.
func HandleAudit(app *App, args Args) error {
	switch args.Subcommand {
	case "", "server":
		return auditServer(app, args)
	case "local":
		return auditLocal(app, args)
	default:
		return fmt.Errorf("unknown audit subcommand: %q (try server, local)", args.Subcommand)
	}
}

func auditServer(app *App, args Args) error {
	ctx := context.Background()
	if _, err := requireSession(app); err != nil {
		return err
	}

	entries, err := app.Client.ListAuditLogs(ctx)
	if err != nil {
		return err
	}
	if args.JSON {
		return outputJSON(entries)
	}

	fmt.Println(cliTitleStyle.Render("Server audit log"))
	for _, e := range entries {
		who := e.UserName
		if who == "" {
			who = e.UserEmail
		}
		fmt.Printf("  %s  %-12s %-12s %s %s\n",
			cliDimStyle.Render(e.Timestamp.Local().Format("2006-01-02 15:04:05")),
			who, e.Action, e.TargetType, e.TargetID)
	}
	return nil
}

func auditLocal(app *App, args Args) error {
	if app.Trail == nil {
		return fmt.Errorf("local audit trail is disabled")
	}

	file, err := os.Open(app.Trail.Path())
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No local audit events recorded yet.")
			return nil
		}
		return err
	}
	defer file.Close()

	var events []audit.Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event audit.Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue // skip lines truncated by rotation
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if args.JSON {
		return outputJSON(events)
	}

	fmt.Println(cliTitleStyle.Render("Local audit trail"))
	for _, e := range events {
		outcome := cliOkStyle.Render("ok")
		if !e.Success {
			outcome = cliErrStyle.Render("failed: " + e.Error)
		}
		fmt.Printf("  %s  %-20s %-16s %s\n",
			cliDimStyle.Render(e.Timestamp.Local().Format("2006-01-02 15:04:05")),
			e.EventType, e.Username, outcome)
	}
	return nil
}
