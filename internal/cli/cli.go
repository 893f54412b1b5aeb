// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing for the keynest command.
package cli

import (
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdLogin
	CmdLogout
	CmdWhoami
	CmdStatus
	CmdOrgs
	CmdProjects
	CmdEnvs
	CmdVars
	CmdAudit
	CmdConfig
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool
	Server  string // overrides the configured server URL

	// Command-specific
	Subcommand string
	ConfigKey  string
	ConfigVal  string
	Reveal     bool // show variable values instead of masking them

	// Raw args (remaining after flag parsing)
	Raw []string

	// Options holds command-specific named options (e.g., --org, --project)
	Options map[string]string
}

const usageText = `keynest - secrets management from the terminal

KeyNest keeps environment variables and secrets per organization,
project and environment. This client talks to a KeyNest server and
offers both a full-screen TUI and scriptable commands.

Usage:
  keynest                        Start TUI (default)
  keynest login [email]          Sign in and store the session
  keynest logout                 Sign out and clear local credentials
  keynest whoami                 Show the signed-in user
  keynest status                 Show server and session status
  keynest orgs [list|switch]     Organizations (tenants)
  keynest projects [list|create|rm]  Projects in the active organization
  keynest envs <project-id> [list|create|rm]  Environments of a project
  keynest vars <env-id> [list|set|rm]         Variables of an environment
  keynest audit [server|local]   Audit trails
  keynest config [show|set]      Configuration
  keynest version                Show version
  keynest help                   Show this help

Variable Commands:
  keynest vars 42 list               List variables (values masked)
  keynest vars 42 list --reveal      List variables with values
  keynest vars 42 set KEY VALUE      Create or update a variable
  keynest vars 42 rm KEY             Delete a variable

Organization Commands:
  keynest orgs list                  List organizations you belong to
  keynest orgs switch <id>           Make an organization the active tenant

Global Flags:
  --server URL    Override the configured server URL
  --json          Machine-readable output
  --quiet, -q     Suppress non-essential output
  --verbose, -v   Verbose output

Environment:
  KEYNEST_HOME          Data directory (default ~/.keynest)
  KEYNEST_SERVER_URL    Server URL override

The session persists across invocations: sign in once with
'keynest login', then script against the API until the refresh
credential expires or 'keynest logout' clears it.
`

// Usage returns the top-level help text.
func Usage() string {
	return usageText
}

// Parse parses os.Args into a command and its arguments.
func Parse() (Command, Args) {
	return parse(os.Args[1:])
}

func parse(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, args
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, args

	case "login", "signin":
		return CmdLogin, args

	case "logout", "signout":
		return CmdLogout, args

	case "whoami", "me":
		return CmdWhoami, args

	case "status", "s":
		return CmdStatus, args

	case "orgs", "org", "organizations":
		if len(remaining) > 0 {
			args.Subcommand = remaining[0]
			args.Raw = remaining[1:]
		}
		return CmdOrgs, args

	case "projects", "project", "p":
		if len(remaining) > 0 {
			args.Subcommand = remaining[0]
			args.Raw = remaining[1:]
		}
		return CmdProjects, args

	case "envs", "env", "environments":
		return CmdEnvs, args

	case "vars", "var", "variables":
		parseVarsArgs(&args, remaining)
		return CmdVars, args

	case "audit":
		if len(remaining) > 0 {
			args.Subcommand = remaining[0]
		}
		return CmdAudit, args

	case "config":
		parseConfigArgs(&args, remaining)
		return CmdConfig, args

	case "version", "-V", "--version":
		return CmdVersion, args

	case "help", "-h", "--help":
		return CmdHelp, args

	default:
		// Unknown command: show help rather than guessing.
		return CmdHelp, args
	}
}

func parseGlobalFlags(argv []string) ([]string, Args) {
	args := Args{Options: make(map[string]string)}
	var remaining []string

	for i := 0; i < len(argv); i++ {
		switch argv[i] {
		case "--quiet", "-q":
			args.Quiet = true
		case "--verbose", "-v":
			args.Verbose = true
		case "--json":
			args.JSON = true
		case "--server":
			if i+1 < len(argv) {
				i++
				args.Server = argv[i]
			}
		default:
			if strings.HasPrefix(argv[i], "--server=") {
				args.Server = strings.TrimPrefix(argv[i], "--server=")
				continue
			}
			remaining = append(remaining, argv[i])
		}
	}
	return remaining, args
}

func parseVarsArgs(args *Args, remaining []string) {
	var positional []string
	for _, arg := range remaining {
		if arg == "--reveal" {
			args.Reveal = true
			continue
		}
		positional = append(positional, arg)
	}
	// Shape: <env-id> [list|set|rm] [KEY [VALUE]]
	if len(positional) > 0 {
		args.Options["env"] = positional[0]
		positional = positional[1:]
	}
	if len(positional) > 0 {
		args.Subcommand = positional[0]
		positional = positional[1:]
	}
	args.Raw = positional
}

func parseConfigArgs(args *Args, remaining []string) {
	if len(remaining) == 0 {
		args.Subcommand = "show"
		return
	}
	args.Subcommand = remaining[0]
	if args.Subcommand == "set" && len(remaining) >= 3 {
		args.ConfigKey = remaining[1]
		args.ConfigVal = remaining[2]
	}
}
