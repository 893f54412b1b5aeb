// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - Sign in, sign out and session inspection commands.
//
// Command: login [email]
// Command: logout
// Command: whoami
// Command: status
//
// Examples:
//   keynest login                    Prompt for email and password
//   keynest login dev@example.com    Prompt for password only
//   keynest whoami --json            Identity in JSON format
//   keynest status                   Server reachability and session state
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/keynest/keynest-tui/internal/api"
)

// HandleLogin signs in and persists the resulting session.
func HandleLogin(app *App, args Args) error {
	ctx := context.Background()
	app.Session.Hydrate()

	if app.Session.IsAuthenticated() {
		user := app.Session.User()
		fmt.Printf("Already signed in as %s. Run 'keynest logout' first to switch accounts.\n", user.Email)
		return nil
	}

	var email string
	if len(args.Raw) > 0 {
		email = args.Raw[0]
	} else {
		var err error
		email, err = promptLine("Email: ")
		if err != nil {
			return err
		}
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	auth, err := app.Client.Login(ctx, email, password)
	if app.Trail != nil {
		app.Trail.RecordSignIn(email, err)
	}
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Status == 401 {
			return errors.New("invalid email or password")
		}
		return err
	}

	app.Session.SetAuthenticated(&auth.User, auth.Access, auth.Refresh)

	if !args.Quiet {
		fmt.Println(cliOkStyle.Render(fmt.Sprintf("Signed in as %s", auth.User.Email)))
	}
	return nil
}

// HandleLogout ends the session everywhere: server-side blacklist (best
// effort), both local stores, the durable snapshots and the listing cache.
func HandleLogout(app *App, args Args) error {
	ctx := context.Background()
	app.Session.Hydrate()

	if !app.Session.IsAuthenticated() {
		fmt.Println("Not signed in.")
		return nil
	}

	username := ""
	if user := app.Session.User(); user != nil {
		username = user.Username
	}

	if refresh := app.Session.RefreshCredential(); refresh != "" {
		if err := app.Client.LogoutServer(ctx, refresh); err != nil {
			// The local teardown must happen regardless.
			fmt.Fprintf(os.Stderr, "warning: server sign-out failed: %v\n", err)
		}
	}

	app.Session.Logout()
	app.Tenants.Clear()
	if app.Cache != nil {
		if err := app.Cache.Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: cache clear failed: %v\n", err)
		}
	}
	if app.Trail != nil {
		app.Trail.RecordSignOut(username)
	}

	if !args.Quiet {
		fmt.Println(cliOkStyle.Render("Signed out."))
	}
	return nil
}

// HandleWhoami prints the signed-in identity.
func HandleWhoami(app *App, args Args) error {
	user, err := requireSession(app)
	if err != nil {
		return err
	}

	if args.JSON {
		return outputJSON(user)
	}

	fmt.Println(cliTitleStyle.Render("Signed in"))
	printKV("Username", user.Username)
	printKV("Email", user.Email)
	if name := user.Name(); name != user.Username {
		printKV("Name", name)
	}
	return nil
}

// HandleStatus reports server reachability, session and tenant state.
func HandleStatus(app *App, args Args) error {
	ctx := context.Background()
	app.Session.Hydrate()
	app.Tenants.Load()

	serverUp := true
	var serverErr string
	if _, err := app.Client.Health(ctx); err != nil {
		serverUp = false
		serverErr = err.Error()
	}

	if args.JSON {
		data := map[string]any{
			"server":        app.Client.BaseURL(),
			"server_up":     serverUp,
			"authenticated": app.Session.IsAuthenticated(),
		}
		if user := app.Session.User(); user != nil {
			data["user"] = user.Email
		}
		if org := app.Tenants.Current(); org != nil {
			data["organization"] = org.Name
		}
		if serverErr != "" {
			data["server_error"] = serverErr
		}
		return outputJSON(data)
	}

	fmt.Println(cliTitleStyle.Render("KeyNest status"))
	printKV("Server", app.Client.BaseURL())
	if serverUp {
		printKV("Reachable", cliOkStyle.Render("yes"))
	} else {
		printKV("Reachable", cliErrStyle.Render("no ("+serverErr+")"))
	}
	if user := app.Session.User(); user != nil && app.Session.IsAuthenticated() {
		printKV("Session", cliOkStyle.Render("signed in as "+user.Email))
	} else {
		printKV("Session", cliDimStyle.Render("signed out"))
	}
	if org := app.Tenants.Current(); org != nil {
		printKV("Organization", org.Name)
	} else {
		printKV("Organization", cliDimStyle.Render("none selected"))
	}
	return nil
}

// promptLine reads one line of echoed input from stdin.
func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword prompts for a password without echoing it to the terminal.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()
	return string(password), nil
}
