// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// resource_cmd.go - Scriptable access to organizations, projects,
// environments and variables.
//
// Command: orgs [list|switch <id>]
// Command: projects [list|create <name>|rm <id>]
// Command: envs <project-id> [list|create <name> [type]|rm <id>]
// Command: vars <env-id> [list [--reveal]|set KEY VALUE|rm KEY]
//
// Examples:
//   keynest orgs                       List organizations
//   keynest orgs switch 7              Select organization 7
//   keynest projects create backend    Create a project in the active org
//   keynest envs 12 create staging staging
//   keynest vars 42 set DATABASE_URL postgres://...
//   keynest vars 42 list --reveal
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keynest/keynest-tui/internal/api"
	"github.com/keynest/keynest-tui/internal/cache"
	"github.com/keynest/keynest-tui/internal/tenant"
	"github.com/keynest/keynest-tui/internal/util"
)

// cliNavigator satisfies tenant.Navigator for non-interactive use. Outside
// the TUI there is no screen to rebuild; the switch only has to repoint the
// store and flush cached listings.
type cliNavigator struct{}

func (cliNavigator) NavigateHome() {}

// HandleOrgs lists organizations or switches the active tenant.
func HandleOrgs(app *App, args Args) error {
	ctx := context.Background()
	if _, err := requireSession(app); err != nil {
		return err
	}

	switch args.Subcommand {
	case "", "list", "ls":
		return listOrgs(ctx, app, args)
	case "switch", "use":
		return switchOrg(ctx, app, args)
	default:
		return fmt.Errorf("unknown orgs subcommand: %q (try list, switch)", args.Subcommand)
	}
}

func listOrgs(ctx context.Context, app *App, args Args) error {
	orgs, err := app.Client.ListOrganizations(ctx)
	if err != nil {
		return err
	}
	if args.JSON {
		return outputJSON(orgs)
	}

	app.Tenants.Load()
	current := app.Tenants.Current()

	fmt.Println(cliTitleStyle.Render("Organizations"))
	for _, org := range orgs {
		marker := "  "
		if current != nil && current.ID == org.ID {
			marker = cliOkStyle.Render("* ")
		}
		fmt.Printf("%s%-6d %-24s %s\n", marker, org.ID, org.Name,
			cliDimStyle.Render(fmt.Sprintf("%s, %d projects", org.UserRole, org.ProjectCount)))
	}
	return nil
}

func switchOrg(ctx context.Context, app *App, args Args) error {
	if len(args.Raw) == 0 {
		return errors.New("usage: keynest orgs switch <id>")
	}
	id, err := parseID(args.Raw[0], "organization")
	if err != nil {
		return err
	}

	orgs, err := app.Client.ListOrganizations(ctx)
	if err != nil {
		return err
	}
	var target *api.Organization
	for i := range orgs {
		if orgs[i].ID == id {
			target = &orgs[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("organization %d is not one of yours", id)
	}

	app.Tenants.Load()
	previous := ""
	if current := app.Tenants.Current(); current != nil {
		previous = current.Name
	}

	var invalidator tenant.Invalidator
	if app.Cache != nil {
		invalidator = app.Cache
	}
	tenant.NewSwitcher(app.Tenants, invalidator, cliNavigator{}).Switch(*target)
	if app.Trail != nil {
		app.Trail.RecordTenantSwitch(previous, target.Name)
	}

	if !args.Quiet {
		fmt.Println(cliOkStyle.Render("Active organization: " + target.Name))
	}
	return nil
}

// HandleProjects lists or mutates projects in the active organization.
func HandleProjects(app *App, args Args) error {
	ctx := context.Background()
	if _, err := requireSession(app); err != nil {
		return err
	}
	org, err := activeOrganization(ctx, app)
	if err != nil {
		return err
	}

	switch args.Subcommand {
	case "", "list", "ls":
		projects, err := cachedProjects(ctx, app, org.ID)
		if err != nil {
			return err
		}
		if args.JSON {
			return outputJSON(projects)
		}
		fmt.Println(cliTitleStyle.Render("Projects in " + org.Name))
		for _, p := range projects {
			fmt.Printf("  %-6d %-24s %s\n", p.ID, p.Name,
				cliDimStyle.Render(fmt.Sprintf("%d environments", p.EnvironmentCount)))
		}
		return nil

	case "create", "new":
		if len(args.Raw) == 0 {
			return errors.New("usage: keynest projects create <name> [description]")
		}
		name := args.Raw[0]
		description := strings.Join(args.Raw[1:], " ")
		project, err := app.Client.CreateProject(ctx, org.ID, name, description)
		if err != nil {
			return err
		}
		invalidateOrg(app, org.ID)
		if args.JSON {
			return outputJSON(project)
		}
		fmt.Println(cliOkStyle.Render(fmt.Sprintf("Created project %q (id %d)", project.Name, project.ID)))
		return nil

	case "rm", "delete":
		if len(args.Raw) == 0 {
			return errors.New("usage: keynest projects rm <id>")
		}
		id, err := parseID(args.Raw[0], "project")
		if err != nil {
			return err
		}
		if err := app.Client.DeleteProject(ctx, id); err != nil {
			return err
		}
		invalidateOrg(app, org.ID)
		fmt.Println(cliOkStyle.Render(fmt.Sprintf("Deleted project %d", id)))
		return nil

	default:
		return fmt.Errorf("unknown projects subcommand: %q (try list, create, rm)", args.Subcommand)
	}
}

// HandleEnvs lists or mutates environments of a project.
func HandleEnvs(app *App, args Args) error {
	ctx := context.Background()
	if _, err := requireSession(app); err != nil {
		return err
	}
	if len(args.Raw) == 0 {
		return errors.New("usage: keynest envs <project-id> [list|create|rm]")
	}
	projectID, err := parseID(args.Raw[0], "project")
	if err != nil {
		return err
	}
	rest := args.Raw[1:]
	sub := ""
	if len(rest) > 0 {
		sub = rest[0]
		rest = rest[1:]
	}

	org, err := activeOrganization(ctx, app)
	if err != nil {
		return err
	}

	switch sub {
	case "", "list", "ls":
		envs, err := cachedEnvironments(ctx, app, org.ID, projectID)
		if err != nil {
			return err
		}
		if args.JSON {
			return outputJSON(envs)
		}
		fmt.Println(cliTitleStyle.Render(fmt.Sprintf("Environments of project %d", projectID)))
		for _, e := range envs {
			fmt.Printf("  %-6d %-20s %-12s %s\n", e.ID, e.Name, e.EnvironmentType,
				cliDimStyle.Render(fmt.Sprintf("%d variables", e.VariableCount)))
		}
		return nil

	case "create", "new":
		if len(rest) == 0 {
			return errors.New("usage: keynest envs <project-id> create <name> [type]")
		}
		name := rest[0]
		envType := api.EnvDevelopment
		if len(rest) > 1 {
			envType = rest[1]
		}
		env, err := app.Client.CreateEnvironment(ctx, projectID, name, envType, "")
		if err != nil {
			return err
		}
		invalidateOrg(app, org.ID)
		if args.JSON {
			return outputJSON(env)
		}
		fmt.Println(cliOkStyle.Render(fmt.Sprintf("Created environment %q (id %d)", env.Name, env.ID)))
		return nil

	case "rm", "delete":
		if len(rest) == 0 {
			return errors.New("usage: keynest envs <project-id> rm <id>")
		}
		id, err := parseID(rest[0], "environment")
		if err != nil {
			return err
		}
		if err := app.Client.DeleteEnvironment(ctx, id); err != nil {
			return err
		}
		invalidateOrg(app, org.ID)
		fmt.Println(cliOkStyle.Render(fmt.Sprintf("Deleted environment %d", id)))
		return nil

	default:
		return fmt.Errorf("unknown envs subcommand: %q (try list, create, rm)", sub)
	}
}

// HandleVars lists or mutates variables of an environment. Values are
// always fetched fresh from the server, never from the listing cache.
func HandleVars(app *App, args Args) error {
	ctx := context.Background()
	if _, err := requireSession(app); err != nil {
		return err
	}
	envArg, ok := args.Options["env"]
	if !ok {
		return errors.New("usage: keynest vars <env-id> [list|set|rm]")
	}
	envID, err := parseID(envArg, "environment")
	if err != nil {
		return err
	}

	switch args.Subcommand {
	case "", "list", "ls":
		vars, err := app.Client.ListVariables(ctx, envID)
		if err != nil {
			return err
		}
		if args.JSON {
			if !args.Reveal {
				for i := range vars {
					vars[i].DecryptedValue = util.MaskSecret(vars[i].DecryptedValue)
				}
			}
			return outputJSON(vars)
		}
		fmt.Println(cliTitleStyle.Render(fmt.Sprintf("Variables of environment %d", envID)))
		for _, v := range vars {
			value := v.DecryptedValue
			if value == "" {
				value = cliDimStyle.Render("(hidden by role)")
			} else if !args.Reveal {
				value = util.MaskSecret(value)
			}
			fmt.Printf("  %-32s %s\n", v.Key, value)
		}
		return nil

	case "set":
		if len(args.Raw) < 2 {
			return errors.New("usage: keynest vars <env-id> set KEY VALUE")
		}
		key, value := args.Raw[0], args.Raw[1]
		existing, err := findVariable(ctx, app, envID, key)
		if err != nil {
			return err
		}
		var saved *api.Variable
		if existing != nil {
			saved, err = app.Client.UpdateVariable(ctx, existing.ID, key, value, envID)
		} else {
			saved, err = app.Client.CreateVariable(ctx, envID, key, value)
		}
		if err != nil {
			return err
		}
		if args.JSON {
			return outputJSON(saved)
		}
		fmt.Println(cliOkStyle.Render("Set " + saved.Key))
		return nil

	case "rm", "delete", "unset":
		if len(args.Raw) == 0 {
			return errors.New("usage: keynest vars <env-id> rm KEY")
		}
		key := args.Raw[0]
		existing, err := findVariable(ctx, app, envID, key)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("no variable %q in environment %d", key, envID)
		}
		if err := app.Client.DeleteVariable(ctx, existing.ID); err != nil {
			return err
		}
		fmt.Println(cliOkStyle.Render("Deleted " + key))
		return nil

	default:
		return fmt.Errorf("unknown vars subcommand: %q (try list, set, rm)", args.Subcommand)
	}
}

func findVariable(ctx context.Context, app *App, envID int64, key string) (*api.Variable, error) {
	vars, err := app.Client.ListVariables(ctx, envID)
	if err != nil {
		return nil, err
	}
	for i := range vars {
		if vars[i].Key == key {
			return &vars[i], nil
		}
	}
	return nil, nil
}

func cachedProjects(ctx context.Context, app *App, orgID int64) ([]api.Project, error) {
	var projects []api.Project
	if app.Cache != nil {
		if hit, err := app.Cache.Get(orgID, cache.KindProjects, 0, &projects); err == nil && hit {
			return projects, nil
		}
	}
	projects, err := app.Client.ListProjects(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if app.Cache != nil {
		app.Cache.Put(orgID, cache.KindProjects, 0, projects)
	}
	return projects, nil
}

func cachedEnvironments(ctx context.Context, app *App, orgID, projectID int64) ([]api.Environment, error) {
	var envs []api.Environment
	if app.Cache != nil {
		if hit, err := app.Cache.Get(orgID, cache.KindEnvironments, projectID, &envs); err == nil && hit {
			return envs, nil
		}
	}
	envs, err := app.Client.ListEnvironments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if app.Cache != nil {
		app.Cache.Put(orgID, cache.KindEnvironments, projectID, envs)
	}
	return envs, nil
}

func invalidateOrg(app *App, orgID int64) {
	if app.Cache != nil {
		app.Cache.InvalidateOrganization(orgID)
	}
}
