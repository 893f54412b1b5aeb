// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

// =============================================================================
// ROUTE GATE
// =============================================================================

// Route identifies a top-level screen.
type Route int

const (
	RouteLogin Route = iota
	RouteRegister
	RouteDashboard
	RouteAuditLog
	RouteSettings
)

// String returns the route name for logs.
func (r Route) String() string {
	switch r {
	case RouteLogin:
		return "login"
	case RouteRegister:
		return "register"
	case RouteDashboard:
		return "dashboard"
	case RouteAuditLog:
		return "audit-log"
	case RouteSettings:
		return "settings"
	default:
		return "unknown"
	}
}

// Policy declares who may see a route and where to send everyone else.
// RequireAuth=false marks an anonymous-only screen: a signed-in user is
// redirected away from it, not shown it.
type Policy struct {
	RequireAuth bool
	Redirect    Route
}

// routePolicies is the authorization table for every screen. Screens are
// either protected (signed-in users only) or anonymous-only; there are no
// mixed screens.
var routePolicies = map[Route]Policy{
	RouteLogin:     {RequireAuth: false, Redirect: RouteDashboard},
	RouteRegister:  {RequireAuth: false, Redirect: RouteDashboard},
	RouteDashboard: {RequireAuth: true, Redirect: RouteLogin},
	RouteAuditLog:  {RequireAuth: true, Redirect: RouteLogin},
	RouteSettings:  {RequireAuth: true, Redirect: RouteLogin},
}

// SessionState is the slice of the session store the gate reads.
type SessionState interface {
	Hydrated() bool
	IsAuthenticated() bool
}

// Decision is the gate's verdict for one render.
type Decision int

const (
	// DecisionLoading: hydration has not completed; show a neutral loading
	// view and take no navigation action.
	DecisionLoading Decision = iota

	// DecisionRender: the screen may render its content.
	DecisionRender

	// DecisionRedirect: the screen must not render; navigate to the
	// returned route instead.
	DecisionRedirect
)

// Resolve decides whether route may render for the given session state.
// It is evaluated on every render pass, not just on screen entry, so a
// background session teardown redirects the active screen immediately.
func Resolve(route Route, session SessionState) (Decision, Route) {
	if !session.Hydrated() {
		return DecisionLoading, route
	}

	policy, ok := routePolicies[route]
	if !ok {
		// Unknown screens are treated as protected.
		policy = Policy{RequireAuth: true, Redirect: RouteLogin}
	}

	authed := session.IsAuthenticated()
	if policy.RequireAuth && !authed {
		return DecisionRedirect, policy.Redirect
	}
	if !policy.RequireAuth && authed {
		return DecisionRedirect, policy.Redirect
	}
	return DecisionRender, route
}
