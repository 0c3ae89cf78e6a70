// Package guard decides whether a navigation target should be rendered,
// redirected, or held in a loading state. It is the access-control
// checkpoint an embedding UI evaluates before showing a protected screen.
package guard

import (
	"github.com/Ayorinde-Codes/databyte-go/pkg/rbac"
	"github.com/Ayorinde-Codes/databyte-go/pkg/session"
)

// Route describes the access requirements of a navigation target.
type Route struct {
	Path               string
	AllowedRoles       []string
	AllowedPermissions []string
	RequireAll         bool // all roles/permissions instead of any
}

// Action is the kind of decision a guard produces.
type Action int

const (
	Render                 Action = iota // show the requested screen
	Loading                              // session still hydrating, show a placeholder
	RedirectLogin                        // anonymous, go to the login entry point
	RedirectPasswordChange               // forced password change pending
	RedirectFallback                     // authenticated but not allowed
)

func (a Action) String() string {
	switch a {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect-login"
	case RedirectPasswordChange:
		return "redirect-password-change"
	case RedirectFallback:
		return "redirect-fallback"
	default:
		return "unknown"
	}
}

// Decision is the outcome of evaluating a route.
type Decision struct {
	Action Action
	// Target is the redirect destination for redirect actions.
	Target string
	// ReturnTo carries the originally requested path on RedirectLogin so
	// the UI can bounce back after login.
	ReturnTo string
}

// Paths configures the guard's redirect destinations.
type Paths struct {
	Login          string // login entry point (default "/login")
	PasswordChange string // forced password change screen (default "/password/change")
	Fallback       string // neutral authenticated landing page (default "/dashboard")
	Landing        string // where public-only routes send authenticated users (default: Fallback)
}

func (p *Paths) applyDefaults() {
	if p.Login == "" {
		p.Login = "/login"
	}
	if p.PasswordChange == "" {
		p.PasswordChange = "/password/change"
	}
	if p.Fallback == "" {
		p.Fallback = "/dashboard"
	}
	if p.Landing == "" {
		p.Landing = p.Fallback
	}
}

// Guard evaluates routes against the session manager and the permission
// evaluator.
type Guard struct {
	manager   *session.Manager
	evaluator *rbac.Evaluator
	paths     Paths
}

// New creates a guard. Zero-value fields in paths get sensible defaults.
func New(manager *session.Manager, evaluator *rbac.Evaluator, paths Paths) *Guard {
	paths.applyDefaults()
	return &Guard{manager: manager, evaluator: evaluator, paths: paths}
}

// Evaluate decides what to do with a protected route.
//
// Ordering matters: loading beats everything (no redirect flicker),
// anonymity beats permissions, and a pending forced password change beats
// any role or permission grant.
func (g *Guard) Evaluate(route Route) Decision {
	switch g.manager.State() {
	case session.StateUninitialized, session.StateLoading:
		return Decision{Action: Loading}
	case session.StateAnonymous:
		return Decision{Action: RedirectLogin, Target: g.paths.Login, ReturnTo: route.Path}
	}

	user := g.manager.CurrentUser()
	if user == nil {
		return Decision{Action: RedirectLogin, Target: g.paths.Login, ReturnTo: route.Path}
	}

	if user.RequiresPasswordChange && route.Path != g.paths.PasswordChange {
		return Decision{Action: RedirectPasswordChange, Target: g.paths.PasswordChange}
	}

	if g.hasAccess(user.Roles, route) {
		return Decision{Action: Render}
	}
	// The user is authenticated, just not allowed: fall back to a neutral
	// landing page rather than the login screen.
	return Decision{Action: RedirectFallback, Target: g.paths.Fallback}
}

func (g *Guard) hasAccess(roles []string, route Route) bool {
	if len(route.AllowedRoles) == 0 && len(route.AllowedPermissions) == 0 {
		return true
	}

	if len(route.AllowedRoles) > 0 {
		var ok bool
		if route.RequireAll {
			ok = g.evaluator.HasAllRoles(roles, route.AllowedRoles...)
		} else {
			ok = g.evaluator.HasAnyRole(roles, route.AllowedRoles...)
		}
		if !ok {
			return false
		}
	}

	if len(route.AllowedPermissions) > 0 {
		if route.RequireAll {
			return g.evaluator.HasAllPermissions(roles, route.AllowedPermissions...)
		}
		return g.evaluator.HasAnyPermission(roles, route.AllowedPermissions...)
	}

	return true
}

// EvaluatePublicOnly decides what to do with a public-only route such as
// login or register: an authenticated session is sent to the landing page
// instead.
func (g *Guard) EvaluatePublicOnly(route Route) Decision {
	switch g.manager.State() {
	case session.StateUninitialized, session.StateLoading:
		return Decision{Action: Loading}
	case session.StateAuthenticated:
		return Decision{Action: RedirectFallback, Target: g.paths.Landing}
	default:
		return Decision{Action: Render}
	}
}
