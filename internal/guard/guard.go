// Package guard decides whether a view may render for the current session.
package guard

import (
	"context"

	"github.com/felixgeelhaar/taskdesk/internal/account"
	"github.com/felixgeelhaar/taskdesk/internal/log"
	"github.com/felixgeelhaar/taskdesk/internal/session"
)

// Well-known routes the guard redirects to.
const (
	LoginRoute     = "/login"
	DashboardRoute = "/dashboard"
	ProjectsRoute  = "/projects"
	ReloadRoute    = DashboardRoute
)

// Capability is the permission a route requires.
type Capability int

const (
	// CapNone requires only an authenticated user.
	CapNone Capability = iota
	// CapAdminOnly requires the admin role.
	CapAdminOnly
	// CapManageProjects requires admin, manager, or administrative expertise.
	CapManageProjects
	// CapProjectManagerOnly requires the manager role.
	CapProjectManagerOnly
)

func (c Capability) String() string {
	switch c {
	case CapAdminOnly:
		return "admin-only"
	case CapManageProjects:
		return "manage-projects"
	case CapProjectManagerOnly:
		return "project-manager-only"
	default:
		return "authenticated"
	}
}

// Allows reports whether u satisfies the capability.
func (c Capability) Allows(u *account.User) bool {
	if u == nil {
		return false
	}
	switch c {
	case CapAdminOnly:
		return u.IsAdmin()
	case CapManageProjects:
		return u.CanManageProjects()
	case CapProjectManagerOnly:
		return u.IsProjectManager()
	default:
		return true
	}
}

// FallbackRoute is where an authenticated user lacking c is sent.
func (c Capability) FallbackRoute() string {
	if c == CapProjectManagerOnly {
		return ProjectsRoute
	}
	return DashboardRoute
}

// Outcome is what the view layer should do.
type Outcome int

const (
	// Render the requested view.
	Render Outcome = iota
	// Loading means a restore pass is in flight; wait and ask again.
	Loading
	// RedirectLogin sends the user to the login view.
	RedirectLogin
	// RedirectDefault sends an authenticated user to the capability's fallback.
	RedirectDefault
	// Reload discards in-memory state and remounts the app at Target.
	Reload
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect-login"
	case RedirectDefault:
		return "redirect-default"
	case Reload:
		return "reload"
	default:
		return "unknown"
	}
}

// Decision is the guard's verdict for one check.
type Decision struct {
	Outcome Outcome
	// Target is the route to go to for redirects and reloads.
	Target string
	// Session is the snapshot the decision was based on.
	Session session.Snapshot
}

// Sessions is the part of the session container the guard reads.
type Sessions interface {
	Snapshot() session.Snapshot
	Revalidate(ctx context.Context) session.Snapshot
}

// Guard gates views on session state and capabilities.
type Guard struct {
	sessions Sessions
	logger   *log.Logger
}

// New creates a Guard over the given session container.
func New(sessions Sessions, logger *log.Logger) *Guard {
	return &Guard{
		sessions: sessions,
		logger:   log.Or(logger).With("component", "guard"),
	}
}

// Check decides what to do with a view requiring capability.
//
// A token without a hydrated user gets one revalidation pass. If the user is
// still missing while the token survives, the answer is Reload rather than a
// redirect: the client state is out of sync and only a fresh mount recovers it.
func (g *Guard) Check(ctx context.Context, capability Capability) Decision {
	snap := g.sessions.Snapshot()

	if snap.State == session.StateChecking {
		return Decision{Outcome: Loading, Session: snap}
	}

	if snap.User == nil {
		if !snap.HasToken {
			return Decision{Outcome: RedirectLogin, Target: LoginRoute, Session: snap}
		}

		g.logger.Debug("token present without user, revalidating", "state", snap.State.String())
		snap = g.sessions.Revalidate(ctx)

		if snap.User == nil {
			if snap.HasToken {
				g.logger.Warn("session still unresolved after revalidation, reloading", "state", snap.State.String())
				return Decision{Outcome: Reload, Target: ReloadRoute, Session: snap}
			}
			return Decision{Outcome: RedirectLogin, Target: LoginRoute, Session: snap}
		}
	}

	if !capability.Allows(snap.User) {
		g.logger.Debug("capability denied", "capability", capability.String(), "role", string(snap.User.Role))
		return Decision{Outcome: RedirectDefault, Target: capability.FallbackRoute(), Session: snap}
	}
	return Decision{Outcome: Render, Session: snap}
}
