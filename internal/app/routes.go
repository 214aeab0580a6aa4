package app

import (
	"context"
	"sort"
	"strings"

	"github.com/felixgeelhaar/taskdesk/internal/guard"
	"github.com/felixgeelhaar/taskdesk/internal/session"
)

// View renders the body of a page for an authorized session.
type View func(ctx context.Context, a *App, snap session.Snapshot) (string, error)

// Route is one entry of the route table.
type Route struct {
	Path       string           `json:"path" yaml:"path"`
	Title      string           `json:"title" yaml:"title"`
	Capability guard.Capability `json:"-" yaml:"-"`
	Public     bool             `json:"public" yaml:"public"`
	view       View
}

// Requires names the capability the route is gated on.
func (r Route) Requires() string {
	if r.Public {
		return "public"
	}
	return r.Capability.String()
}

// Routes is the application route table keyed by path.
type Routes map[string]Route

// DefaultRoutes returns the route table of the client.
func DefaultRoutes() Routes {
	rs := Routes{}
	add := func(path, title string, capability guard.Capability, view View) {
		rs[path] = Route{Path: path, Title: title, Capability: capability, view: view}
	}

	rs[guard.LoginRoute] = Route{Path: guard.LoginRoute, Title: "Sign in", Public: true, view: loginView}

	add(guard.DashboardRoute, "Dashboard", guard.CapNone, dashboardView)
	add(guard.ProjectsRoute, "Projects", guard.CapNone, projectsView)
	add("/tasks", "Tasks", guard.CapNone, tasksView)
	add("/calendar", "Calendar", guard.CapNone, calendarView)
	add("/documents", "Documents", guard.CapNone, documentsView)
	add("/wiki", "Wiki", guard.CapNone, wikiView)
	add("/notifications", "Notifications", guard.CapNone, notificationsView)
	add("/profile", "Profile", guard.CapNone, profileView)

	add("/admin/users", "User management", guard.CapAdminOnly, usersView)
	add("/admin/settings", "Settings", guard.CapAdminOnly, settingsView)

	add("/projects/manage", "Manage projects", guard.CapManageProjects, manageProjectsView)
	add("/projects/planning", "Project planning", guard.CapProjectManagerOnly, planningView)

	return rs
}

// Lookup resolves path, tolerating a missing leading or extra trailing
// slash. The root path is the dashboard.
func (rs Routes) Lookup(path string) (Route, bool) {
	p := "/" + strings.Trim(strings.TrimSpace(path), "/")
	if p == "/" {
		p = guard.DashboardRoute
	}
	r, ok := rs[p]
	return r, ok
}

// Sorted returns the routes ordered by path.
func (rs Routes) Sorted() []Route {
	out := make([]Route, 0, len(rs))
	for _, r := range rs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
