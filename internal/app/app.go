// Package app assembles the client: configuration, token store, platform
// client, session container and route guard. It also owns navigation, which
// turns a route into a rendered Page by following guard decisions.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/taskdesk/internal/account"
	"github.com/felixgeelhaar/taskdesk/internal/config"
	"github.com/felixgeelhaar/taskdesk/internal/errors"
	"github.com/felixgeelhaar/taskdesk/internal/guard"
	"github.com/felixgeelhaar/taskdesk/internal/log"
	"github.com/felixgeelhaar/taskdesk/internal/platform"
	"github.com/felixgeelhaar/taskdesk/internal/session"
	"github.com/felixgeelhaar/taskdesk/internal/tokenstore"
)

// MaxRedirects bounds the redirect hops of a single navigation.
const MaxRedirects = 4

// maxSteps bounds guard consultations per navigation, counting waits on an
// in-flight restore.
const maxSteps = 16

// Page is a rendered view.
type Page struct {
	Route     string   `json:"route" yaml:"route"`
	Title     string   `json:"title" yaml:"title"`
	Body      string   `json:"body" yaml:"body"`
	Redirects []string `json:"redirects,omitempty" yaml:"redirects,omitempty"`
	Reloaded  bool     `json:"reloaded,omitempty" yaml:"reloaded,omitempty"`

	// Denied is set when a capability check redirected away from a
	// requested route. It is always an AUTH-004 error.
	Denied error `json:"-" yaml:"-"`
}

// String implements fmt.Stringer for the text formatter.
func (p Page) String() string {
	var b strings.Builder
	b.WriteString(p.Title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", len(p.Title)))
	b.WriteString("\n\n")
	b.WriteString(strings.TrimRight(p.Body, "\n"))
	return b.String()
}

// Options configures New. Only Config is required.
type Options struct {
	Config *config.Config
	Logger *log.Logger

	// Persistent overrides the file-backed area at Config.StoragePath.
	Persistent tokenstore.Area
	// Session overrides the in-process area.
	Session tokenstore.Area
	// Transport overrides the HTTP transport of the platform client.
	Transport http.RoundTripper
	// Client overrides the platform client tuning; Timeout falls back to
	// Config.Timeout.
	Client platform.Config
}

// App is one client process.
type App struct {
	cfg    *config.Config
	logger *log.Logger
	store  *tokenstore.Store
	client *platform.Client
	sess   *session.Container
	guard  *guard.Guard
	routes Routes
}

// New wires an App. Nothing touches the network until Mount.
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	logger := log.Or(opts.Logger)

	persistent := opts.Persistent
	if persistent == nil {
		fa, err := tokenstore.NewFileArea(opts.Config.StoragePath)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "invalid storage_path", err)
		}
		persistent = fa
		if opts.Config.StorageKey != "" {
			sealed, err := tokenstore.NewSealedArea(fa, opts.Config.StorageKey)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "invalid storage key", err)
			}
			persistent = sealed
		}
	}
	tab := opts.Session
	if tab == nil {
		tab = tokenstore.NewMemoryArea()
	}

	ccfg := opts.Client
	if ccfg.Timeout <= 0 {
		ccfg.Timeout = opts.Config.Timeout
	}
	if opts.Transport != nil {
		ccfg.Transport = opts.Transport
	}
	ccfg.Logger = logger

	store := tokenstore.New(persistent, tab, logger)
	client := platform.NewClient(opts.Config.APIURL, ccfg)
	sess := session.NewContainer(store, client, logger)

	return &App{
		cfg:    opts.Config,
		logger: logger.With("component", "app"),
		store:  store,
		client: client,
		sess:   sess,
		guard:  guard.New(sess, logger),
		routes: DefaultRoutes(),
	}, nil
}

// Config returns the configuration the app was built with.
func (a *App) Config() *config.Config { return a.cfg }

// Client returns the shared platform client.
func (a *App) Client() *platform.Client { return a.client }

// Session returns the session container.
func (a *App) Session() *session.Container { return a.sess }

// Store returns the token store.
func (a *App) Store() *tokenstore.Store { return a.store }

// Routes returns the route table.
func (a *App) Routes() Routes { return a.routes }

// Mount applies the stored token to the client and runs the mount's
// restore pass.
func (a *App) Mount(ctx context.Context) session.Snapshot {
	token, _ := a.store.Read()
	a.client.ConfigureAuth(token)
	snap := a.sess.Restore(ctx)
	a.logger.Debug("mounted", "mount", snap.Mount, "state", snap.State.String())
	return snap
}

// Remount discards in-memory session state and mounts again.
func (a *App) Remount(ctx context.Context) session.Snapshot {
	a.sess.Remount()
	return a.Mount(ctx)
}

// Navigate renders the page at path. Guard redirects are followed up to
// MaxRedirects hops; a Reload remounts the app and continues at the reload
// target, at most once per navigation.
func (a *App) Navigate(ctx context.Context, path string) (*Page, error) {
	var trail []string
	var denied error
	reloaded := false

	for step := 0; step < maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		route, ok := a.routes.Lookup(path)
		if !ok {
			return nil, errors.NewRouteNotFoundError(path)
		}

		var d guard.Decision
		if route.Public {
			d = a.checkPublic(route)
		} else {
			d = a.guard.Check(ctx, route.Capability)
		}

		switch d.Outcome {
		case guard.Loading:
			a.waitSettled(ctx)
			continue

		case guard.Render:
			body, err := route.view(ctx, a, d.Session)
			if err != nil {
				if platform.IsAuthFailure(err) {
					// The client hook has already demoted the session;
					// consult the guard again for the same route.
					a.logger.Debug("view rejected by backend", "route", route.Path, "status", platform.StatusOf(err))
					continue
				}
				return nil, fmt.Errorf("render %s: %w", route.Path, err)
			}
			return &Page{
				Route:     route.Path,
				Title:     route.Title,
				Body:      body,
				Redirects: trail,
				Reloaded:  reloaded,
				Denied:    denied,
			}, nil

		case guard.RedirectLogin, guard.RedirectDefault:
			if len(trail) >= MaxRedirects {
				return nil, errors.New(errors.ErrCodeSessionRedirectLoop,
					fmt.Sprintf("too many redirects: %s", strings.Join(append(trail, d.Target), " -> ")))
			}
			if d.Outcome == guard.RedirectDefault && !route.Public && denied == nil {
				denied = errors.NewForbiddenError(route.Path)
			}
			a.logger.Debug("redirect", "from", route.Path, "to", d.Target, "outcome", d.Outcome.String())
			trail = append(trail, route.Path)
			path = d.Target

		case guard.Reload:
			if reloaded {
				return nil, errors.New(errors.ErrCodeSessionDesync,
					"session could not be restored after reload").
					WithSuggestion("Check the backend with 'taskdesk status'").
					WithSuggestion("Run 'taskdesk logout' to discard the stored token")
			}
			a.logger.Info("reloading", "from", route.Path, "to", d.Target)
			reloaded = true
			a.Remount(ctx)
			path = d.Target
		}
	}

	return nil, errors.New(errors.ErrCodeSessionRedirectLoop,
		fmt.Sprintf("navigation to %s did not settle", path))
}

// waitSettled blocks until the session leaves the Checking state.
func (a *App) waitSettled(ctx context.Context) {
	settled := make(chan struct{}, 1)
	unsubscribe := a.sess.Subscribe(func(s session.Snapshot) {
		if s.State.Settled() {
			select {
			case settled <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	if a.sess.Snapshot().State.Settled() {
		return
	}
	select {
	case <-settled:
	case <-ctx.Done():
	}
}

// checkPublic decides for public routes. A signed-in user visiting the
// login page is sent to the dashboard.
func (a *App) checkPublic(route Route) guard.Decision {
	snap := a.sess.Snapshot()
	if route.Path == guard.LoginRoute && snap.Authenticated() {
		return guard.Decision{Outcome: guard.RedirectDefault, Target: guard.DashboardRoute, Session: snap}
	}
	return guard.Decision{Outcome: guard.Render, Session: snap}
}

// Snapshot returns the current session view.
func (a *App) Snapshot() session.Snapshot { return a.sess.Snapshot() }

// Login signs in through the session container.
func (a *App) Login(ctx context.Context, email, password string, remember bool) (*account.User, error) {
	return a.sess.Login(ctx, email, password, remember)
}

// Logout ends the session.
func (a *App) Logout(ctx context.Context) {
	a.sess.Logout(ctx)
}
