// Package session owns the client's authentication state: the current user,
// the restore state machine, and the transitions triggered by login, logout
// and backend rejections.
//
// All state changes go through one writer method per transition. Network
// calls are made without holding the lock so that the client's unauthorized
// hook can run at any time.
package session

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/felixgeelhaar/taskdesk/internal/account"
	"github.com/felixgeelhaar/taskdesk/internal/errors"
	"github.com/felixgeelhaar/taskdesk/internal/log"
	"github.com/felixgeelhaar/taskdesk/internal/platform"
	"github.com/felixgeelhaar/taskdesk/internal/tokenstore"
)

// Backend is the subset of the platform client the session needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (*platform.LoginResponse, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*account.User, error)
	UpdateProfile(ctx context.Context, update platform.ProfileUpdate) (*account.User, error)
	ConfigureAuth(token string)
	OnUnauthorized(fn platform.UnauthorizedFunc)
}

// restoreCall is the single restore pass of one mount. Late callers wait on
// done and read the container's state afterwards.
type restoreCall struct {
	done chan struct{}
}

// Container is the application-level session state.
type Container struct {
	store   *tokenstore.Store
	backend Backend
	logger  *log.Logger
	now     func() time.Time

	mu      sync.Mutex
	state   State
	user    *account.User
	err     error
	mount   int
	restore *restoreCall
	subs    map[int]func(Snapshot)
	nextSub int
}

// Option configures a Container
type Option func(*Container)

// WithClock overrides the time source used for the login breadcrumb.
func WithClock(now func() time.Time) Option {
	return func(c *Container) { c.now = now }
}

// NewContainer creates a container in the Idle state and registers it as the
// backend's unauthorized hook.
func NewContainer(store *tokenstore.Store, backend Backend, logger *log.Logger, opts ...Option) *Container {
	c := &Container{
		store:   store,
		backend: backend,
		logger:  log.Or(logger).With("component", "session"),
		now:     time.Now,
		mount:   1,
		subs:    make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	backend.OnUnauthorized(c.handleUnauthorized)
	return c
}

// Snapshot returns the current session view.
func (c *Container) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Container) snapshotLocked() Snapshot {
	return Snapshot{
		State:    c.state,
		User:     c.user.Clone(),
		HasToken: c.store.HasToken(),
		Err:      c.err,
		Mount:    c.mount,
	}
}

// Subscribe registers fn to receive a snapshot after every transition.
// The returned function unregisters it.
func (c *Container) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Restore runs the mount's restore pass. Only the first call of a mount
// talks to the backend; later and concurrent calls return its outcome.
func (c *Container) Restore(ctx context.Context) Snapshot {
	c.mu.Lock()
	if call := c.restore; call != nil {
		c.mu.Unlock()
		select {
		case <-call.done:
		case <-ctx.Done():
		}
		return c.Snapshot()
	}
	call := &restoreCall{done: make(chan struct{})}
	c.restore = call
	c.mu.Unlock()

	defer close(call.done)
	return c.pass(ctx)
}

// Revalidate runs one extra restore pass regardless of whether the mount
// already restored. The route guard uses it for desynchronized state.
func (c *Container) Revalidate(ctx context.Context) Snapshot {
	return c.pass(ctx)
}

// Remount discards in-memory state and starts a new mount, the equivalent
// of a full page reload. Stored tokens are untouched.
func (c *Container) Remount() Snapshot {
	c.mu.Lock()
	c.mount++
	c.restore = nil
	c.mu.Unlock()
	return c.toIdle()
}

func (c *Container) pass(ctx context.Context) Snapshot {
	token, kind := c.store.Read()
	if token == "" {
		c.backend.ConfigureAuth("")
		return c.toUnauthenticated(nil)
	}

	c.backend.ConfigureAuth(token)
	c.toChecking()
	fp := tokenstore.Fingerprint(token)

	user, err := c.backend.Profile(ctx)
	switch {
	case err == nil:
		c.store.Rewrite(token, kind)
		c.logger.Debug("session restored", "kind", kind.String(), "fingerprint", fp, "role", string(user.Role))
		return c.toAuthenticated(user)

	case platform.IsAuthFailure(err):
		c.store.Clear()
		c.backend.ConfigureAuth("")
		c.logger.Info("stored token rejected", "fingerprint", fp, "status", platform.StatusOf(err))
		return c.toUnauthenticated(errors.NewSessionExpiredError())

	default:
		c.logger.WithError(err).Warn("session check failed, keeping token", "fingerprint", fp)
		return c.toError(errors.Wrap(errors.ErrCodeSessionRestoreFailed, "could not verify session", err))
	}
}

// Login authenticates and, on success, stores the token in the area chosen
// by remember. A rejected login never touches storage.
func (c *Container) Login(ctx context.Context, email, password string, remember bool) (*account.User, error) {
	resp, err := c.backend.Login(ctx, email, password)
	if err != nil {
		status := platform.StatusOf(err)
		if status >= 400 && status < 500 {
			var msg string
			var apiErr *platform.APIError
			if stderrors.As(err, &apiErr) {
				msg = apiErr.Message
			}
			return nil, errors.NewInvalidCredentialsError(msg)
		}
		return nil, errors.Wrap(errors.ErrCodeAPIUnavailable, "login request failed", err).
			WithSuggestion("Check your network connection and try again")
	}
	if resp.Token == "" {
		return nil, errors.New(errors.ErrCodeAPIDecode, "login response did not include a token")
	}

	if !c.store.Save(resp.Token, remember) {
		c.backend.ConfigureAuth("")
		err := errors.New(errors.ErrCodeStoreWriteFailed, "session token could not be saved").
			WithSuggestion("Check that ~/.taskdesk is writable, or log in with --remember=false")
		c.toUnauthenticated(err)
		return nil, err
	}
	c.backend.ConfigureAuth(resp.Token)
	c.store.RecordLastUser(resp.User.Email, string(resp.User.Role), c.now())

	c.mu.Lock()
	if c.restore == nil {
		done := make(chan struct{})
		close(done)
		c.restore = &restoreCall{done: done}
	}
	c.mu.Unlock()

	c.logger.Info("logged in", "email", resp.User.Email, "kind", tokenstore.KindFor(remember).String(), "fingerprint", tokenstore.Fingerprint(resp.Token))
	snap := c.toAuthenticated(&resp.User)
	return snap.User, nil
}

// Logout ends the session locally. The backend call is best effort.
func (c *Container) Logout(ctx context.Context) {
	if token := c.store.Token(); token != "" {
		c.backend.ConfigureAuth(token)
		if err := c.backend.Logout(ctx); err != nil {
			c.logger.WithError(err).Debug("backend logout failed, ignoring")
		}
	}
	c.store.Clear()
	c.backend.ConfigureAuth("")
	c.toUnauthenticated(nil)
}

// UpdateProfile sends profile changes and replaces the current user with
// the backend's answer.
func (c *Container) UpdateProfile(ctx context.Context, update platform.ProfileUpdate) (*account.User, error) {
	if c.Snapshot().User == nil {
		return nil, errors.NewNotLoggedInError()
	}
	user, err := c.backend.UpdateProfile(ctx, update)
	if err != nil {
		if platform.IsAuthFailure(err) {
			return nil, errors.NewSessionExpiredError()
		}
		return nil, err
	}
	snap := c.toAuthenticated(user)
	return snap.User, nil
}

// handleUnauthorized is the backend hook for 401/403 outside login.
func (c *Container) handleUnauthorized(path string, status int) {
	c.store.Clear()
	c.backend.ConfigureAuth("")
	c.logger.Info("session invalidated by backend", "path", path, "status", status)
	c.toUnauthenticated(errors.NewSessionExpiredError())
}

// Transition writers. Each sets the full state for its target and notifies
// subscribers outside the lock.

func (c *Container) toIdle() Snapshot {
	return c.transition(StateIdle, nil, nil)
}

func (c *Container) toChecking() Snapshot {
	return c.transition(StateChecking, nil, nil)
}

func (c *Container) toAuthenticated(u *account.User) Snapshot {
	return c.transition(StateAuthenticated, u.Clone(), nil)
}

func (c *Container) toUnauthenticated(err error) Snapshot {
	return c.transition(StateUnauthenticated, nil, err)
}

func (c *Container) toError(err error) Snapshot {
	return c.transition(StateError, nil, err)
}

func (c *Container) transition(state State, user *account.User, err error) Snapshot {
	c.mu.Lock()
	c.state = state
	c.user = user
	c.err = err
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	c.logger.Debug("session transition", "state", state.String(), "mount", snap.Mount)
	for _, fn := range subs {
		fn(snap)
	}
	return snap
}
