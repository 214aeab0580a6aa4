package guard

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/taskdesk/internal/account"
	"github.com/felixgeelhaar/taskdesk/internal/log"
	"github.com/felixgeelhaar/taskdesk/internal/platform"
	"github.com/felixgeelhaar/taskdesk/internal/platform/platformtest"
	"github.com/felixgeelhaar/taskdesk/internal/session"
	"github.com/felixgeelhaar/taskdesk/internal/tokenstore"
)

// stubSessions returns a fixed snapshot, and a second one from Revalidate.
type stubSessions struct {
	snap        session.Snapshot
	revalidated session.Snapshot
	calls       int
}

func (s *stubSessions) Snapshot() session.Snapshot { return s.snap }

func (s *stubSessions) Revalidate(context.Context) session.Snapshot {
	s.calls++
	s.snap = s.revalidated
	return s.revalidated
}

func authed(role account.Role, expertise string) session.Snapshot {
	return session.Snapshot{
		State:    session.StateAuthenticated,
		User:     &account.User{ID: "u", Role: role, Expertise: expertise},
		HasToken: true,
	}
}

func TestCapabilityMatrix(t *testing.T) {
	tests := []struct {
		name       string
		snap       session.Snapshot
		capability Capability
		want       Outcome
		target     string
	}{
		{"member on open route", authed(account.RoleMember, ""), CapNone, Render, ""},
		{"admin on admin route", authed(account.RoleAdmin, ""), CapAdminOnly, Render, ""},
		{"manager on admin route", authed(account.RoleManager, ""), CapAdminOnly, RedirectDefault, DashboardRoute},
		{"member on admin route", authed(account.RoleMember, ""), CapAdminOnly, RedirectDefault, DashboardRoute},
		{"admin manages projects", authed(account.RoleAdmin, ""), CapManageProjects, Render, ""},
		{"manager manages projects", authed(account.RoleManager, ""), CapManageProjects, Render, ""},
		{"administrative expertise manages projects", authed(account.RoleMember, "administrative"), CapManageProjects, Render, ""},
		{"member cannot manage projects", authed(account.RoleMember, "design"), CapManageProjects, RedirectDefault, DashboardRoute},
		{"manager on pm route", authed(account.RoleManager, ""), CapProjectManagerOnly, Render, ""},
		{"admin on pm route", authed(account.RoleAdmin, ""), CapProjectManagerOnly, RedirectDefault, ProjectsRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubSessions{snap: tt.snap}
			d := New(stub, log.Discard()).Check(context.Background(), tt.capability)

			assert.Equal(t, tt.want, d.Outcome)
			assert.Equal(t, tt.target, d.Target)
			assert.Equal(t, 0, stub.calls)
		})
	}
}

func TestLegacyManagerSpellingPassesManagerChecks(t *testing.T) {
	u := &account.User{Role: account.NormalizeRole("project_manager")}

	assert.True(t, CapProjectManagerOnly.Allows(u))
	assert.True(t, CapManageProjects.Allows(u))
	assert.False(t, CapAdminOnly.Allows(u))
}

func TestNoTokenRedirectsToLogin(t *testing.T) {
	stub := &stubSessions{snap: session.Snapshot{State: session.StateUnauthenticated}}

	d := New(stub, log.Discard()).Check(context.Background(), CapNone)

	assert.Equal(t, RedirectLogin, d.Outcome)
	assert.Equal(t, LoginRoute, d.Target)
	assert.Equal(t, 0, stub.calls)
}

func TestCheckingIsLoading(t *testing.T) {
	stub := &stubSessions{snap: session.Snapshot{State: session.StateChecking, HasToken: true}}

	d := New(stub, log.Discard()).Check(context.Background(), CapNone)

	assert.Equal(t, Loading, d.Outcome)
	assert.Equal(t, 0, stub.calls)
}

func TestTokenWithoutUserRevalidates(t *testing.T) {
	tests := []struct {
		name        string
		revalidated session.Snapshot
		want        Outcome
		target      string
	}{
		{"hydrated by revalidation", authed(account.RoleAdmin, ""), Render, ""},
		{"token rejected during revalidation", session.Snapshot{State: session.StateUnauthenticated}, RedirectLogin, LoginRoute},
		{"still unresolved", session.Snapshot{State: session.StateError, HasToken: true}, Reload, ReloadRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubSessions{
				snap:        session.Snapshot{State: session.StateIdle, HasToken: true},
				revalidated: tt.revalidated,
			}

			d := New(stub, log.Discard()).Check(context.Background(), CapAdminOnly)

			assert.Equal(t, 1, stub.calls, "exactly one revalidation pass")
			assert.Equal(t, tt.want, d.Outcome)
			assert.Equal(t, tt.target, d.Target)
		})
	}
}

func TestOutcomeStrings(t *testing.T) {
	assert.Equal(t, "render", Render.String())
	assert.Equal(t, "reload", Reload.String())
	assert.Equal(t, "admin-only", CapAdminOnly.String())
	assert.Equal(t, "authenticated", CapNone.String())
}

// The scenarios below run the guard against a real container and a fake backend.

func newContainer(t *testing.T) (*platformtest.Backend, *platform.Client, *tokenstore.Store, *tokenstore.FileArea, *tokenstore.MemoryArea, *session.Container) {
	t.Helper()
	b := platformtest.New(t)
	b.AddUser("secret", account.User{ID: "u1", Email: "ada@example.com", Role: account.RoleAdmin})
	c := platform.NewClient(b.URL(), platform.Config{Timeout: time.Second, InitialBackoff: time.Millisecond, Logger: log.Discard()})
	fa, err := tokenstore.NewFileArea(filepath.Join(t.TempDir(), "storage.json"))
	require.NoError(t, err)
	ma := tokenstore.NewMemoryArea()
	store := tokenstore.New(fa, ma, log.Discard())
	return b, c, store, fa, ma, session.NewContainer(store, c, log.Discard())
}

func TestScenarioAdminRestoredRendersAdminRoute(t *testing.T) {
	b, _, _, fa, _, sessions := newContainer(t)
	b.IssueToken("abc", "ada@example.com")
	require.NoError(t, fa.Set(tokenstore.KeyToken, "abc"))
	ctx := context.Background()

	sessions.Restore(ctx)
	d := New(sessions, log.Discard()).Check(ctx, CapAdminOnly)

	assert.Equal(t, Render, d.Outcome)
	require.NotNil(t, d.Session.User)
	assert.Equal(t, account.RoleAdmin, d.Session.User.Role)
}

func TestScenarioExpiredTokenRedirectsToLogin(t *testing.T) {
	_, _, _, fa, ma, sessions := newContainer(t)
	require.NoError(t, fa.Set(tokenstore.KeyToken, "expired"))
	ctx := context.Background()

	sessions.Restore(ctx)
	d := New(sessions, log.Discard()).Check(ctx, CapNone)

	assert.Equal(t, RedirectLogin, d.Outcome)
	_, pok, _ := fa.Get(tokenstore.KeyToken)
	_, sok, _ := ma.Get(tokenstore.KeyToken)
	assert.False(t, pok)
	assert.False(t, sok)
}

func TestScenarioForbiddenElsewhereRedirectsToLogin(t *testing.T) {
	b, c, store, _, _, sessions := newContainer(t)
	ctx := context.Background()
	_, err := sessions.Login(ctx, "ada@example.com", "secret", true)
	require.NoError(t, err)

	b.FailNext(http.MethodGet, "/notifications", http.StatusForbidden, 1)
	_, err = c.ListNotifications(ctx)
	require.Error(t, err)

	assert.False(t, store.HasToken())
	d := New(sessions, log.Discard()).Check(ctx, CapNone)
	assert.Equal(t, RedirectLogin, d.Outcome)
}

func TestScenarioTransientFailureReloads(t *testing.T) {
	b, _, store, _, _, sessions := newContainer(t)
	b.IssueToken("abc", "ada@example.com")
	b.FailNext(http.MethodGet, platform.ProfilePath, http.StatusServiceUnavailable, 2)
	store.Save("abc", true)
	ctx := context.Background()

	assert.Equal(t, session.StateError, sessions.Restore(ctx).State)
	d := New(sessions, log.Discard()).Check(ctx, CapNone)

	assert.Equal(t, Reload, d.Outcome)
	assert.Equal(t, ReloadRoute, d.Target)
	assert.Equal(t, "abc", store.Token(), "transient failures never cost the token")
	assert.Equal(t, 2, b.Calls(http.MethodGet, platform.ProfilePath))
}
