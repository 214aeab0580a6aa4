package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/taskdesk/internal/account"
	"github.com/felixgeelhaar/taskdesk/internal/app"
	"github.com/felixgeelhaar/taskdesk/internal/session"
)

type stubBackend struct {
	mu        sync.Mutex
	snap      session.Snapshot
	pages     map[string]*app.Page
	navErr    error
	loginErr  error
	navigated []string
	logins    []Credentials
	loggedOut bool
}

func newStub() *stubBackend {
	return &stubBackend{
		pages: map[string]*app.Page{
			"/dashboard": {Route: "/dashboard", Title: "Dashboard", Body: "Welcome back, Ada."},
			"/projects":  {Route: "/projects", Title: "Projects", Body: "p1  Website relaunch"},
			"/login":     {Route: "/login", Title: "Sign in", Body: "You are not signed in."},
		},
	}
}

func (s *stubBackend) Mount(context.Context) session.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *stubBackend) Navigate(_ context.Context, path string) (*app.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigated = append(s.navigated, path)
	if s.navErr != nil {
		return nil, s.navErr
	}
	if s.snap.User == nil {
		p := *s.pages["/login"]
		p.Redirects = []string{path}
		return &p, nil
	}
	return s.pages[path], nil
}

func (s *stubBackend) Login(_ context.Context, email, password string, remember bool) (*account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins = append(s.logins, Credentials{Email: email, Password: password, Remember: remember})
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	s.snap = session.Snapshot{State: session.StateAuthenticated, User: &account.User{Email: email, Role: account.RoleMember}, HasToken: true}
	return s.snap.User, nil
}

func (s *stubBackend) Logout(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedOut = true
	s.snap = session.Snapshot{State: session.StateUnauthenticated}
}

func (s *stubBackend) Snapshot() session.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func authedStub() *stubBackend {
	s := newStub()
	s.snap = session.Snapshot{
		State:    session.StateAuthenticated,
		User:     &account.User{Email: "ada@example.com", Role: account.RoleAdmin},
		HasToken: true,
	}
	return s
}

// step feeds msg to m and runs the returned command once.
func step(t *testing.T, m Shell, msg tea.Msg) (Shell, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(msg)
	shell, ok := next.(Shell)
	require.True(t, ok)
	if cmd == nil {
		return shell, nil
	}
	return shell, cmd()
}

// apply feeds msg to m without running the returned command.
func apply(t *testing.T, m Shell, msg tea.Msg) Shell {
	t.Helper()
	next, _ := m.Update(msg)
	shell, ok := next.(Shell)
	require.True(t, ok)
	return shell
}

func typeRoute(t *testing.T, m Shell, route string) (Shell, tea.Msg) {
	t.Helper()
	m.input.SetValue(route)
	return step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestShellShowsSpinnerWhileChecking(t *testing.T) {
	b := newStub()
	m := NewShell(context.Background(), b, "", nil)

	assert.Equal(t, "/dashboard", m.start)
	assert.Contains(t, m.View(), "Checking session...")

	m = apply(t, m, sessionMsg(session.Snapshot{State: session.StateChecking, HasToken: true}))
	m.busy = ""
	assert.Contains(t, m.View(), "Checking session...")
}

func TestShellMountNavigatesToStart(t *testing.T) {
	b := authedStub()
	m := NewShell(context.Background(), b, "/projects", nil)

	m, msg := step(t, m, mountedMsg{snap: b.snap})
	require.IsType(t, pageMsg{}, msg)
	assert.Equal(t, []string{"/projects"}, b.navigated)

	m = apply(t, m, msg)
	view := m.View()
	assert.Contains(t, view, "Projects")
	assert.Contains(t, view, "Website relaunch")
	assert.Contains(t, view, "ada@example.com (admin)")
	assert.Nil(t, m.form)
	assert.Equal(t, []string{"/projects"}, m.history)
}

func TestShellLoginPageOpensForm(t *testing.T) {
	b := newStub()
	m := NewShell(context.Background(), b, "/projects", nil)

	m, msg := step(t, m, mountedMsg{snap: b.snap})
	m = apply(t, m, msg)

	require.NotNil(t, m.form)
	assert.Equal(t, "/projects", m.afterAuth, "login returns to the page that redirected")
	assert.Contains(t, m.View(), "signed out")
}

func TestShellLoginSuccessNavigatesBack(t *testing.T) {
	b := newStub()
	m := NewShell(context.Background(), b, "/projects", nil)
	m.afterAuth = "/projects"

	msg := m.login(Credentials{Email: "ada@example.com", Password: "secret", Remember: true}, "/projects")()
	login, ok := msg.(loginMsg)
	require.True(t, ok)
	require.NoError(t, login.err)
	assert.Equal(t, []Credentials{{Email: "ada@example.com", Password: "secret", Remember: true}}, b.logins)

	m, page := step(t, m, login)
	m = apply(t, m, page)
	assert.Equal(t, "/projects", m.page.Route)
	assert.Contains(t, m.View(), "ada@example.com (member)")
}

func TestShellLoginFailureReopensForm(t *testing.T) {
	b := newStub()
	b.loginErr = errors.New("[AUTH-001] login rejected: invalid credentials\n\nSuggestions: ...")
	m := NewShell(context.Background(), b, "", nil)
	m.creds = &Credentials{Email: "ada@example.com", Password: "nope"}

	msg := m.login(*m.creds, "/dashboard")()
	m = apply(t, m, msg)

	require.NotNil(t, m.form)
	require.Error(t, m.err)
	view := m.View()
	assert.Contains(t, view, "login rejected")
	assert.NotContains(t, view, "Suggestions")
	assert.Equal(t, "ada@example.com", m.creds.Email, "email is kept for the retry")
}

func TestShellCommands(t *testing.T) {
	b := authedStub()
	m := NewShell(context.Background(), b, "", nil)
	m, msg := step(t, m, mountedMsg{snap: b.snap})
	m = apply(t, m, msg)

	m, msg = typeRoute(t, m, "/projects")
	m = apply(t, m, msg)
	assert.Equal(t, "/projects", m.page.Route)
	assert.Equal(t, "", m.input.Value())

	m, msg = typeRoute(t, m, "back")
	m = apply(t, m, msg)
	assert.Equal(t, "/dashboard", m.page.Route)

	m, msg = typeRoute(t, m, "")
	require.NotNil(t, msg)
	assert.Equal(t, "/dashboard", b.navigated[len(b.navigated)-1])

	m, msg = typeRoute(t, m, "logout")
	assert.True(t, b.loggedOut)
	m = apply(t, m, msg)
	assert.Equal(t, "/login", m.page.Route)
	assert.NotNil(t, m.form)

	m = apply(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, m.form)

	m, _ = typeRoute(t, m, "quit")
	assert.True(t, m.quitting)
	assert.Empty(t, m.View())
}

func TestShellNavigationError(t *testing.T) {
	b := authedStub()
	b.navErr = errors.New("[ROUTE-001] unknown route: /nope\n\nSuggestions:\n  • Run 'taskdesk open --list'")
	m := NewShell(context.Background(), b, "", nil)

	m, msg := typeRoute(t, m, "/nope")
	m = apply(t, m, msg)

	view := m.View()
	assert.Contains(t, view, "unknown route: /nope")
	assert.False(t, strings.Contains(view, "Suggestions"))

	m = apply(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.NoError(t, m.err)
}

func TestShellCtrlCQuits(t *testing.T) {
	m := NewShell(context.Background(), newStub(), "", nil)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, next.(Shell).quitting)
	assert.NotNil(t, cmd)
}

func TestShellListensForSessionUpdates(t *testing.T) {
	ch := make(chan session.Snapshot, 1)
	m := NewShell(context.Background(), newStub(), "", ch)

	ch <- session.Snapshot{State: session.StateError, HasToken: true}
	msg := m.listen()()
	next, follow := m.Update(msg)
	m = next.(Shell)
	assert.Equal(t, session.StateError, m.snap.State)
	require.NotNil(t, follow, "the shell keeps listening")

	m.busy = ""
	assert.Contains(t, m.View(), "backend unreachable")

	close(ch)
	assert.Nil(t, follow())
}
