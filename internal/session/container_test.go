package session_test

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/taskdesk/internal/account"
	"github.com/felixgeelhaar/taskdesk/internal/errors"
	"github.com/felixgeelhaar/taskdesk/internal/log"
	"github.com/felixgeelhaar/taskdesk/internal/platform"
	"github.com/felixgeelhaar/taskdesk/internal/platform/platformtest"
	"github.com/felixgeelhaar/taskdesk/internal/session"
	"github.com/felixgeelhaar/taskdesk/internal/tokenstore"
)

type harness struct {
	backend    *platformtest.Backend
	client     *platform.Client
	persistent *tokenstore.FileArea
	sessionTab *tokenstore.MemoryArea
	store      *tokenstore.Store
	container  *session.Container
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := platformtest.New(t)
	b.AddUser("secret", account.User{ID: "u1", Email: "ada@example.com", Role: account.RoleAdmin})
	b.AddUser("secret", account.User{ID: "u2", Email: "pm@example.com", Role: account.Role("project_manager")})

	return newHarnessWith(t, b, platform.NewClient(b.URL(), platform.Config{
		Timeout:        time.Second,
		InitialBackoff: time.Millisecond,
		Logger:         log.Discard(),
	}))
}

func newHarnessWith(t *testing.T, b *platformtest.Backend, c *platform.Client) *harness {
	t.Helper()
	fa, err := tokenstore.NewFileArea(filepath.Join(t.TempDir(), "storage.json"))
	require.NoError(t, err)
	ma := tokenstore.NewMemoryArea()
	store := tokenstore.New(fa, ma, log.Discard())

	return &harness{
		backend:    b,
		client:     c,
		persistent: fa,
		sessionTab: ma,
		store:      store,
		container:  session.NewContainer(store, c, log.Discard()),
	}
}

func tokenIn(t *testing.T, a tokenstore.Area) (string, bool) {
	t.Helper()
	v, ok, err := a.Get(tokenstore.KeyToken)
	require.NoError(t, err)
	return v, ok
}

func TestLoginStoresTokenInSelectedArea(t *testing.T) {
	tests := []struct {
		name     string
		remember bool
	}{
		{"remember me", true},
		{"this session only", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.backend.SetLoginToken("abc")

			user, err := h.container.Login(context.Background(), "ada@example.com", "secret", tt.remember)
			require.NoError(t, err)
			assert.Equal(t, account.RoleAdmin, user.Role)

			pv, pok := tokenIn(t, h.persistent)
			sv, sok := tokenIn(t, h.sessionTab)
			assert.Equal(t, tt.remember, pok)
			assert.Equal(t, !tt.remember, sok)
			if tt.remember {
				assert.Equal(t, "abc", pv)
			} else {
				assert.Equal(t, "abc", sv)
			}

			snap := h.container.Snapshot()
			assert.Equal(t, session.StateAuthenticated, snap.State)
			assert.True(t, snap.HasToken)
			assert.Equal(t, "Bearer abc", h.client.DefaultHeaders().Get(platform.HeaderAuthorization))

			lu, ok := h.store.LastUser()
			require.True(t, ok)
			assert.Equal(t, "ada@example.com", lu.Email)
		})
	}
}

func TestLoginRejectedWritesNothing(t *testing.T) {
	h := newHarness(t)

	user, err := h.container.Login(context.Background(), "ada@example.com", "wrong", true)
	require.Error(t, err)
	assert.Nil(t, user)
	assert.Equal(t, errors.ErrCodeAuthInvalidCredentials, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "invalid email or password")

	_, pok := tokenIn(t, h.persistent)
	_, sok := tokenIn(t, h.sessionTab)
	assert.False(t, pok)
	assert.False(t, sok)
	assert.Nil(t, h.container.Snapshot().User)
	assert.False(t, h.client.HasAuth())
}

// readOnlyArea reads as empty and refuses every write, like a read-only
// home directory.
type readOnlyArea struct{}

func (readOnlyArea) Get(string) (string, bool, error) { return "", false, nil }
func (readOnlyArea) Set(string, string) error         { return fmt.Errorf("read-only file system") }
func (readOnlyArea) Delete(string) error              { return nil }

func TestLoginStoreFailureStaysUnauthenticated(t *testing.T) {
	h := newHarness(t)
	h.backend.SetLoginToken("abc")
	ma := tokenstore.NewMemoryArea()
	store := tokenstore.New(readOnlyArea{}, ma, log.Discard())
	container := session.NewContainer(store, h.client, log.Discard())

	user, err := container.Login(context.Background(), "ada@example.com", "secret", true)
	require.Error(t, err)
	assert.Nil(t, user)
	assert.Equal(t, errors.ErrCodeStoreWriteFailed, errors.CodeOf(err))

	snap := container.Snapshot()
	assert.Equal(t, session.StateUnauthenticated, snap.State)
	assert.Nil(t, snap.User)
	assert.False(t, snap.HasToken)
	assert.Equal(t, errors.ErrCodeStoreWriteFailed, errors.CodeOf(snap.Err))
	assert.False(t, h.client.HasAuth(), "an unsaved token must not authorize requests")

	_, ok := store.LastUser()
	assert.False(t, ok, "no breadcrumb for a session that was never stored")
	_, sok := tokenIn(t, ma)
	assert.False(t, sok)
}

func TestLoginRejectedKeepsExistingSession(t *testing.T) {
	h := newHarness(t)
	h.backend.IssueToken("abc", "ada@example.com")
	h.store.Save("abc", true)
	ctx := context.Background()
	require.Equal(t, session.StateAuthenticated, h.container.Restore(ctx).State)

	_, err := h.container.Login(ctx, "ada@example.com", "wrong", true)
	require.Error(t, err)

	assert.Equal(t, "abc", h.store.Token(), "a failed login must not clear the live session")
	assert.Equal(t, session.StateAuthenticated, h.container.Snapshot().State)
}

func TestLoginNetworkFailure(t *testing.T) {
	b := platformtest.New(t)
	c := platform.NewClient("http://127.0.0.1:1/api", platform.Config{Timeout: time.Second, Logger: log.Discard()})
	h := newHarnessWith(t, b, c)

	_, err := h.container.Login(context.Background(), "ada@example.com", "secret", true)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAPIUnavailable, errors.CodeOf(err))
	assert.False(t, h.store.HasToken())
}

func TestRestoreWithoutTokenSkipsNetwork(t *testing.T) {
	h := newHarness(t)

	snap := h.container.Restore(context.Background())

	assert.Equal(t, session.StateUnauthenticated, snap.State)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Err)
	assert.Equal(t, 0, h.backend.Calls(http.MethodGet, platform.ProfilePath))
}

func TestRestoreAuthenticated(t *testing.T) {
	h := newHarness(t)
	h.backend.IssueToken("abc", "ada@example.com")
	require.NoError(t, h.persistent.Set(tokenstore.KeyToken, "abc"))

	snap := h.container.Restore(context.Background())

	assert.Equal(t, session.StateAuthenticated, snap.State)
	require.NotNil(t, snap.User)
	assert.Equal(t, account.RoleAdmin, snap.User.Role)
	assert.True(t, snap.User.IsAdmin())
	assert.Equal(t, "Bearer abc", h.client.DefaultHeaders().Get(platform.HeaderAuthorization))
	assert.Equal(t, "abc", h.client.DefaultHeaders().Get(platform.HeaderLegacyToken))
}

func TestRestoreNormalizesLegacyRole(t *testing.T) {
	h := newHarness(t)
	h.backend.IssueToken("pm", "pm@example.com")
	h.store.Save("pm", false)

	snap := h.container.Restore(context.Background())

	require.NotNil(t, snap.User)
	assert.Equal(t, account.RoleManager, snap.User.Role)
	v, ok := tokenIn(t, h.sessionTab)
	assert.True(t, ok, "token is rewritten into the area it came from")
	assert.Equal(t, "pm", v)
	_, pok := tokenIn(t, h.persistent)
	assert.False(t, pok)
}

func TestRestoreRunsOncePerMount(t *testing.T) {
	h := newHarness(t)
	h.backend.IssueToken("abc", "ada@example.com")
	h.backend.Delay(http.MethodGet, platform.ProfilePath, 50*time.Millisecond)
	h.store.Save("abc", true)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]session.Snapshot, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.container.Restore(ctx)
		}(i)
	}
	wg.Wait()
	h.container.Restore(ctx)

	assert.Equal(t, 1, h.backend.Calls(http.MethodGet, platform.ProfilePath))
	for _, r := range results {
		assert.Equal(t, session.StateAuthenticated, r.State)
	}

	h.container.Remount()
	assert.Equal(t, session.StateIdle, h.container.Snapshot().State)
	assert.Nil(t, h.container.Snapshot().User)
	h.container.Restore(ctx)
	assert.Equal(t, 2, h.backend.Calls(http.MethodGet, platform.ProfilePath))
	assert.Equal(t, 2, h.container.Snapshot().Mount)
}

func TestRestoreExpiredTokenClearsEverything(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.persistent.Set(tokenstore.KeyToken, "expired"))

	snap := h.container.Restore(context.Background())

	assert.Equal(t, session.StateUnauthenticated, snap.State)
	assert.Nil(t, snap.User)
	assert.False(t, snap.HasToken)
	assert.Equal(t, errors.ErrCodeAuthSessionExpired, errors.CodeOf(snap.Err))
	_, pok := tokenIn(t, h.persistent)
	_, sok := tokenIn(t, h.sessionTab)
	assert.False(t, pok)
	assert.False(t, sok)
	assert.False(t, h.client.HasAuth())
}

func TestRestoreForbiddenClearsEverything(t *testing.T) {
	h := newHarness(t)
	h.backend.IssueToken("abc", "ada@example.com")
	h.backend.FailNext(http.MethodGet, platform.ProfilePath, http.StatusForbidden, 1)
	h.store.Save("abc", false)

	snap := h.container.Restore(context.Background())

	assert.Equal(t, session.StateUnauthenticated, snap.State)
	assert.False(t, h.store.HasToken())
}

func TestRestoreTransientFailureKeepsToken(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		h := newHarness(t)
		h.backend.IssueToken("abc", "ada@example.com")
		h.backend.FailNext(http.MethodGet, platform.ProfilePath, http.StatusInternalServerError, 1)
		h.store.Save("abc", true)

		snap := h.container.Restore(context.Background())

		assert.Equal(t, session.StateError, snap.State)
		assert.Nil(t, snap.User)
		assert.True(t, snap.HasToken)
		assert.Equal(t, errors.ErrCodeSessionRestoreFailed, errors.CodeOf(snap.Err))
		v, ok := tokenIn(t, h.persistent)
		assert.True(t, ok)
		assert.Equal(t, "abc", v)
		assert.Equal(t, 1, h.backend.Calls(http.MethodGet, platform.ProfilePath), "auth path never retries")
	})

	t.Run("timeout", func(t *testing.T) {
		b := platformtest.New(t)
		b.AddUser("secret", account.User{ID: "u1", Email: "ada@example.com", Role: account.RoleAdmin})
		b.IssueToken("abc", "ada@example.com")
		b.Delay(http.MethodGet, platform.ProfilePath, 300*time.Millisecond)
		c := platform.NewClient(b.URL(), platform.Config{Timeout: 30 * time.Millisecond, Logger: log.Discard()})
		h := newHarnessWith(t, b, c)
		h.store.Save("abc", true)

		snap := h.container.Restore(context.Background())

		assert.Equal(t, session.StateError, snap.State)
		assert.Nil(t, snap.User)
		assert.Equal(t, "abc", h.store.Token())
	})
}

func TestRevalidateIgnoresMountGuard(t *testing.T) {
	h := newHarness(t)
	h.backend.IssueToken("abc", "ada@example.com")
	h.backend.FailNext(http.MethodGet, platform.ProfilePath, http.StatusBadGateway, 1)
	h.store.Save("abc", true)
	ctx := context.Background()

	assert.Equal(t, session.StateError, h.container.Restore(ctx).State)
	assert.Equal(t, session.StateError, h.container.Restore(ctx).State)
	assert.Equal(t, 1, h.backend.Calls(http.MethodGet, platform.ProfilePath))

	snap := h.container.Revalidate(ctx)
	assert.Equal(t, session.StateAuthenticated, snap.State)
	assert.Equal(t, 2, h.backend.Calls(http.MethodGet, platform.ProfilePath))
}

func TestBackendRejectionInvalidatesSession(t *testing.T) {
	h := newHarness(t)
	h.backend.SetLoginToken("abc")
	ctx := context.Background()
	_, err := h.container.Login(ctx, "ada@example.com", "secret", true)
	require.NoError(t, err)

	h.backend.FailNext(http.MethodGet, "/projects", http.StatusForbidden, 1)
	_, err = h.client.ListProjects(ctx)
	require.Error(t, err)

	snap := h.container.Snapshot()
	assert.Equal(t, session.StateUnauthenticated, snap.State)
	assert.Nil(t, snap.User)
	assert.False(t, snap.HasToken)
	assert.False(t, h.client.HasAuth())
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.backend.SetLoginToken("abc")
	ctx := context.Background()
	_, err := h.container.Login(ctx, "ada@example.com", "secret", false)
	require.NoError(t, err)

	h.backend.FailNext(http.MethodPost, platform.LogoutPath, http.StatusInternalServerError, 1)
	h.container.Logout(ctx)

	assert.Equal(t, 1, h.backend.Calls(http.MethodPost, platform.LogoutPath))
	snap := h.container.Snapshot()
	assert.Equal(t, session.StateUnauthenticated, snap.State)
	assert.Nil(t, snap.User)
	assert.False(t, h.store.HasToken())
	assert.False(t, h.client.HasAuth())
}

func TestLogoutWithoutTokenSkipsBackend(t *testing.T) {
	h := newHarness(t)

	h.container.Logout(context.Background())

	assert.Equal(t, 0, h.backend.Calls(http.MethodPost, platform.LogoutPath))
	assert.Equal(t, session.StateUnauthenticated, h.container.Snapshot().State)
}

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	name := "Augusta"

	_, err := h.container.UpdateProfile(ctx, platform.ProfileUpdate{FirstName: &name})
	assert.Equal(t, errors.ErrCodeAuthNotLoggedIn, errors.CodeOf(err))

	_, err = h.container.Login(ctx, "ada@example.com", "secret", true)
	require.NoError(t, err)

	user, err := h.container.UpdateProfile(ctx, platform.ProfileUpdate{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Augusta", user.FirstName)
	assert.Equal(t, "Augusta", h.container.Snapshot().User.FirstName)
}

func TestLoginCompletesMountRestore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.container.Login(ctx, "ada@example.com", "secret", true)
	require.NoError(t, err)

	snap := h.container.Restore(ctx)

	assert.Equal(t, session.StateAuthenticated, snap.State)
	assert.Equal(t, 0, h.backend.Calls(http.MethodGet, platform.ProfilePath))
}

func TestSubscribeSeesTransitions(t *testing.T) {
	h := newHarness(t)
	h.backend.IssueToken("abc", "ada@example.com")
	h.store.Save("abc", true)

	var mu sync.Mutex
	var states []session.State
	unsubscribe := h.container.Subscribe(func(s session.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s.State)
	})

	h.container.Restore(context.Background())
	unsubscribe()
	h.container.Remount()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []session.State{session.StateChecking, session.StateAuthenticated}, states)
}

func TestSnapshotDoesNotAliasUser(t *testing.T) {
	h := newHarness(t)
	_, err := h.container.Login(context.Background(), "ada@example.com", "secret", true)
	require.NoError(t, err)

	snap := h.container.Snapshot()
	snap.User.Role = account.RoleMember

	assert.Equal(t, account.RoleAdmin, h.container.Snapshot().User.Role)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "idle", session.StateIdle.String())
	assert.Equal(t, "checking", session.StateChecking.String())
	assert.Equal(t, "error", session.StateError.String())
	assert.True(t, session.StateError.Settled())
	assert.False(t, session.StateChecking.Settled())
}
