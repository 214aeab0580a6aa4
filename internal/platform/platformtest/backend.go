// Package platformtest provides an in-process fake of the task-management
// backend for tests. It speaks the same REST contract as the real service,
// tracks call counts, and can be told to fail or stall specific endpoints.
package platformtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskdesk/internal/account"
	"github.com/felixgeelhaar/taskdesk/internal/platform"
)

// APIPrefix is where the fake mounts its routes.
const APIPrefix = "/api"

// TokenTTL is the lifetime written into the JWTs issued by login.
const TokenTTL = time.Hour

var signingKey = []byte("platformtest")

func issueJWT(u account.User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   u.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
}

type failure struct {
	status    int
	remaining int
}

// Backend is a fake platform backend.
type Backend struct {
	server *httptest.Server
	router chi.Router

	mu          sync.Mutex
	passwords   map[string]string
	users       map[string]account.User
	tokens      map[string]string
	nextToken   string
	failures    map[string]*failure
	delays      map[string]time.Duration
	calls       map[string]int
	lastHeaders map[string]http.Header

	projects      []platform.Project
	tasks         []platform.Task
	notifications []platform.Notification
}

// New starts a fake backend that is shut down when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		passwords:   make(map[string]string),
		users:       make(map[string]account.User),
		tokens:      make(map[string]string),
		failures:    make(map[string]*failure),
		delays:      make(map[string]time.Duration),
		calls:       make(map[string]int),
		lastHeaders: make(map[string]http.Header),
		projects: []platform.Project{
			{ID: "p1", Name: "Website relaunch", Status: "active"},
			{ID: "p2", Name: "Quarterly audit", Status: "planning"},
		},
		tasks: []platform.Task{
			{ID: "t1", ProjectID: "p1", Title: "Draft sitemap", Status: "todo"},
			{ID: "t2", ProjectID: "p1", Title: "Pick CMS", Status: "done"},
			{ID: "t3", ProjectID: "p2", Title: "Collect invoices", Status: "in_progress"},
		},
		notifications: []platform.Notification{
			{ID: "n1", Message: "You were assigned to Draft sitemap"},
		},
	}

	b.router = b.routes()
	b.server = httptest.NewServer(b.router)
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the API base URL to hand to platform.NewClient.
func (b *Backend) URL() string {
	return b.server.URL + APIPrefix
}

// AddUser registers credentials and the profile returned for them.
func (b *Backend) AddUser(password string, u account.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.passwords[u.Email] = password
	b.users[u.Email] = u
}

// IssueToken makes token valid for the user with the given email.
func (b *Backend) IssueToken(token, email string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[token] = email
}

// RevokeToken invalidates token.
func (b *Backend) RevokeToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, token)
}

// SetLoginToken fixes the token returned by the next successful login.
func (b *Backend) SetLoginToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextToken = token
}

// FailNext makes the next n calls to "METHOD /path" answer with status.
// Paths are relative to the API prefix, e.g. FailNext("GET", "/auth/profile", 500, 1).
func (b *Backend) FailNext(method, path string, status, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[key(method, path)] = &failure{status: status, remaining: n}
}

// Delay stalls every call to "METHOD /path" by d.
func (b *Backend) Delay(method, path string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delays[key(method, path)] = d
}

// Calls returns how many requests reached "METHOD /path".
func (b *Backend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key(method, path)]
}

// LastHeaders returns the headers of the most recent call to "METHOD /path".
func (b *Backend) LastHeaders(method, path string) http.Header {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastHeaders[key(method, path)].Clone()
}

func key(method, path string) string {
	return method + " " + path
}

// Endpoints lists the operations the fake serves, relative to APIPrefix.
func (b *Backend) Endpoints() ([]platform.Endpoint, error) {
	var eps []platform.Endpoint
	err := chi.Walk(b.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		eps = append(eps, platform.Endpoint{Method: method, Path: strings.TrimPrefix(route, APIPrefix)})
		return nil
	})
	return eps, err
}

func (b *Backend) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Use(b.record)
		r.Use(b.inject)

		r.Post(platform.LoginPath, b.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(b.authenticate)

			r.Post(platform.LogoutPath, b.handleLogout)
			r.Get(platform.ProfilePath, b.handleProfile)
			r.Put(platform.ProfilePath, b.handleUpdateProfile)

			r.Get("/projects", b.handleProjects)
			r.Get("/projects/{id}", b.handleProject)
			r.Get("/tasks", b.handleTasks)
			r.Get("/notifications", b.handleNotifications)
			r.Put("/notifications/{id}/read", b.handleMarkRead)
			r.Get("/calendar/events", b.handleEmptyList("events"))
			r.Get("/documents", b.handleEmptyList("documents"))
			r.Get("/wiki/pages", b.handleEmptyList("pages"))

			r.With(b.requireAdmin).Get("/users", b.handleUsers)
		})
	})
	return r
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		k := key(r.Method, strings.TrimPrefix(r.URL.Path, APIPrefix))
		b.mu.Lock()
		b.calls[k]++
		b.lastHeaders[k] = r.Header.Clone()
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		k := key(r.Method, strings.TrimPrefix(r.URL.Path, APIPrefix))

		b.mu.Lock()
		delay := b.delays[k]
		var status int
		if f, ok := b.failures[k]; ok && f.remaining > 0 {
			f.remaining--
			status = f.status
		}
		b.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			writeError(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxUser struct{}

func (b *Backend) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get(platform.HeaderAuthorization), "Bearer ")
		if token == "" {
			token = r.Header.Get(platform.HeaderLegacyToken)
		}

		b.mu.Lock()
		email, ok := b.tokens[token]
		user, known := b.users[email]
		b.mu.Unlock()

		if token == "" || !ok || !known {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func (b *Backend) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := userFrom(r.Context()); !u.IsAdmin() {
			writeError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req platform.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	pw, ok := b.passwords[req.Email]
	if !ok || pw != req.Password {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token := b.nextToken
	if token == "" {
		var err error
		if token, err = issueJWT(b.users[req.Email]); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	b.nextToken = ""
	b.tokens[token] = req.Email

	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": b.users[req.Email]})
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get(platform.HeaderAuthorization), "Bearer ")
	b.RevokeToken(token)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"user": userFrom(r.Context())})
}

func (b *Backend) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd platform.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u := *userFrom(r.Context())
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.Expertise != nil {
		u.Expertise = *upd.Expertise
	}
	if upd.ImageURL != nil {
		u.ImageURL = *upd.ImageURL
	}

	b.mu.Lock()
	b.users[u.Email] = u
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (b *Backend) handleProjects(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"projects": b.projects})
}

func (b *Backend) handleProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.projects {
		if p.ID == id {
			writeJSON(w, http.StatusOK, map[string]any{"project": p})
			return
		}
	}
	writeError(w, http.StatusNotFound, "project not found")
}

func (b *Backend) handleTasks(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("projectId")
	b.mu.Lock()
	defer b.mu.Unlock()

	tasks := make([]platform.Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		if projectID == "" || t.ProjectID == projectID {
			tasks = append(tasks, t)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (b *Backend) handleNotifications(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"notifications": b.notifications})
}

func (b *Backend) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.notifications {
		if b.notifications[i].ID == id {
			b.notifications[i].Read = true
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "notification not found")
}

func (b *Backend) handleUsers(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	users := make([]account.User, 0, len(b.users))
	for _, u := range b.users {
		users = append(users, u)
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (b *Backend) handleEmptyList(field string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{field: []any{}})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
