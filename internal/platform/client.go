// Package platform is the HTTP client for the task-management REST backend.
//
// A single Client is shared by the whole process. Authentication is applied
// through default headers (see ConfigureAuth) rather than per call, and any
// 401/403 outside the login call is reported to the hook registered with
// OnUnauthorized.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskdesk/internal/log"
	"github.com/felixgeelhaar/taskdesk/internal/version"
)

// Header names used for authentication. The backend still accepts the legacy
// x-auth-token header from older clients, so both are sent.
const (
	HeaderAuthorization = "Authorization"
	HeaderLegacyToken   = "X-Auth-Token"
	HeaderRequestID     = "X-Request-ID"
)

// Config tunes a Client. Zero values select defaults.
type Config struct {
	// Timeout bounds every request. Defaults to 30s.
	Timeout time.Duration

	// MaxTries is the attempt budget for retried data fetches. Defaults to 3.
	MaxTries uint

	// InitialBackoff is the first retry delay. Defaults to 500ms.
	InitialBackoff time.Duration

	// Transport is the underlying RoundTripper. Defaults to http.DefaultTransport.
	Transport http.RoundTripper

	Logger *log.Logger
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Second,
		MaxTries:       3,
		InitialBackoff: 500 * time.Millisecond,
	}
}

// UnauthorizedFunc is called when a request other than login is rejected with
// 401 or 403.
type UnauthorizedFunc func(path string, status int)

// Client is the task-management platform API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger

	maxTries       uint
	initialBackoff time.Duration

	mu             sync.RWMutex
	defaultHeaders http.Header
	onUnauthorized UnauthorizedFunc
}

// NewClient creates a new platform API client
func NewClient(baseURL string, cfg Config) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = def.MaxTries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}

	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		logger:         log.Or(cfg.Logger).With("component", "platform"),
		maxTries:       cfg.MaxTries,
		initialBackoff: cfg.InitialBackoff,
		defaultHeaders: http.Header{},
	}
	c.httpClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &authTransport{client: c, next: cfg.Transport},
	}
	return c
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ConfigureAuth sets both auth headers for token, or removes them when token
// is empty. Calling it repeatedly with the same token is a no-op.
func (c *Client) ConfigureAuth(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token == "" {
		c.defaultHeaders.Del(HeaderAuthorization)
		c.defaultHeaders.Del(HeaderLegacyToken)
		return
	}
	c.defaultHeaders.Set(HeaderAuthorization, "Bearer "+token)
	c.defaultHeaders.Set(HeaderLegacyToken, token)
}

// DefaultHeaders returns a copy of the headers attached to every request.
func (c *Client) DefaultHeaders() http.Header {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultHeaders.Clone()
}

// HasAuth reports whether auth headers are currently configured.
func (c *Client) HasAuth() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultHeaders.Get(HeaderAuthorization) != ""
}

// OnUnauthorized registers the hook run on 401/403 responses. Passing nil
// removes it.
func (c *Client) OnUnauthorized(fn UnauthorizedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

func (c *Client) unauthorizedHook() UnauthorizedFunc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onUnauthorized
}

// APIError is a non-2xx response from the backend
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

// IsAuthFailure reports whether err is a 401 or 403 from the backend.
func IsAuthFailure(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
	}
	return false
}

// IsServerError reports whether err is a 5xx from the backend.
func IsServerError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 500
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// errorResponse represents an API error body
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do performs one request and decodes the response into target.
// It never retries; auth calls go through here directly.
func (c *Client) do(ctx context.Context, method, path string, body, target interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.GetInfo().UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(method, path, resp)
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// fetch is do with bounded exponential backoff. Network failures and 5xx
// responses are retried; anything else is returned immediately.
func (c *Client) fetch(ctx context.Context, method, path string, body, target interface{}) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initialBackoff

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := c.do(ctx, method, path, body, target)
		if err == nil {
			return struct{}{}, nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			return struct{}{}, backoff.Permanent(err)
		}
		c.logger.Debug("request failed, will retry", "method", method, "path", path, "attempt", attempt, "error", err.Error())
		return struct{}{}, err
	}, backoff.WithBackOff(eb), backoff.WithMaxTries(c.maxTries))

	return err
}

func parseError(method, path string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Error != "" {
			apiErr.Message = errResp.Error
		} else if errResp.Message != "" {
			apiErr.Message = errResp.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// authTransport applies the client's default headers to every outgoing
// request and reports 401/403 responses to the unauthorized hook.
type authTransport struct {
	client *Client
	next   http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not mutate the caller's request.
	r := req.Clone(req.Context())
	for k, vs := range t.client.DefaultHeaders() {
		r.Header.Del(k)
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	if r.Header.Get(HeaderRequestID) == "" {
		r.Header.Set(HeaderRequestID, uuid.NewString())
	}

	resp, err := t.next.RoundTrip(r)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		path := strings.TrimPrefix(r.URL.Path, t.client.pathPrefix())
		if path != LoginPath {
			t.client.logger.Info("backend rejected credentials", "path", path, "status", resp.StatusCode)
			if hook := t.client.unauthorizedHook(); hook != nil {
				hook(path, resp.StatusCode)
			}
		}
	}
	return resp, nil
}

// pathPrefix is the path component of the base URL, e.g. "/api".
func (c *Client) pathPrefix() string {
	i := strings.Index(c.baseURL, "://")
	if i < 0 {
		return ""
	}
	rest := c.baseURL[i+3:]
	if j := strings.Index(rest, "/"); j >= 0 {
		return rest[j:]
	}
	return ""
}
