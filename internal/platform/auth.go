package platform

import (
	"context"
	"net/http"

	"github.com/felixgeelhaar/taskdesk/internal/account"
)

// Auth endpoint paths, relative to the base URL.
const (
	LoginPath   = "/auth/login"
	LogoutPath  = "/auth/logout"
	ProfilePath = "/auth/profile"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token string       `json:"token"`
	User  account.User `json:"user"`
}

// profileResponse wraps the user object returned by the profile endpoints
type profileResponse struct {
	User account.User `json:"user"`
}

// ProfileUpdate holds the editable profile fields. Nil fields are left
// untouched by the backend.
type ProfileUpdate struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Email     *string `json:"email,omitempty"`
	Expertise *string `json:"expertise,omitempty"`
	ImageURL  *string `json:"image,omitempty"`
	Password  *string `json:"password,omitempty"`
}

// Login exchanges credentials for a token. It does not configure auth
// headers; the caller decides where the token lives first.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, LoginPath, LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout tells the backend to end the session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, LogoutPath, nil, nil)
}

// Profile returns the user the configured token belongs to.
func (c *Client) Profile(ctx context.Context) (*account.User, error) {
	var out profileResponse
	if err := c.do(ctx, http.MethodGet, ProfilePath, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// UpdateProfile applies changes to the current user's profile.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*account.User, error) {
	var out profileResponse
	if err := c.do(ctx, http.MethodPut, ProfilePath, update, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}
