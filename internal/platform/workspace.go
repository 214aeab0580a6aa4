package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/felixgeelhaar/taskdesk/internal/account"
)

// Notification is an in-app notification for the current user
type Notification struct {
	ID        string    `json:"id" yaml:"id"`
	Message   string    `json:"message" yaml:"message"`
	Read      bool      `json:"read" yaml:"read"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
}

// Event is a calendar entry
type Event struct {
	ID    string    `json:"id" yaml:"id"`
	Title string    `json:"title" yaml:"title"`
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Document is a stored file's metadata
type Document struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	ProjectID string    `json:"projectId,omitempty" yaml:"project_id,omitempty"`
	Size      int64     `json:"size" yaml:"size"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updated_at"`
}

// WikiPage is a wiki entry
type WikiPage struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Slug      string    `json:"slug" yaml:"slug"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updated_at"`
}

// ListNotifications retrieves the current user's notifications
func (c *Client) ListNotifications(ctx context.Context) ([]Notification, error) {
	var out struct {
		Notifications []Notification `json:"notifications"`
	}
	if err := c.fetch(ctx, http.MethodGet, "/notifications", nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

// MarkNotificationRead flags a notification as read. Writes are not retried.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	path := fmt.Sprintf("/notifications/%s/read", url.PathEscape(id))
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// ListEvents retrieves calendar events
func (c *Client) ListEvents(ctx context.Context) ([]Event, error) {
	var out struct {
		Events []Event `json:"events"`
	}
	if err := c.fetch(ctx, http.MethodGet, "/calendar/events", nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// ListDocuments retrieves document metadata
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var out struct {
		Documents []Document `json:"documents"`
	}
	if err := c.fetch(ctx, http.MethodGet, "/documents", nil, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

// ListWikiPages retrieves wiki pages
func (c *Client) ListWikiPages(ctx context.Context) ([]WikiPage, error) {
	var out struct {
		Pages []WikiPage `json:"pages"`
	}
	if err := c.fetch(ctx, http.MethodGet, "/wiki/pages", nil, &out); err != nil {
		return nil, err
	}
	return out.Pages, nil
}

// ListUsers retrieves all users. Admin only on the backend side.
func (c *Client) ListUsers(ctx context.Context) ([]account.User, error) {
	var out struct {
		Users []account.User `json:"users"`
	}
	if err := c.fetch(ctx, http.MethodGet, "/users", nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}
