package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Project represents a platform project
type Project struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Status      string    `json:"status" yaml:"status"`
	ManagerID   string    `json:"managerId,omitempty" yaml:"manager_id,omitempty"`
	StartDate   time.Time `json:"startDate,omitempty" yaml:"start_date,omitempty"`
	EndDate     time.Time `json:"endDate,omitempty" yaml:"end_date,omitempty"`
}

// Task represents a task within a project
type Task struct {
	ID         string    `json:"id" yaml:"id"`
	ProjectID  string    `json:"projectId" yaml:"project_id"`
	Title      string    `json:"title" yaml:"title"`
	Status     string    `json:"status" yaml:"status"`
	Priority   string    `json:"priority,omitempty" yaml:"priority,omitempty"`
	AssigneeID string    `json:"assigneeId,omitempty" yaml:"assignee_id,omitempty"`
	DueDate    time.Time `json:"dueDate,omitempty" yaml:"due_date,omitempty"`
}

type projectsResponse struct {
	Projects []Project `json:"projects"`
}

type projectResponse struct {
	Project Project `json:"project"`
}

type tasksResponse struct {
	Tasks []Task `json:"tasks"`
}

// ListProjects retrieves the projects visible to the current user
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out projectsResponse
	if err := c.fetch(ctx, http.MethodGet, "/projects", nil, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

// GetProject retrieves a project by ID
func (c *Client) GetProject(ctx context.Context, projectID string) (*Project, error) {
	var out projectResponse
	path := fmt.Sprintf("/projects/%s", url.PathEscape(projectID))
	if err := c.fetch(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out.Project, nil
}

// ListTasks retrieves tasks, optionally restricted to one project
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	path := "/tasks"
	if projectID != "" {
		path += "?projectId=" + url.QueryEscape(projectID)
	}

	var out tasksResponse
	if err := c.fetch(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}
