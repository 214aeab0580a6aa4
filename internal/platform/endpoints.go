package platform

import "net/http"

// Endpoint is one backend operation the client consumes. Path is relative to
// the base URL and uses {name} for path parameters.
type Endpoint struct {
	Method string
	Path   string
}

// Endpoints lists every operation the client issues.
var Endpoints = []Endpoint{
	{http.MethodPost, LoginPath},
	{http.MethodPost, LogoutPath},
	{http.MethodGet, ProfilePath},
	{http.MethodPut, ProfilePath},
	{http.MethodGet, "/projects"},
	{http.MethodGet, "/projects/{id}"},
	{http.MethodGet, "/tasks"},
	{http.MethodGet, "/notifications"},
	{http.MethodPut, "/notifications/{id}/read"},
	{http.MethodGet, "/calendar/events"},
	{http.MethodGet, "/documents"},
	{http.MethodGet, "/wiki/pages"},
	{http.MethodGet, "/users"},
}
