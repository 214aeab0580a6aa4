package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Authentication errors (AUTH-001 to AUTH-099)
	ErrCodeAuthInvalidCredentials ErrorCode = "AUTH-001"
	ErrCodeAuthSessionExpired     ErrorCode = "AUTH-002"
	ErrCodeAuthNotLoggedIn        ErrorCode = "AUTH-003"
	ErrCodeAuthForbidden          ErrorCode = "AUTH-004"

	// Session errors (SESSION-001 to SESSION-099)
	ErrCodeSessionRestoreFailed ErrorCode = "SESSION-001"
	ErrCodeSessionDesync        ErrorCode = "SESSION-002"
	ErrCodeSessionRedirectLoop  ErrorCode = "SESSION-003"

	// Storage errors (STORE-001 to STORE-099)
	ErrCodeStoreReadFailed  ErrorCode = "STORE-001"
	ErrCodeStoreWriteFailed ErrorCode = "STORE-002"
	ErrCodeStoreCorrupt     ErrorCode = "STORE-003"

	// Backend API errors (API-001 to API-099)
	ErrCodeAPIUnavailable ErrorCode = "API-001"
	ErrCodeAPIRequest     ErrorCode = "API-002"
	ErrCodeAPITimeout     ErrorCode = "API-003"
	ErrCodeAPIDecode      ErrorCode = "API-004"

	// Routing errors (ROUTE-001 to ROUTE-099)
	ErrCodeRouteNotFound ErrorCode = "ROUTE-001"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid    ErrorCode = "CONFIG-001"
	ErrCodeConfigReadFailed ErrorCode = "CONFIG-002"
	ErrCodeConfigKeyUnknown ErrorCode = "CONFIG-003"

	// Command usage errors (USAGE-001 to USAGE-099)
	ErrCodeUsageMissingInput ErrorCode = "USAGE-001"
)

// DeskError represents an enhanced error with code and suggestions
type DeskError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *DeskError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *DeskError) Unwrap() error {
	return e.Cause
}

// New creates a new DeskError
func New(code ErrorCode, message string) *DeskError {
	return &DeskError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new DeskError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *DeskError {
	return &DeskError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *DeskError) WithSuggestion(suggestion string) *DeskError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *DeskError) WithSuggestions(suggestions ...string) *DeskError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// CodeOf returns the code of the first DeskError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	for err != nil {
		if de, ok := err.(*DeskError); ok {
			return de.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// HasPrefix reports whether err carries a code in the given category (e.g. "AUTH").
func HasPrefix(err error, category string) bool {
	code := CodeOf(err)
	return code != "" && strings.HasPrefix(string(code), category+"-")
}

// Common error constructors for frequently used errors

// NewInvalidCredentialsError creates a rejected-login error
func NewInvalidCredentialsError(reason string) *DeskError {
	msg := "login rejected"
	if reason != "" {
		msg = fmt.Sprintf("login rejected: %s", reason)
	}
	return New(ErrCodeAuthInvalidCredentials, msg).
		WithSuggestion("Check your email and password").
		WithSuggestion("Run 'taskdesk login' to try again")
}

// NewNotLoggedInError creates an error for commands that need a session
func NewNotLoggedInError() *DeskError {
	return New(ErrCodeAuthNotLoggedIn, "not logged in").
		WithSuggestion("Run 'taskdesk login' to authenticate")
}

// NewSessionExpiredError creates an expired-session error
func NewSessionExpiredError() *DeskError {
	return New(ErrCodeAuthSessionExpired, "session expired or revoked").
		WithSuggestion("Run 'taskdesk login' to start a new session")
}

// NewForbiddenError creates an insufficient-permission error for a route
func NewForbiddenError(route string) *DeskError {
	return New(ErrCodeAuthForbidden, fmt.Sprintf("insufficient permissions for %s", route)).
		WithSuggestion("Ask an administrator to grant the required role")
}

// NewAPIUnavailableError creates a transient backend error
func NewAPIUnavailableError(baseURL string, cause error) *DeskError {
	return Wrap(ErrCodeAPIUnavailable, fmt.Sprintf("backend unavailable at %s", baseURL), cause).
		WithSuggestion("Check your network connection").
		WithSuggestion("Verify api_url with 'taskdesk config get api_url'")
}

// NewRouteNotFoundError creates an unknown-route error
func NewRouteNotFoundError(route string) *DeskError {
	return New(ErrCodeRouteNotFound, fmt.Sprintf("unknown route: %s", route)).
		WithSuggestion("Run 'taskdesk open --list' to see available routes")
}

// NewConfigUnmarshalError creates a configuration parse error
func NewConfigUnmarshalError(path string, cause error) *DeskError {
	return Wrap(ErrCodeConfigInvalid, fmt.Sprintf("failed to parse config file: %s", path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion("Run 'taskdesk config path' to locate the file")
}

// NewMissingInputError reports required flags that were neither given nor
// prompted for.
func NewMissingInputError(reason string, flags ...string) *DeskError {
	quoted := make([]string, len(flags))
	for i, f := range flags {
		quoted[i] = "--" + f
	}
	return New(ErrCodeUsageMissingInput, fmt.Sprintf("missing %s: %s", strings.Join(quoted, ", "), reason)).
		WithSuggestion(fmt.Sprintf("Pass %s explicitly", strings.Join(quoted, " and ")))
}
