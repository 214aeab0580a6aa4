package ux

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"

	"github.com/felixgeelhaar/taskdesk/internal/errors"
	"github.com/felixgeelhaar/taskdesk/internal/platform"
)

// ErrorWithSuggestion wraps an error with helpful recovery suggestions
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\nSuggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap provides access to the underlying error
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with a suggestion
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// EnhanceError adds a recovery hint to errors that do not already carry one.
// Coded errors are returned unchanged since they bring their own suggestions.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}
	if errors.CodeOf(err) != "" {
		return err
	}
	var hinted *ErrorWithSuggestion
	if stderrors.As(err, &hinted) {
		return err
	}

	if platform.IsAuthFailure(err) {
		switch platform.StatusOf(err) {
		case 403:
			return NewErrorWithSuggestion(err,
				"Your role does not allow this action; ask an administrator for access")
		default:
			return NewErrorWithSuggestion(err,
				"Your session is no longer valid; run 'taskdesk login'")
		}
	}

	if platform.IsServerError(err) {
		return NewErrorWithSuggestion(err,
			"The backend reported an internal error; try again in a moment")
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithSuggestion(err,
			"The backend did not answer in time; raise the limit with 'taskdesk config set timeout 60s'")
	}

	var netErr net.Error
	errMsg := err.Error()
	if stderrors.As(err, &netErr) || strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host") {
		return NewErrorWithSuggestion(err,
			"Check your network connection and the api_url setting ('taskdesk config view')")
	}

	if strings.Contains(errMsg, "permission denied") {
		return NewErrorWithSuggestion(err,
			"Check the permissions of ~/.taskdesk and its files")
	}

	return err
}

// FormatError provides consistent error formatting with context
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}

	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}
