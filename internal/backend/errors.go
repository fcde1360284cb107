package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/grantdesk/grantdesk/internal/shared"
)

// APIError is a network failure or a response with status >= 400.
// The HTTP status, not a body field, decides success.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend: %s %s: %v", e.Method, e.Path, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("backend: %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("backend: %s %s: status %d", e.Method, e.Path, e.Status)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return shared.ErrUnauthenticated
	}
	if e.Status == http.StatusNotFound {
		return shared.ErrNotFound
	}
	return e.Err
}

// UserMessage returns the server supplied message when present.
func (e *APIError) UserMessage() string {
	return strings.TrimSpace(e.Message)
}

// Humanize converts any error raised while talking to the backend into
// notification text.
func Humanize(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.UserMessage() == "" {
		switch {
		case apiErr.Err != nil:
			return "The server could not be reached. Check your connection and try again."
		case apiErr.Status == http.StatusUnauthorized:
			return shared.UserSafeMessage(shared.ErrUnauthenticated)
		case apiErr.Status == http.StatusForbidden:
			return "You do not have permission to perform this action."
		case apiErr.Status == http.StatusNotFound:
			return "The requested record no longer exists."
		case apiErr.Status == http.StatusConflict:
			return "The record is in use and cannot be changed."
		}
	}
	return shared.UserSafeMessage(err)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
