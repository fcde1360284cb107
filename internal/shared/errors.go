package shared

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated indicates the request carries no usable bearer token.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrSessionMissing occurs when a handler runs outside the session middleware.
	ErrSessionMissing = errors.New("session missing")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
	// ErrBusy is returned when a single in-flight operation is already running.
	ErrBusy = errors.New("another transfer is in progress")
)

// GenericErrorMessage is shown when nothing more specific is known.
const GenericErrorMessage = "Something went wrong. Please try again."

// ValidationError reports client-side rule failures keyed by form field.
// It is raised before any network call is made.
type ValidationError struct {
	Fields  map[string]string
	Message string
}

// NewValidationError builds a ValidationError with a single general message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message, Fields: map[string]string{}}
}

// FieldError builds a ValidationError for one field.
func FieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	if len(parts) == 0 {
		return "validation failed"
	}
	return strings.Join(parts, "; ")
}

// userMessager is implemented by errors that carry text fit for end users.
type userMessager interface {
	UserMessage() string
}

// UserSafeMessage turns an error into the text shown in a notification.
// Server supplied messages win, otherwise a generic message is used.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	var um userMessager
	if errors.As(err, &um) {
		if msg := strings.TrimSpace(um.UserMessage()); msg != "" {
			return msg
		}
	}
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, ErrBusy):
		return "Another file transfer is still running. Wait for it to finish."
	}
	return GenericErrorMessage
}
