package portal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/skwf/portal/guard"
)

var (
	// ErrSessionInvalidated is returned when the remote API reported that the
	// account no longer exists. The session has been cleared; the caller
	// belongs on the login area.
	ErrSessionInvalidated = errors.New("session invalidated: account no longer exists")
	// ErrNotAllowed is wrapped by *NotAllowedError.
	ErrNotAllowed = errors.New("area not allowed")
	// ErrInvalidInput is wrapped by *ValidationError.
	ErrInvalidInput = errors.New("invalid input")
)

// NotAllowedError reports a guard decision other than allow.
type NotAllowedError struct {
	Area     guard.Area
	Decision guard.Decision
}

func (e *NotAllowedError) Error() string {
	if e.Decision.Pending() {
		return fmt.Sprintf("%s: session not restored yet", e.Area)
	}
	return fmt.Sprintf("%s: redirect to %s (%s)", e.Area, e.Decision.Target, e.Decision.Reason)
}

func (e *NotAllowedError) Unwrap() error {
	return ErrNotAllowed
}

// FieldError is one rejected input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// RedirectTarget returns the area err sends the caller to, if any.
func RedirectTarget(err error) (guard.Area, bool) {
	if errors.Is(err, ErrSessionInvalidated) {
		return guard.AreaLogin, true
	}
	var na *NotAllowedError
	if errors.As(err, &na) && na.Decision.Redirected() {
		return na.Decision.Target, true
	}
	return "", false
}
