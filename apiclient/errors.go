package apiclient

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized is wrapped by errors for 401 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAccountGone is wrapped by errors for 401 responses reporting that the
	// account no longer exists. The stored session must be discarded.
	ErrAccountGone = errors.New("account no longer exists")
	// ErrNotFound is wrapped by errors for 404 responses.
	ErrNotFound = errors.New("not found")
)

// Error is a non-2xx response from the remote API.
type Error struct {
	StatusCode int
	Message    string
	// PaymentPending is set on login failures for accounts whose payment is
	// still awaiting verification.
	PaymentPending bool

	kind error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.kind
}

// accountGone reports whether a 401 message says the account was removed.
func accountGone(message string) bool {
	return strings.Contains(message, "User not found") ||
		strings.Contains(message, "account has been deleted")
}

func newError(status int, message, fallback string, paymentPending bool) *Error {
	if message == "" {
		message = fallback
	}
	e := &Error{StatusCode: status, Message: message, PaymentPending: paymentPending}
	switch {
	case status == 401 && accountGone(message):
		e.kind = ErrAccountGone
	case status == 401:
		e.kind = ErrUnauthorized
	case status == 404:
		e.kind = ErrNotFound
	}
	return e
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
