package session

import "errors"

var (
	// ErrNoSession indicates an operation that needs a logged-in session found none.
	ErrNoSession = errors.New("no session")
	// ErrInvalidSession indicates an attempt to store a user without a token or a token without a user.
	ErrInvalidSession = errors.New("invalid session: user and token must be set together")
)
