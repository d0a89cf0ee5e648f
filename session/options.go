package session

import (
	"log/slog"

	"github.com/jonboulle/clockwork"
)

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	secret string
	logger *slog.Logger
	clock  clockwork.Clock
}

// WithSecret seals the persisted session record with AES-256-GCM under a key
// derived from secret. Records written without a secret remain readable.
func WithSecret(secret string) Option {
	return func(o *storeOptions) {
		o.secret = secret
	}
}

// WithLogger sets the logger used for hydration diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the clock used to judge token expiry during hydration.
func WithClock(clock clockwork.Clock) Option {
	return func(o *storeOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}
