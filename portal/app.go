// Package portal runs the applicant workflow on top of the session store,
// the progression guard and the remote API client.
//
// Every protected operation enters its area through Enter, the single place
// the guard is consulted. A response reporting that the account no longer
// exists clears the session and surfaces as ErrSessionInvalidated.
package portal

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/guard"
	"github.com/skwf/portal/internal/logger"
	"github.com/skwf/portal/metrics"
	"github.com/skwf/portal/poller"
	"github.com/skwf/portal/session"
)

// App is the portal workflow for one session.
type App struct {
	store     *session.Store
	client    *apiclient.Client
	logger    *slog.Logger
	metrics   *metrics.Collector
	validator *validator.Validate
	clock     clockwork.Clock

	pollInterval    time.Duration
	pollMaxFailures int

	watchMu sync.Mutex
	watch   *paymentWatch
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the workflow logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger.OrDiscard(l)
	}
}

// WithMetrics records guard decisions, payment checks and forced logouts.
func WithMetrics(m *metrics.Collector) Option {
	return func(a *App) {
		a.metrics = m
	}
}

// WithClock sets the clock driving payment watches.
func WithClock(c clockwork.Clock) Option {
	return func(a *App) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithPollInterval sets the delay between payment checks.
func WithPollInterval(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.pollInterval = d
		}
	}
}

// WithPollMaxFailures sets how many consecutive failed payment checks end a watch.
func WithPollMaxFailures(n int) Option {
	return func(a *App) {
		a.pollMaxFailures = n
	}
}

// New returns an App. The store is not hydrated; call Hydrate first.
func New(store *session.Store, client *apiclient.Client, opts ...Option) *App {
	a := &App{
		store:           store,
		client:          client,
		logger:          logger.Discard(),
		validator:       newValidator(),
		clock:           clockwork.NewRealClock(),
		pollInterval:    poller.DefaultInterval,
		pollMaxFailures: poller.DefaultMaxFailures,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Store returns the session store.
func (a *App) Store() *session.Store {
	return a.store
}

// Client returns the remote API client.
func (a *App) Client() *apiclient.Client {
	return a.client
}

// Hydrate restores the session from durable storage.
func (a *App) Hydrate() session.Session {
	return a.store.Hydrate()
}

// Session returns a snapshot of the current session.
func (a *App) Session() session.Session {
	return a.store.Snapshot()
}

// Landing returns where the current session belongs.
func (a *App) Landing() guard.Area {
	s := a.store.Snapshot()
	return guard.Resolve(s, guard.Landing(s)).Area
}

// Enter evaluates the guard for area against the current session. Any
// outcome other than allow is returned as a *NotAllowedError alongside the
// decision.
func (a *App) Enter(area guard.Area) (guard.Decision, error) {
	d := guard.Check(a.store.Snapshot(), area)
	a.metrics.ObserveGuardDecision(string(area), string(d.Outcome), string(d.Reason))
	if d.Allowed() {
		return d, nil
	}
	a.logger.Debug("access not granted", "area", area, "outcome", d.Outcome, "target", d.Target, "reason", d.Reason)
	return d, &NotAllowedError{Area: area, Decision: d}
}

// token returns the session token after entering area.
func (a *App) token(area guard.Area) (string, error) {
	if _, err := a.Enter(area); err != nil {
		return "", err
	}
	return a.store.Token()
}

// check turns an account-gone response into a forced logout.
func (a *App) check(err error) error {
	if err == nil || !errors.Is(err, apiclient.ErrAccountGone) {
		return err
	}
	a.invalidate(err)
	return errors.Join(ErrSessionInvalidated, err)
}

func (a *App) invalidate(cause error) {
	a.logger.Warn("account no longer exists, clearing session", "error", cause)
	a.metrics.ObserveSessionInvalidated()
	if err := a.store.Logout(); err != nil {
		a.logger.Error("clearing invalidated session", "error", err)
	}
}

// within enters area and runs fn with the session token.
func within[T any](a *App, area guard.Area, fn func(token string) (T, error)) (T, error) {
	var zero T
	tok, err := a.token(area)
	if err != nil {
		return zero, err
	}
	out, err := fn(tok)
	if err != nil {
		return zero, a.check(err)
	}
	return out, nil
}
