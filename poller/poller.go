// Package poller watches a user's payment until an administrator verifies or
// rejects it.
//
// A Poller runs at most one check loop at a time. Each check is awaited
// before the next one is scheduled, so slow responses never overlap.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/internal/logger"
)

const (
	// DefaultInterval is the delay between two checks.
	DefaultInterval = 30 * time.Second
	// DefaultMaxFailures is the number of consecutive failed checks after
	// which the loop gives up.
	DefaultMaxFailures = 10
)

// Check results reported to an Observer.
const (
	ResultPending  = "pending"
	ResultNone     = "none"
	ResultVerified = "verified"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Fetcher returns the caller's current payment, nil when none was submitted.
type Fetcher interface {
	MyPayment(ctx context.Context, token string) (*apiclient.Payment, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, token string) (*apiclient.Payment, error)

func (f FetcherFunc) MyPayment(ctx context.Context, token string) (*apiclient.Payment, error) {
	return f(ctx, token)
}

// Observer is told the result of every check.
type Observer interface {
	ObservePollCheck(result string)
}

// Hooks are called from the loop goroutine. A hook must not call Stop.
type Hooks struct {
	// OnStatus is called after every successful check.
	OnStatus func(status apiclient.PaymentStatus, payment *apiclient.Payment)
	// OnVerified is called at most once per Poller.
	OnVerified func(payment *apiclient.Payment)
	// OnRejected is called when the payment was rejected. The loop ends.
	OnRejected func(payment *apiclient.Payment)
	// OnGiveUp is called with the last error when the loop stops because
	// checks keep failing or the credentials were refused.
	OnGiveUp func(err error)
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the delay between checks.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxFailures sets how many consecutive failures end the loop. Zero or
// less retries forever.
func WithMaxFailures(n int) Option {
	return func(p *Poller) {
		p.maxFailures = n
	}
}

// WithClock sets the clock used to schedule checks.
func WithClock(c clockwork.Clock) Option {
	return func(p *Poller) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithLogger sets the poller logger. Failed checks are logged at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger.OrDiscard(l)
	}
}

// WithObserver reports every check result to o.
func WithObserver(o Observer) Option {
	return func(p *Poller) {
		p.observer = o
	}
}

// Poller is a restartable payment watch.
type Poller struct {
	fetcher     Fetcher
	hooks       Hooks
	interval    time.Duration
	maxFailures int
	clock       clockwork.Clock
	logger      *slog.Logger
	observer    Observer

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	verified bool
}

// New returns an idle Poller.
func New(fetcher Fetcher, hooks Hooks, opts ...Option) *Poller {
	p := &Poller{
		fetcher:     fetcher,
		hooks:       hooks,
		interval:    DefaultInterval,
		maxFailures: DefaultMaxFailures,
		clock:       clockwork.NewRealClock(),
		logger:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start checks the payment immediately and keeps checking every interval
// until a terminal status, Stop, cancellation of ctx or too many failures.
// It reports false, doing nothing, when a loop is already running.
func (p *Poller) Start(ctx context.Context, token string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done
	go p.run(ctx, token, done)
	return true
}

// Stop cancels the running loop and waits for it to exit. No hook fires
// after Stop returns. It is safe to call when nothing is running.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done != nil
}

// Done returns a channel closed when the current loop exits. With no loop
// running the channel is already closed.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return p.done
}

func (p *Poller) run(ctx context.Context, token string, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		if p.done == done {
			p.cancel()
			p.cancel, p.done = nil, nil
		}
		p.mu.Unlock()
		close(done)
	}()

	failures := 0
	for {
		if p.check(ctx, token, &failures) {
			return
		}
		timer := p.clock.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}
	}
}

// check performs one status request and reports whether the loop must end.
func (p *Poller) check(ctx context.Context, token string, failures *int) bool {
	payment, err := p.fetcher.MyPayment(ctx, token)
	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		*failures++
		p.observe(ResultError)
		p.logger.Debug("payment check failed", "attempt", *failures, "error", err)
		if errors.Is(err, apiclient.ErrAccountGone) || errors.Is(err, apiclient.ErrUnauthorized) {
			p.giveUp(err)
			return true
		}
		if p.maxFailures > 0 && *failures >= p.maxFailures {
			p.logger.Warn("giving up on payment checks", "failures", *failures, "error", err)
			p.giveUp(err)
			return true
		}
		return false
	}
	*failures = 0

	status := apiclient.StatusOf(payment)
	p.observe(string(status))
	if p.hooks.OnStatus != nil {
		p.hooks.OnStatus(status, payment)
	}
	switch status {
	case apiclient.PaymentVerified:
		p.mu.Lock()
		first := !p.verified
		p.verified = true
		p.mu.Unlock()
		if first && p.hooks.OnVerified != nil {
			p.hooks.OnVerified(payment)
		}
		return true
	case apiclient.PaymentRejected:
		if p.hooks.OnRejected != nil {
			p.hooks.OnRejected(payment)
		}
		return true
	}
	return false
}

func (p *Poller) giveUp(err error) {
	if p.hooks.OnGiveUp != nil {
		p.hooks.OnGiveUp(err)
	}
}

func (p *Poller) observe(result string) {
	if p.observer != nil {
		p.observer.ObservePollCheck(result)
	}
}
