package portal

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/guard"
	"github.com/skwf/portal/poller"
)

// Amounts lists the payment amounts the foundation accepts.
var Amounts = []decimal.Decimal{apiclient.AmountStandard, apiclient.AmountExtended}

// SubmitPayment submits the verification fee with its transfer screenshot.
func (a *App) SubmitPayment(ctx context.Context, amount decimal.Decimal, screenshot apiclient.File) (*apiclient.Payment, error) {
	return within(a, guard.AreaPayment, func(tok string) (*apiclient.Payment, error) {
		if !validAmount(amount) {
			return nil, invalid("amount", fmt.Sprintf("must be %s or %s", apiclient.AmountStandard, apiclient.AmountExtended))
		}
		if screenshot.Empty() {
			return nil, invalid("screenshot", "is required")
		}
		p, err := a.client.CreatePayment(ctx, tok, amount, screenshot)
		if err != nil {
			return nil, err
		}
		a.logger.Info("payment submitted", "payment_id", p.ID, "amount", p.Amount.String())
		return p, nil
	})
}

func validAmount(amount decimal.Decimal) bool {
	for _, ok := range Amounts {
		if amount.Equal(ok) {
			return true
		}
	}
	return false
}

// PaymentStatus performs a single payment check. It returns nil when no
// payment was submitted.
func (a *App) PaymentStatus(ctx context.Context) (*apiclient.Payment, error) {
	return within(a, guard.AreaPayment, func(tok string) (*apiclient.Payment, error) {
		return a.client.MyPayment(ctx, tok)
	})
}

// WatchResult is how a payment watch ended.
type WatchResult struct {
	Status  apiclient.PaymentStatus
	Payment *apiclient.Payment
	// Next is the area the user moves to: the dashboard once verified, the
	// payment form after a rejection.
	Next guard.Area
}

// StatusFunc receives every status observed during a watch.
type StatusFunc func(status apiclient.PaymentStatus, payment *apiclient.Payment)

// WatchPayment enters the payment area and checks the payment until it is
// verified or rejected. A session runs at most one check loop: a call made
// while a watch is running joins it and receives the same statuses and
// result. The loop stops once every caller has returned.
//
// A session with no payment submitted keeps waiting for a submission. On
// verification the session is updated and refreshed from the remote API
// once, before any caller returns.
func (a *App) WatchPayment(ctx context.Context, onStatus StatusFunc) (*WatchResult, error) {
	tok, err := a.token(guard.AreaPayment)
	if err != nil {
		return nil, err
	}

	w, id := a.joinWatch(ctx, tok, onStatus)
	defer a.leaveWatch(w, id)

	select {
	case <-w.done:
		return w.result, w.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// paymentWatch is the check loop shared by every WatchPayment caller of a
// session. result and err are set before done is closed.
type paymentWatch struct {
	poller *poller.Poller
	cancel context.CancelFunc
	done   chan struct{}

	subs   map[int]StatusFunc
	nextID int

	result *WatchResult
	err    error
}

// joinWatch subscribes onStatus to the running watch, starting one if
// there is none.
func (a *App) joinWatch(ctx context.Context, tok string, onStatus StatusFunc) (*paymentWatch, int) {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()

	w := a.watch
	if w == nil {
		w = a.startWatch(ctx, tok)
		a.watch = w
	} else {
		a.logger.Debug("joining running payment watch", "subscribers", len(w.subs))
	}
	id := w.nextID
	w.nextID++
	if onStatus != nil {
		w.subs[id] = onStatus
	} else {
		w.subs[id] = func(apiclient.PaymentStatus, *apiclient.Payment) {}
	}
	return w, id
}

// leaveWatch drops a subscriber and stops the loop after the last one.
func (a *App) leaveWatch(w *paymentWatch, id int) {
	a.watchMu.Lock()
	delete(w.subs, id)
	last := len(w.subs) == 0
	if last && a.watch == w {
		a.watch = nil
	}
	a.watchMu.Unlock()

	if last {
		w.cancel()
		w.poller.Stop()
	}
}

// startWatch starts the check loop, detached from the cancellation of the
// caller that started it. Called with watchMu held.
func (a *App) startWatch(ctx context.Context, tok string) *paymentWatch {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w := &paymentWatch{
		cancel: cancel,
		done:   make(chan struct{}),
		subs:   make(map[int]StatusFunc),
	}

	var gaveUp error
	fetcher := poller.FetcherFunc(func(ctx context.Context, token string) (*apiclient.Payment, error) {
		p, err := a.client.MyPayment(ctx, token)
		return p, a.check(err)
	})
	w.poller = poller.New(fetcher, poller.Hooks{
		OnStatus: func(status apiclient.PaymentStatus, payment *apiclient.Payment) {
			for _, fn := range a.subscribers(w) {
				fn(status, payment)
			}
		},
		OnVerified: func(payment *apiclient.Payment) {
			w.result = a.paymentVerified(ctx, payment)
		},
		OnRejected: func(payment *apiclient.Payment) {
			a.logger.Info("payment rejected", "payment_id", payment.ID, "notes", payment.AdminNotes)
			w.result = &WatchResult{Status: apiclient.PaymentRejected, Payment: payment, Next: guard.AreaPayment}
		},
		OnGiveUp: func(err error) {
			gaveUp = err
		},
	},
		poller.WithClock(a.clock),
		poller.WithInterval(a.pollInterval),
		poller.WithMaxFailures(a.pollMaxFailures),
		poller.WithLogger(a.logger),
		poller.WithObserver(a.metrics),
	)

	a.metrics.WatchStarted()
	w.poller.Start(ctx, tok)
	loopDone := w.poller.Done()
	go func() {
		<-loopDone

		switch {
		case w.result != nil:
		case gaveUp != nil && errors.Is(gaveUp, ErrSessionInvalidated):
			w.err = gaveUp
		case gaveUp != nil:
			w.err = fmt.Errorf("payment status unavailable: %w", gaveUp)
		default:
			w.err = context.Canceled
		}

		a.watchMu.Lock()
		if a.watch == w {
			a.watch = nil
		}
		a.watchMu.Unlock()
		a.metrics.WatchStopped()
		close(w.done)
	}()
	return w
}

func (a *App) subscribers(w *paymentWatch) []StatusFunc {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	fns := make([]StatusFunc, 0, len(w.subs))
	for _, fn := range w.subs {
		fns = append(fns, fn)
	}
	return fns
}

// paymentVerified records a verification in the session and works out
// where the user goes next.
func (a *App) paymentVerified(ctx context.Context, payment *apiclient.Payment) *WatchResult {
	a.logger.Info("payment verified", "payment_id", payment.ID)
	if err := a.store.UpdatePaymentStatus(true, payment.CreditHours); err != nil {
		a.logger.Error("saving payment status", "error", err)
	}
	if _, err := a.Refresh(ctx); err != nil {
		a.logger.Warn("refreshing user after verification", "error", err)
	}
	return &WatchResult{
		Status:  apiclient.PaymentVerified,
		Payment: payment,
		Next:    guard.Resolve(a.store.Snapshot(), guard.AreaUserDashboard).Area,
	}
}
