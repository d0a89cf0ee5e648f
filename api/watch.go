package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/guard"
	"github.com/skwf/portal/portal"
)

const watchWriteTimeout = 5 * time.Second

// WatchPayment handles GET /payment/watch. The payment area is entered
// before the upgrade so a refused session gets a plain HTTP answer. Once
// upgraded, every check is streamed as a status event until the payment is
// verified or rejected, the checks give up, or the client goes away; the
// watch never outlives the socket.
func (a *API) WatchPayment(w http.ResponseWriter, r *http.Request) {
	if _, err := a.app.Enter(guard.AreaPayment); err != nil {
		a.fail(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: a.originPatterns,
	})
	if err != nil {
		a.audit.logger.Info("watch.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	// The client only listens; CloseRead cancels ctx when it closes.
	ctx := conn.CloseRead(r.Context())

	res, err := a.app.WatchPayment(ctx, func(_ apiclient.PaymentStatus, p *apiclient.Payment) {
		if err := writeEvent(ctx, conn, WatchEvent{Type: WatchEventStatus, Payment: paymentView(p)}); err != nil {
			a.audit.logger.Debug("watch.write.fail", "err", err)
		}
	})
	switch {
	case err == nil:
		_ = writeEvent(ctx, conn, WatchEvent{Type: WatchEventDone, Payment: paymentView(res.Payment), Next: string(res.Next)})
	case ctx.Err() != nil:
		// Client went away.
		return
	default:
		if errors.Is(err, portal.ErrSessionInvalidated) {
			a.audit.logFailure(AuditSessionInvalidated, r, "account no longer exists")
		}
		ev := WatchEvent{Type: WatchEventError, Error: err.Error()}
		if target, ok := portal.RedirectTarget(err); ok {
			ev.Next = string(target)
		}
		_ = writeEvent(ctx, conn, ev)
		a.audit.logger.Info("watch.end", slog.String("err", err.Error()))
	}
}

func writeEvent(parent context.Context, conn *websocket.Conn, ev WatchEvent) error {
	ctx, cancel := context.WithTimeout(parent, watchWriteTimeout)
	defer cancel()

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}
