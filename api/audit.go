package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditLoginSuccess       AuditEvent = "login_success"
	AuditLoginFailure       AuditEvent = "login_failure"
	AuditLoginRateLimited   AuditEvent = "login_rate_limited"
	AuditSignup             AuditEvent = "signup"
	AuditLogout             AuditEvent = "logout"
	AuditProfileCompleted   AuditEvent = "profile_completed"
	AuditPaymentSubmitted   AuditEvent = "payment_submitted"
	AuditPaymentReviewed    AuditEvent = "payment_reviewed"
	AuditSessionInvalidated AuditEvent = "session_invalidated"
	AuditAccessRedirected   AuditEvent = "access_redirected"
)

// auditLogger wraps slog.Logger for structured audit logging.
type auditLogger struct {
	logger  *slog.Logger
	alerts  *alertCollector
	webhook *auditWebhook
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

// log writes a structured audit log entry.
func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	ts := time.Now().UTC().Format(time.RFC3339)
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", ts),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
	al.alerts.recordEvent(event)
	if al.webhook != nil {
		al.webhook.enqueue(newWebhookEvent(event, r.RemoteAddr, ts, attrs))
	}
}

// logEvent is a convenience for events with a user ID.
func (al *auditLogger) logEvent(event AuditEvent, r *http.Request, userID string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("user_id", userID),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}

// logFailure logs a failed or refused action.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}
