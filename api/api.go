// Package api is the local HTTP gateway in front of a portal.App. It plays
// the part of the browser front-end: every route enters its area through the
// workflow, so the progression guard decides what may render.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"
	"github.com/jonboulle/clockwork"

	"github.com/skwf/portal/portal"
)

// API holds the dependencies needed by the gateway handlers.
type API struct {
	app         *portal.App
	rateLimiter *loginRateLimiter
	audit       *auditLogger
	alerts      *alertCollector
	clock       clockwork.Clock
	// originPatterns are passed to the websocket handshake.
	originPatterns []string

	webhookURL  string
	webhookAuth string
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithAlertFunc registers a callback for login failure and forced logout
// spikes.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.alerts = newAlertCollector(fn)
	}
}

// WithClock sets the clock used for login backoff and alert windows.
func WithClock(c clockwork.Clock) Option {
	return func(a *API) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithAuditWebhook forwards every audit event to url as a JSON POST.
// authHeader, when set, is sent as "Header: Value".
func WithAuditWebhook(url, authHeader string) Option {
	return func(a *API) {
		a.webhookURL = url
		a.webhookAuth = authHeader
	}
}

// WithOriginPatterns allows cross-origin websocket handshakes from hosts
// matching the patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(a *API) {
		a.originPatterns = append(a.originPatterns, patterns...)
	}
}

// New creates a gateway for app.
func New(app *portal.App, opts ...Option) *API {
	a := &API{
		app:   app,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	a.rateLimiter = newLoginRateLimiter(a.clock)
	if a.alerts != nil {
		a.alerts.clock = a.clock
		a.audit.alerts = a.alerts
	}
	if a.webhookURL != "" {
		a.audit.webhook = newAuditWebhook(a.webhookURL, a.webhookAuth, a.audit.logger)
	}
	return a
}

// Close flushes queued audit webhook deliveries.
func (a *API) Close() {
	if a.audit != nil && a.audit.webhook != nil {
		a.audit.webhook.close()
		a.audit.webhook = nil
	}
}

// Router returns a chi.Router with all gateway routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(SecurityHeaders)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Post("/auth/signup", a.Signup)
	r.Post("/auth/login", a.Login)
	r.Post("/auth/logout", a.Logout)
	r.Put("/auth/complete-profile", a.CompleteProfile)
	r.Post("/auth/refresh", a.Refresh)
	r.Get("/auth/session", a.Session)

	r.Get("/areas", a.ListAreas)
	r.Get("/areas/*", a.EnterArea)

	r.Post("/payment", a.SubmitPayment)
	r.Get("/payment/status", a.PaymentStatus)
	r.Get("/payment/watch", a.WatchPayment)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/payments", a.ListPayments)
		r.Patch("/payments/{paymentID}", a.ReviewPayment)
		r.Get("/users", a.ListUsers)
	})

	return r
}
