// Package metrics exposes Prometheus collectors for the portal: remote API
// calls, guard decisions, payment checks and forced logouts.
//
// Collectors are registered on a private registry so several instances can
// live in one process, as tests do.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "portal"

// Collector records portal metrics. A nil *Collector discards everything.
type Collector struct {
	registry *prometheus.Registry

	apiCalls       *prometheus.CounterVec
	apiDuration    *prometheus.HistogramVec
	guardDecisions *prometheus.CounterVec
	pollChecks     *prometheus.CounterVec
	invalidations  prometheus.Counter
	watchers       prometheus.Gauge
}

// New returns a Collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "api_requests_total",
			Help:      "Remote API calls by endpoint and HTTP status (0 when no response arrived).",
		}, []string{"endpoint", "status"}),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Duration of remote API calls in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "guard_decisions_total",
			Help:      "Access decisions by area, outcome and reason.",
		}, []string{"area", "outcome", "reason"}),
		pollChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "payment_checks_total",
			Help:      "Payment status checks by result.",
		}, []string{"result"}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "session_invalidations_total",
			Help:      "Sessions discarded because the account no longer exists.",
		}),
		watchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "payment_watchers",
			Help:      "Payment watches currently running.",
		}),
	}
	c.registry.MustRegister(
		c.apiCalls,
		c.apiDuration,
		c.guardDecisions,
		c.pollChecks,
		c.invalidations,
		c.watchers,
	)
	return c
}

// Registry returns the registry holding the collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveAPICall records one remote API call.
func (c *Collector) ObserveAPICall(endpoint string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.apiCalls.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	c.apiDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveGuardDecision records one access decision.
func (c *Collector) ObserveGuardDecision(area, outcome, reason string) {
	if c == nil {
		return
	}
	c.guardDecisions.WithLabelValues(area, outcome, reason).Inc()
}

// ObservePollCheck records the result of one payment check.
func (c *Collector) ObservePollCheck(result string) {
	if c == nil {
		return
	}
	c.pollChecks.WithLabelValues(result).Inc()
}

// ObserveSessionInvalidated records a forced logout.
func (c *Collector) ObserveSessionInvalidated() {
	if c == nil {
		return
	}
	c.invalidations.Inc()
}

// WatchStarted and WatchStopped track running payment watches.
func (c *Collector) WatchStarted() {
	if c == nil {
		return
	}
	c.watchers.Inc()
}

func (c *Collector) WatchStopped() {
	if c == nil {
		return
	}
	c.watchers.Dec()
}
