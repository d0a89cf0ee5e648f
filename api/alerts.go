package api

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertLoginFailureSpike AlertType = "login_failure_spike"
	// AlertInvalidationSpike fires when many sessions are forced out because
	// their accounts disappeared, e.g. after a bulk deletion upstream.
	AlertInvalidationSpike AlertType = "session_invalidation_spike"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// window counts events inside a sliding time window.
type window struct {
	times     []time.Time
	span      time.Duration
	threshold int
}

// add records an event at now and reports the count when the threshold is
// reached, resetting the window.
func (w *window) add(now time.Time) (int, bool) {
	w.times = append(w.times, now)
	w.times = trimWindow(w.times, now, w.span)
	if len(w.times) < w.threshold {
		return 0, false
	}
	n := len(w.times)
	// Reset to avoid repeated alerts within the same spike.
	w.times = w.times[:0]
	return n, true
}

// alertCollector tracks sliding window counters for anomaly detection.
type alertCollector struct {
	clock clockwork.Clock

	mu            sync.Mutex
	loginFailures window
	invalidations window

	alertFn AlertFunc
}

const (
	defaultLoginFailureWindow    = 1 * time.Minute
	defaultLoginFailureThreshold = 20
	defaultInvalidationWindow    = 5 * time.Minute
	defaultInvalidationThreshold = 3
)

func newAlertCollector(alertFn AlertFunc) *alertCollector {
	return &alertCollector{
		clock:         clockwork.NewRealClock(),
		loginFailures: window{span: defaultLoginFailureWindow, threshold: defaultLoginFailureThreshold},
		invalidations: window{span: defaultInvalidationWindow, threshold: defaultInvalidationThreshold},
		alertFn:       alertFn,
	}
}

// recordEvent inspects an audit event and updates the relevant counters.
func (m *alertCollector) recordEvent(event AuditEvent) {
	if m == nil || m.alertFn == nil {
		return
	}
	switch event {
	case AuditLoginFailure:
		m.record(&m.loginFailures, AlertLoginFailureSpike, "login failure rate exceeds threshold")
	case AuditSessionInvalidated:
		m.record(&m.invalidations, AlertInvalidationSpike, "forced logouts exceed threshold")
	}
}

func (m *alertCollector) record(w *window, typ AlertType, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if n, fire := w.add(now); fire {
		m.alertFn(AlertEvent{
			Type:      typ,
			Message:   msg,
			Count:     n,
			Threshold: w.threshold,
			Timestamp: now,
		})
	}
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
