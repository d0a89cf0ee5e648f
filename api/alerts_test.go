package api

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alertSink struct {
	mu     sync.Mutex
	alerts []AlertEvent
}

func (s *alertSink) fn(e AlertEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, e)
}

func (s *alertSink) got() []AlertEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AlertEvent(nil), s.alerts...)
}

func TestLoginFailureSpikeAlert(t *testing.T) {
	sink := &alertSink{}
	collector := newAlertCollector(sink.fn)
	collector.loginFailures.threshold = 5

	for i := 0; i < 4; i++ {
		collector.recordEvent(AuditLoginFailure)
	}
	assert.Empty(t, sink.got(), "no alert below threshold")

	collector.recordEvent(AuditLoginFailure)
	alerts := sink.got()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLoginFailureSpike, alerts[0].Type)
	assert.Equal(t, 5, alerts[0].Count)
	assert.Equal(t, 5, alerts[0].Threshold)
}

func TestInvalidationSpikeAlert(t *testing.T) {
	sink := &alertSink{}
	collector := newAlertCollector(sink.fn)

	collector.recordEvent(AuditSessionInvalidated)
	collector.recordEvent(AuditSessionInvalidated)
	collector.recordEvent(AuditLogout)
	assert.Empty(t, sink.got())

	collector.recordEvent(AuditSessionInvalidated)
	alerts := sink.got()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertInvalidationSpike, alerts[0].Type)
	assert.Equal(t, defaultInvalidationThreshold, alerts[0].Count)
}

func TestAlertsWithoutCallback(t *testing.T) {
	collector := newAlertCollector(nil)
	collector.recordEvent(AuditLoginFailure)

	var nilCollector *alertCollector
	nilCollector.recordEvent(AuditLoginFailure)
}

func TestAlertSlidingWindowExpiry(t *testing.T) {
	sink := &alertSink{}
	clock := clockwork.NewFakeClock()
	collector := newAlertCollector(sink.fn)
	collector.clock = clock
	collector.loginFailures.threshold = 5

	for i := 0; i < 4; i++ {
		collector.recordEvent(AuditLoginFailure)
	}
	clock.Advance(defaultLoginFailureWindow + time.Second)

	collector.recordEvent(AuditLoginFailure)
	assert.Empty(t, sink.got(), "old failures should not count after window expiry")
}

func TestAlertResetAfterFiring(t *testing.T) {
	sink := &alertSink{}
	collector := newAlertCollector(sink.fn)
	collector.loginFailures.threshold = 3

	for i := 0; i < 3; i++ {
		collector.recordEvent(AuditLoginFailure)
	}
	require.Len(t, sink.got(), 1, "first alert triggered")

	for i := 0; i < 2; i++ {
		collector.recordEvent(AuditLoginFailure)
	}
	assert.Len(t, sink.got(), 1, "no second alert yet")

	collector.recordEvent(AuditLoginFailure)
	assert.Len(t, sink.got(), 2, "second alert triggered")
}
