package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skwf/portal/internal/logger"
)

func newTestWebhook(url, authHeader string) *auditWebhook {
	wh := newAuditWebhook(url, authHeader, logger.Discard())
	wh.retryDelay = 10 * time.Millisecond
	return wh
}

func TestWebhook_SuccessfulDelivery(t *testing.T) {
	var received webhookEvent
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := newTestWebhook(srv.URL, "")
	wh.enqueue(webhookEvent{
		Event:      "login_success",
		UserID:     "u-1",
		RemoteAddr: "127.0.0.1:1234",
		Timestamp:  "2025-01-01T00:00:00Z",
		Attrs:      map[string]string{"key": "value"},
	})
	wh.close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "login_success", received.Event)
	assert.Equal(t, "u-1", received.UserID)
	assert.Equal(t, "127.0.0.1:1234", received.RemoteAddr)
	assert.Equal(t, "value", received.Attrs["key"])
}

func TestWebhook_RetryOn500(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := newTestWebhook(srv.URL, "")
	wh.enqueue(webhookEvent{Event: "test_event", Timestamp: "2025-01-01T00:00:00Z"})
	wh.close()

	assert.Equal(t, int32(2), attempts.Load(), "should have retried once after 500")
}

func TestWebhook_NoRetryOn400(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	wh := newTestWebhook(srv.URL, "")
	wh.enqueue(webhookEvent{Event: "test_event", Timestamp: "2025-01-01T00:00:00Z"})
	wh.close()

	assert.Equal(t, int32(1), attempts.Load(), "should not retry on 4xx")
}

func TestWebhook_Headers(t *testing.T) {
	var gotAuth, gotContentType string
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := newTestWebhook(srv.URL, "Authorization: Bearer my-token-123")
	wh.enqueue(webhookEvent{Event: "test_event", Timestamp: "2025-01-01T00:00:00Z"})
	wh.close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Bearer my-token-123", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
}

func TestWebhook_QueueFullNonBlocking(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	wh := &auditWebhook{
		url:    srv.URL,
		client: &http.Client{Timeout: 100 * time.Millisecond},
		logger: logger.Discard(),
		events: make(chan webhookEvent, 2),
	}
	wh.wg.Add(1)
	go wh.loop()

	// Returning from the loop at all means enqueue never blocked.
	for i := 0; i < 10; i++ {
		wh.enqueue(webhookEvent{Event: "flood", Timestamp: "2025-01-01T00:00:00Z"})
	}
	close(wh.events)
}

func TestWebhook_GracefulShutdownDrains(t *testing.T) {
	var count atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := newTestWebhook(srv.URL, "")
	for i := 0; i < 5; i++ {
		wh.enqueue(webhookEvent{Event: "drain_test", Timestamp: "2025-01-01T00:00:00Z"})
	}
	wh.close()

	assert.Equal(t, int32(5), count.Load(), "all queued events should be delivered on close")
}

func TestWebhookEventFromAttrs(t *testing.T) {
	evt := newWebhookEvent(AuditPaymentSubmitted, "10.0.0.1:5555", "2025-06-15T12:00:00Z", []slog.Attr{
		slog.String("user_id", "u-42"),
		slog.String("payment_id", "p-1"),
		slog.String("amount", "5000"),
	})

	body, err := json.Marshal(evt)
	require.NoError(t, err)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(body, &parsed))

	assert.Equal(t, "payment_submitted", parsed["event"])
	assert.Equal(t, "u-42", parsed["user_id"])
	assert.Equal(t, "10.0.0.1:5555", parsed["remote_addr"])
	assert.Equal(t, "2025-06-15T12:00:00Z", parsed["timestamp"])
	attrs, ok := parsed["attrs"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "p-1", attrs["payment_id"])
	assert.Equal(t, "5000", attrs["amount"])
}
