package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowsBeforeThreshold(t *testing.T) {
	rl := newLoginRateLimiter(clockwork.NewFakeClock())

	for i := 0; i < maxFailures-1; i++ {
		rl.recordFailure("ayesha@example.org")
		blocked, _ := rl.check("ayesha@example.org")
		assert.False(t, blocked, "should not block before reaching maxFailures")
	}
}

func TestRateLimiter_BlocksAfterThreshold(t *testing.T) {
	rl := newLoginRateLimiter(clockwork.NewFakeClock())

	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("ayesha@example.org")
	}

	blocked, retryAfter := rl.check("ayesha@example.org")
	require.True(t, blocked, "should block after maxFailures")
	assert.Equal(t, baseLockout, retryAfter)
}

func TestRateLimiter_KeyIgnoresCaseAndSpace(t *testing.T) {
	rl := newLoginRateLimiter(clockwork.NewFakeClock())

	for i := 0; i < maxFailures; i++ {
		rl.recordFailure(" Ayesha@Example.org ")
	}
	blocked, _ := rl.check("ayesha@example.org")
	assert.True(t, blocked)
}

func TestRateLimiter_ExponentialBackoff(t *testing.T) {
	rl := newLoginRateLimiter(clockwork.NewFakeClock())

	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("ayesha@example.org")
	}
	_, first := rl.check("ayesha@example.org")

	rl.recordFailure("ayesha@example.org")
	_, second := rl.check("ayesha@example.org")
	assert.Equal(t, 2*first, second, "lockout should double with each further failure")
}

func TestRateLimiter_LockoutElapses(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := newLoginRateLimiter(clock)

	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("ayesha@example.org")
	}
	clock.Advance(baseLockout - time.Second)
	blocked, retryAfter := rl.check("ayesha@example.org")
	require.True(t, blocked)
	assert.Equal(t, time.Second, retryAfter)

	clock.Advance(time.Second)
	blocked, _ = rl.check("ayesha@example.org")
	assert.False(t, blocked)
}

func TestRateLimiter_SuccessResetsCounter(t *testing.T) {
	rl := newLoginRateLimiter(clockwork.NewFakeClock())

	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("ayesha@example.org")
	}
	blocked, _ := rl.check("ayesha@example.org")
	require.True(t, blocked)

	rl.recordSuccess("ayesha@example.org")

	blocked, _ = rl.check("ayesha@example.org")
	assert.False(t, blocked, "should not block after successful login")
}

func TestRateLimiter_IsolatesAccounts(t *testing.T) {
	rl := newLoginRateLimiter(clockwork.NewFakeClock())

	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("ayesha@example.org")
	}
	blocked, _ := rl.check("ayesha@example.org")
	require.True(t, blocked)

	blocked, _ = rl.check("bilal@example.org")
	assert.False(t, blocked, "rate limit for one email should not affect another")
}

func TestRateLimiter_ExpiredRecordForgotten(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := newLoginRateLimiter(clock)

	for i := 0; i < maxFailures+20; i++ {
		rl.recordFailure("ayesha@example.org")
	}
	clock.Advance(attemptExpiry + time.Minute)

	blocked, _ := rl.check("ayesha@example.org")
	assert.False(t, blocked)

	rl.mu.Lock()
	_, exists := rl.attempts["ayesha@example.org"]
	rl.mu.Unlock()
	assert.False(t, exists, "check should drop expired records")
}

func TestRateLimiter_MaxLockoutCap(t *testing.T) {
	rl := newLoginRateLimiter(clockwork.NewFakeClock())

	for i := 0; i < maxFailures+20; i++ {
		rl.recordFailure("ayesha@example.org")
	}

	_, retryAfter := rl.check("ayesha@example.org")
	assert.Equal(t, maxLockout, retryAfter)
}

func TestWriteRateLimited(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"whole seconds", 90 * time.Second, "90"},
		{"rounds down", 1500 * time.Millisecond, "1"},
		{"never zero", 10 * time.Millisecond, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeRateLimited(rec, tt.d)
			assert.Equal(t, 429, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Retry-After"))
		})
	}
}
