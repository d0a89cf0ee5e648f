package api

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// loginRateLimiter tracks failed gateway logins per email address and
// enforces exponential backoff before the request reaches the remote API.
type loginRateLimiter struct {
	clock clockwork.Clock

	mu       sync.Mutex
	attempts map[string]*attemptRecord
}

type attemptRecord struct {
	failures    int
	lastFailure time.Time
	lockedUntil time.Time
}

const (
	// maxFailures is the number of consecutive failures before lockout begins.
	maxFailures = 5
	// baseLockout is the initial lockout duration after maxFailures is reached.
	baseLockout = 1 * time.Minute
	// maxLockout caps the exponential backoff.
	maxLockout = 15 * time.Minute
	// attemptExpiry is how long after the last failure before the record is
	// forgotten.
	attemptExpiry = 1 * time.Hour
)

func newLoginRateLimiter(clock clockwork.Clock) *loginRateLimiter {
	return &loginRateLimiter{
		clock:    clock,
		attempts: make(map[string]*attemptRecord),
	}
}

func limiterKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// check reports whether email is locked out and for how long.
func (rl *loginRateLimiter) check(email string) (blocked bool, retryAfter time.Duration) {
	key := limiterKey(email)
	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.attempts[key]
	if !ok {
		return false, 0
	}
	if now.Sub(rec.lastFailure) > attemptExpiry {
		delete(rl.attempts, key)
		return false, 0
	}
	if now.Before(rec.lockedUntil) {
		return true, rec.lockedUntil.Sub(now)
	}
	return false, 0
}

// recordFailure increments the failure counter and applies exponential
// backoff once maxFailures is reached.
func (rl *loginRateLimiter) recordFailure(email string) {
	key := limiterKey(email)
	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.attempts[key]
	if !ok {
		rec = &attemptRecord{}
		rl.attempts[key] = rec
	}
	rec.failures++
	rec.lastFailure = now

	if rec.failures >= maxFailures {
		// baseLockout * 2^(failures - maxFailures)
		lockout := baseLockout
		for i := 0; i < rec.failures-maxFailures; i++ {
			lockout *= 2
			if lockout > maxLockout {
				lockout = maxLockout
				break
			}
		}
		rec.lockedUntil = now.Add(lockout)
	}
}

// recordSuccess resets the failure counter on a successful login.
func (rl *loginRateLimiter) recordSuccess(email string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, limiterKey(email))
}

// writeRateLimited sends a 429 Too Many Requests response.
func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Retry-After", retryAfterString(retryAfter))
	writeError(w, http.StatusTooManyRequests, "too many failed login attempts; try again later")
}

func retryAfterString(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
