package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"gymleague/cmd/account"
)

// attemptLimiter counts failed credential attempts per normalized email over
// a sliding window. It lives in memory: the daemon serves a single user and
// a restart resets the counters.
type attemptLimiter struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	failures map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max <= 0 {
		return nil
	}
	return &attemptLimiter{max: max, window: window, failures: make(map[string][]time.Time)}
}

// check reports whether email is currently blocked and for how long.
func (l *attemptLimiter) check(email string, now time.Time) (bool, time.Duration) {
	if l == nil {
		return false, 0
	}
	key := account.NormalizeEmail(email)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.failures[key] = prune(l.failures[key], now, l.window)
	if len(l.failures[key]) == 0 {
		delete(l.failures, key)
		return false, 0
	}
	return evaluateWindowThrottle(now, l.failures[key], l.max, l.window)
}

func (l *attemptLimiter) fail(email string, now time.Time) {
	if l == nil {
		return
	}
	key := account.NormalizeEmail(email)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[key] = append(prune(l.failures[key], now, l.window), now)
}

func (l *attemptLimiter) reset(email string) {
	if l == nil {
		return
	}
	key := account.NormalizeEmail(email)

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, key)
}

func prune(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	cut := now.Add(-window)
	dst := ts[:0]
	for _, t := range ts {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}
	return dst
}

// evaluateWindowThrottle blocks once max failures fall inside window. The
// retry delay runs until the oldest counted failure leaves the window.
func evaluateWindowThrottle(now time.Time, failures []time.Time, max int, window time.Duration) (bool, time.Duration) {
	if max <= 0 {
		return false, 0
	}
	cut := now.Add(-window)

	var (
		count  int
		oldest time.Time
	)
	for _, t := range failures {
		if !t.After(cut) {
			continue
		}
		count++
		if oldest.IsZero() || t.Before(oldest) {
			oldest = t
		}
	}
	if count < max {
		return false, 0
	}
	return true, oldest.Add(window).Sub(now)
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64(retryAfter / time.Second)
		if retryAfter%time.Second != 0 {
			secs++
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, apiError{Code: "rate_limited", Message: "too many attempts"}, nil)
}
