package api

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestEvaluateWindowThrottle(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	failures := []time.Time{
		now.Add(-1 * time.Minute),
		now.Add(-2 * time.Minute),
		now.Add(-6 * time.Minute),
	}

	blocked, retry := evaluateWindowThrottle(now, failures, 2, 5*time.Minute)
	if !blocked {
		t.Fatalf("expected window throttle to block")
	}
	if retry != 3*time.Minute {
		t.Fatalf("expected retry=3m, got %v", retry)
	}

	blocked, retry = evaluateWindowThrottle(now, failures, 3, 5*time.Minute)
	if blocked {
		t.Fatalf("expected window throttle to allow")
	}
	if retry != 0 {
		t.Fatalf("expected retry=0, got %v", retry)
	}
}

func TestAttemptLimiter_ResetAndExpiry(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	l := newAttemptLimiter(2, time.Minute)

	l.fail("a@b.c", now)
	l.fail("A@B.C", now.Add(time.Second))
	if blocked, _ := l.check("a@b.c", now.Add(2*time.Second)); !blocked {
		t.Fatalf("expected block after two failures")
	}
	if blocked, _ := l.check("a@b.c", now.Add(2*time.Minute)); blocked {
		t.Fatalf("expected failures to expire")
	}

	l.fail("a@b.c", now)
	l.fail("a@b.c", now)
	l.reset("a@b.c")
	if blocked, _ := l.check("a@b.c", now); blocked {
		t.Fatalf("expected reset to clear failures")
	}
}

func TestAttemptLimiter_Disabled(t *testing.T) {
	l := newAttemptLimiter(0, time.Minute)
	if l != nil {
		t.Fatalf("expected nil limiter when max is zero")
	}
	l.fail("a@b.c", time.Now())
	if blocked, _ := l.check("a@b.c", time.Now()); blocked {
		t.Fatalf("disabled limiter must never block")
	}
}

func TestWriteRateLimited_RoundsRetryAfterUp(t *testing.T) {
	rr := httptest.NewRecorder()
	writeRateLimited(rr, 1500*time.Millisecond)
	if got := rr.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("Retry-After=%q, want 2", got)
	}
}
