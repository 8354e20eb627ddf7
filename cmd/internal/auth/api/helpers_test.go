package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gymleague/cmd/account"
	"gymleague/cmd/internal/auth/demo"
	"gymleague/cmd/internal/auth/session"
	"gymleague/cmd/internal/auth/slot"
)

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestManager(t *testing.T) *session.Manager {
	t.Helper()

	gym := "demo-gym-id"
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := demo.NewResolver(demo.Catalog{
		Password: "demo123",
		Accounts: map[string]account.Profile{
			"coach@demo.com": {ID: "demo-coach-id", Email: "coach@demo.com", FirstName: "Demo", LastName: "Coach", Role: account.RoleCoach, GymID: &gym, IsActive: true, CreatedAt: at, UpdatedAt: at},
		},
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	m, err := session.NewManager(session.Deps{Slot: slot.NewMemory(quietLog()), Demo: res, Log: quietLog()})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func newTestServer(t *testing.T, sessions SessionManager, cfg Config, opts ...HandlerOption) *httptest.Server {
	t.Helper()

	h, err := NewHandler(quietLog(), sessions, cfg, opts...)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	mux := http.NewServeMux()
	h.Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, payload any) (int, []byte) {
	t.Helper()

	var body io.Reader
	switch p := payload.(type) {
	case nil:
	case string:
		body = bytes.NewBufferString(p)
	default:
		b, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return resp.StatusCode, out
}

func decodeState(t *testing.T, b []byte) session.State {
	t.Helper()
	var resp stateResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		t.Fatalf("decode state: %v (%s)", err, b)
	}
	return resp.State
}

func decodeError(t *testing.T, b []byte) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		t.Fatalf("decode error: %v (%s)", err, b)
	}
	return resp
}

// stubSessions returns canned errors so every classification path can be hit.
type stubSessions struct {
	mu    sync.Mutex
	state session.State
	err   error
	calls int
	// canceled counts calls that arrived with a done context.
	canceled int
}

func (s *stubSessions) Current() session.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *stubSessions) Login(ctx context.Context, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if ctx.Err() != nil {
		s.canceled++
	}
	return s.err
}

func (s *stubSessions) SignUp(ctx context.Context, _, _, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if ctx.Err() != nil {
		s.canceled++
	}
	return s.err
}

func (s *stubSessions) Logout(context.Context) error { return s.err }

func (s *stubSessions) Subscribe(int) (<-chan session.State, func()) {
	ch := make(chan session.State)
	close(ch)
	return ch, func() {}
}

func (s *stubSessions) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var errBoom = errors.New("boom")
