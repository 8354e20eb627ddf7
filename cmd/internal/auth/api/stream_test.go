package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"gymleague/cmd/internal/auth/session"
)

func dialStream(t *testing.T, ctx context.Context, baseURL string, opts *websocket.DialOptions) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(baseURL, "http")+"/session/stream", opts)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readState(t *testing.T, ctx context.Context, conn *websocket.Conn) session.State {
	t.Helper()
	typ, b, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("message type=%v, want text", typ)
	}
	var st session.State
	if err := json.Unmarshal(b, &st); err != nil {
		t.Fatalf("decode: %v (%s)", err, b)
	}
	return st
}

func TestStream_PushesEveryTransition(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m := newTestManager(t)
	ts := newTestServer(t, m, DefaultConfig())
	conn := dialStream(t, ctx, ts.URL, nil)

	if st := readState(t, ctx, conn); st.Status != session.StatusUnauthenticated {
		t.Fatalf("first message status=%s, want current state", st.Status)
	}

	if err := m.Login(ctx, "coach@demo.com", "demo123"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Coalescing may drop the intermediate loading state; the final one always arrives.
	for {
		st := readState(t, ctx, conn)
		if st.Status == session.StatusDemoActive {
			if st.Profile == nil || st.Profile.ID != "demo-coach-id" {
				t.Fatalf("profile=%+v", st.Profile)
			}
			break
		}
	}

	if err := m.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if st := readState(t, ctx, conn); st.Status != session.StatusUnauthenticated {
		t.Fatalf("after logout status=%s", st.Status)
	}

	_ = conn.Close(websocket.StatusNormalClosure, "done")
}

func TestStream_ClosesWhenManagerCloses(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m := newTestManager(t)
	ts := newTestServer(t, m, DefaultConfig())
	conn := dialStream(t, ctx, ts.URL, nil)
	_ = readState(t, ctx, conn)

	m.Close()

	_, _, err := conn.Read(ctx)
	if got := websocket.CloseStatus(err); got != websocket.StatusGoingAway {
		t.Fatalf("close status=%v (err=%v), want going away", got, err)
	}
}

func TestStream_RejectsForeignOrigin(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ts := newTestServer(t, newTestManager(t), DefaultConfig())

	hdr := http.Header{}
	hdr.Set("Origin", "https://evil.example")
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/session/stream", &websocket.DialOptions{HTTPHeader: hdr})
	if err == nil {
		t.Fatalf("expected dial to fail for foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
}
