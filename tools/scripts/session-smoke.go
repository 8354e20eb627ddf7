// Package main is a smoke test for a running gymleague daemon.
//
// It opens the state stream, signs in with demo credentials over HTTP, waits
// for the stream to report demo_active, logs out and waits for
// unauthenticated.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 20

// streamState is the subset of the pushed state the smoke test asserts on.
type streamState struct {
	Status  string `json:"status"`
	Source  string `json:"source"`
	Loading bool   `json:"is_loading"`
	Profile *struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"profile"`
	Error *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:8080", "daemon base URL")
		origin   = flag.String("origin", "", "Origin header for the stream handshake (empty sends none)")
		email    = flag.String("email", "coach@demo.com", "demo account email")
		password = flag.String("password", "demo123", "demo password")
		timeout  = flag.Duration("timeout", 7*time.Second, "per-step timeout")
		verbose  = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	base, err := url.Parse(strings.TrimRight(*baseURL, "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		fatalf("invalid -url %q", *baseURL)
	}

	root := context.Background()
	conn := mustDial(root, streamURL(base), *origin, *timeout)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	first := mustRead(root, conn, *timeout)
	if *verbose {
		fmt.Printf("initial: status=%s source=%s\n", first.Status, first.Source)
	}

	mustPost(root, base.String()+"/session/login", map[string]string{"email": *email, "password": *password}, *timeout)
	st := mustReadUntil(root, conn, "demo_active", *timeout)
	if st.Profile == nil {
		fatalf("demo_active without a profile")
	}
	if *verbose {
		fmt.Printf("login: profile=%s role=%s\n", st.Profile.ID, st.Profile.Role)
	}

	mustPost(root, base.String()+"/session/logout", nil, *timeout)
	mustReadUntil(root, conn, "unauthenticated", *timeout)

	fmt.Println("OK")
}

func streamURL(base *url.URL) string {
	u := *base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/session/stream"
	return u.String()
}

func mustDial(parent context.Context, wsURL, origin string, stepTimeout time.Duration) *websocket.Conn {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	hdr := http.Header{}
	if origin != "" {
		hdr.Set("Origin", origin)
	}
	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		if resp != nil {
			fatalf("dial %s: %v (http %d)", wsURL, err, resp.StatusCode)
		}
		fatalf("dial %s: %v", wsURL, err)
	}
	conn.SetReadLimit(maxReadBytes)
	return conn
}

func mustRead(parent context.Context, conn *websocket.Conn, stepTimeout time.Duration) streamState {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	_, b, err := conn.Read(ctx)
	if err != nil {
		fatalf("read: %v (close_status=%v)", err, websocket.CloseStatus(err))
	}
	var st streamState
	if err := json.Unmarshal(b, &st); err != nil {
		fatalf("decode state: %v", err)
	}
	return st
}

// mustReadUntil skips intermediate states until status is reported.
func mustReadUntil(parent context.Context, conn *websocket.Conn, status string, stepTimeout time.Duration) streamState {
	deadline := time.Now().Add(stepTimeout)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			fatalf("timeout waiting for %q", status)
		}
		st := mustRead(parent, conn, left)
		if st.Status == status {
			return st
		}
		if st.Status == "error" && st.Error != nil {
			fatalf("state error while waiting for %q: %s: %s", status, st.Error.Kind, st.Error.Message)
		}
	}
}

func mustPost(parent context.Context, target string, payload any, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		fatalf("request %s: %v", target, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("POST %s: %v", target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		fatalf("POST %s: http %d: %s", target, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
