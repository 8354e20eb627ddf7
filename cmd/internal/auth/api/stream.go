package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"gymleague/cmd/internal/auth/session"
)

// handleStream upgrades to a WebSocket and pushes the current state followed
// by one JSON State message per transition. Client messages are discarded.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.OriginPatterns,
	})
	if err != nil {
		h.log.Info("api.stream.accept.fail", "err", err, "origin", r.Header.Get("Origin"))
		return
	}
	defer func() { _ = conn.CloseNow() }()

	// CloseRead keeps control frames flowing and cancels ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	states, cancel := h.sessions.Subscribe(h.cfg.StreamBuffer)
	defer cancel()

	ping := time.NewTicker(h.cfg.StreamPingInterval)
	defer ping.Stop()

	h.log.Debug("api.stream.open", "remote", r.RemoteAddr)
	for {
		select {
		case <-ctx.Done():
			h.log.Debug("api.stream.closed", "remote", r.RemoteAddr)
			return

		case st, ok := <-states:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "session manager closed")
				return
			}
			if err := writeState(ctx, conn, st, h.cfg.StreamWriteTimeout); err != nil {
				h.log.Info("api.stream.write.fail", "close_status", websocket.CloseStatus(err), "err", err)
				return
			}

		case <-ping.C:
			pctx, pcancel := context.WithTimeout(ctx, h.cfg.StreamWriteTimeout)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				h.log.Info("api.stream.ping.fail", "err", err)
				_ = conn.Close(websocket.StatusGoingAway, "heartbeat failed")
				return
			}
		}
	}
}

func writeState(parent context.Context, conn *websocket.Conn, st session.State, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}
