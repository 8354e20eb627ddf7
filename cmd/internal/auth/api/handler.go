package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"gymleague/cmd/identity"
	"gymleague/cmd/internal/auth/session"
)

// SessionManager is the part of *session.Manager the API drives.
type SessionManager interface {
	Current() session.State
	Login(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password, firstName, lastName string) error
	Logout(ctx context.Context) error
	Subscribe(buf int) (<-chan session.State, func())
}

// Handler exposes the session state and its operations over HTTP.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	sessions SessionManager
	attempts *attemptLimiter
	now      func() time.Time
}

// HandlerOption configures optional Handler behavior.
type HandlerOption func(*Handler)

// WithClock overrides the clock used for attempt throttling.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs a Handler over sessions.
func NewHandler(log *slog.Logger, sessions SessionManager, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("api: nil session manager")
	}
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	h := &Handler{
		log:      log,
		cfg:      cfg,
		sessions: sessions,
		attempts: newAttemptLimiter(cfg.AttemptMax, cfg.AttemptWindow),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires session routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/session", h.handleState)
	mux.HandleFunc("/session/login", h.handleLogin)
	mux.HandleFunc("/session/signup", h.handleSignup)
	mux.HandleFunc("/session/logout", h.handleLogout)
	mux.HandleFunc("/session/stream", h.handleStream)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{State: h.sessions.Current()})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		h.writeInvalidJSON(w)
		return
	}

	if blocked, retry := h.attempts.check(req.Email, h.now()); blocked {
		h.log.Info("api.login.rate_limited", "retry_after", retry)
		writeRateLimited(w, retry)
		return
	}

	err := h.sessions.Login(context.WithoutCancel(r.Context()), req.Email, req.Password)
	h.recordAttempt(req.Email, err)
	if err != nil {
		h.writeOpError(w, "api.login.fail", err)
		return
	}
	h.writeAccepted(w)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req signupRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		h.writeInvalidJSON(w)
		return
	}

	if blocked, retry := h.attempts.check(req.Email, h.now()); blocked {
		h.log.Info("api.signup.rate_limited", "retry_after", retry)
		writeRateLimited(w, retry)
		return
	}

	err := h.sessions.SignUp(context.WithoutCancel(r.Context()), req.Email, req.Password, req.FirstName, req.LastName)
	h.recordAttempt(req.Email, err)
	if err != nil {
		h.writeOpError(w, "api.signup.fail", err)
		return
	}
	h.writeAccepted(w)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if err := h.sessions.Logout(r.Context()); err != nil {
		h.writeOpError(w, "api.logout.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{State: h.sessions.Current()})
}

// writeAccepted answers a successful login or signup. A provider-backed
// transition completes asynchronously, so a still-loading state is 202.
func (h *Handler) writeAccepted(w http.ResponseWriter) {
	st := h.sessions.Current()
	status := http.StatusOK
	if st.Loading {
		status = http.StatusAccepted
	}
	writeJSON(w, status, stateResponse{State: st})
}

func (h *Handler) writeInvalidJSON(w http.ResponseWriter) {
	st := h.sessions.Current()
	writeError(w, http.StatusBadRequest, apiError{Code: "invalid_json", Message: "invalid request body"}, &st)
}

func (h *Handler) writeOpError(w http.ResponseWriter, event string, err error) {
	status, e := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(event, "err", err)
	} else {
		h.log.Info(event, "code", e.Code, "reason", e.Reason)
	}
	st := h.sessions.Current()
	writeError(w, status, e, &st)
}

// recordAttempt counts credential rejections only. Anything else, success
// included, leaves or resets the counter.
func (h *Handler) recordAttempt(email string, err error) {
	switch {
	case err == nil:
		h.attempts.reset(email)
	case identity.ReasonOf(err) == identity.ReasonInvalidCredentials:
		h.attempts.fail(email, h.now())
	}
}

// classify maps an operation error to an HTTP status and error body.
func classify(err error) (int, apiError) {
	if errors.Is(err, session.ErrClosed) {
		return http.StatusServiceUnavailable, apiError{Code: "unavailable", Message: "session manager closed"}
	}

	f := session.FailureOf(err)
	e := apiError{Code: string(f.Kind), Reason: string(f.Reason), Message: f.Message}

	switch f.Kind {
	case session.FailureAuth:
		switch f.Reason {
		case identity.ReasonEmailNotVerified:
			return http.StatusForbidden, e
		case identity.ReasonAccountExists:
			return http.StatusConflict, e
		case identity.ReasonWeakPassword:
			return http.StatusBadRequest, e
		case identity.ReasonUnsupported:
			return http.StatusNotImplemented, e
		default:
			return http.StatusUnauthorized, e
		}
	case session.FailureConstraint:
		return http.StatusConflict, e
	case session.FailureInvalidInput:
		return http.StatusBadRequest, e
	default:
		e.Message = "internal error"
		return http.StatusInternalServerError, e
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	w.WriteHeader(http.StatusMethodNotAllowed)
	return false
}
