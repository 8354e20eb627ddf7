package identity

import (
	"context"
	"time"

	"gymleague/cmd/account"
)

// Session is a live provider-issued session.
// AccessToken is opaque to callers and must never be logged.
type Session struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Email       string    `json:"email"`
	AccessToken string    `json:"-"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// EventKind classifies a change notification.
type EventKind string

const (
	// EventSessionEstablished is emitted after a sign-in (or a token refresh) yields a live session.
	EventSessionEstablished EventKind = "session_established"
	// EventSessionEnded is emitted after sign-out or revocation.
	EventSessionEnded EventKind = "session_ended"
)

// Event is one change notification. Session is nil for EventSessionEnded.
type Event struct {
	Kind    EventKind
	Session *Session
}

// Subscription is a cancellable change-notification stream.
// Events is closed after Cancel; Cancel is idempotent.
type Subscription interface {
	Events() <-chan Event
	Cancel()
}

// Provider is the identity provider client.
type Provider interface {
	// SignIn authenticates credentials. A successful sign-in is also announced
	// on every open Subscription.
	SignIn(ctx context.Context, email, password string) (Session, error)

	// SignUp creates a remote account and returns its id. It does not sign in.
	SignUp(ctx context.Context, email, password string, seed account.ProfileSeed) (accountID string, err error)

	// SignOut ends the current session, if any.
	SignOut(ctx context.Context) error

	// CurrentSession returns the live session, or nil when there is none.
	CurrentSession(ctx context.Context) (*Session, error)

	// Subscribe opens a change-notification stream.
	Subscribe(ctx context.Context) (Subscription, error)
}
