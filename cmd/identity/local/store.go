package local

import (
	"context"
	"time"
)

// Account is a credentialed provider account. It is not a Profile: the
// profile row is created separately by the session manager.
type Account struct {
	ID            string
	Email         string
	EmailNorm     string
	PasswordHash  string
	EmailVerified bool
	FirstName     string
	LastName      string
	CreatedAt     time.Time
}

// SessionRecord is the server-side row behind an issued access token.
// Only the token hash is stored.
type SessionRecord struct {
	ID        string
	AccountID string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session may still be used at now.
func (r SessionRecord) Active(now time.Time) bool {
	return r.RevokedAt == nil && r.ExpiresAt.After(now)
}

// AccountStore is the provider's persistence boundary.
type AccountStore interface {
	// CreateAccount inserts an account. A taken email yields account.ConflictError{Field: "email"}.
	CreateAccount(ctx context.Context, in Account) (Account, error)

	// GetAccountByEmail looks an account up by normalized email (account.NotFoundError if missing).
	GetAccountByEmail(ctx context.Context, emailNorm string) (Account, error)

	// MarkEmailVerified flags the account's email as confirmed.
	MarkEmailVerified(ctx context.Context, accountID string) error

	CreateSession(ctx context.Context, in SessionRecord) error
	GetSession(ctx context.Context, sessionID string) (SessionRecord, error)
	RevokeSession(ctx context.Context, sessionID string, now time.Time) error
}
