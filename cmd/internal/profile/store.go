// Package profile is the backing store for extended account profiles.
//
// Writes are authorized by the store itself: the caller attaches the
// authenticated account id to the context with WithActor, and the store (a
// row-level security policy in Postgres) decides whether the write is allowed.
package profile

import (
	"context"
	"strings"

	"gymleague/cmd/account"
)

// Store reads and creates profiles.
type Store interface {
	// GetProfile returns the profile with its gym joined in (account.NotFoundError if missing).
	GetProfile(ctx context.Context, id string) (account.Profile, error)

	// CreateProfile inserts p. Duplicate ids or emails yield account.ConflictError;
	// a write the access policy refuses yields account.PermissionError.
	CreateProfile(ctx context.Context, p account.Profile) (account.Profile, error)
}

type actorKey struct{}

// WithActor returns a context carrying the authenticated account id.
func WithActor(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, actorKey{}, strings.TrimSpace(accountID))
}

// ActorFrom returns the account id attached by WithActor.
func ActorFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(actorKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
