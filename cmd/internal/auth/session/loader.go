package session

import (
	"context"
	"errors"
	"fmt"

	"gymleague/cmd/account"
	"gymleague/cmd/internal/profile"
)

// LoadResult carries either a profile or a *ProfileLoadError.
type LoadResult struct {
	Profile *account.Profile
	Err     error
}

// OK reports whether the load produced a profile.
func (r LoadResult) OK() bool { return r.Err == nil && r.Profile != nil }

// Loader reads the profile behind an identity.
type Loader struct {
	store profile.Store
}

// NewLoader constructs a Loader over store.
func NewLoader(store profile.Store) *Loader {
	return &Loader{store: store}
}

// Load performs one joined read. It never panics and never returns a bare
// error: every failure is a *ProfileLoadError inside the result.
func (l *Loader) Load(ctx context.Context, accountID string) (res LoadResult) {
	fail := func(err error) LoadResult {
		return LoadResult{Err: &ProfileLoadError{AccountID: accountID, Err: err}}
	}

	defer func() {
		if r := recover(); r != nil {
			res = fail(fmt.Errorf("panic: %v", r))
		}
	}()

	if l == nil || l.store == nil {
		return fail(errors.New("no profile store configured"))
	}

	p, err := l.store.GetProfile(ctx, accountID)
	if err != nil {
		return fail(err)
	}
	if p.ID != accountID {
		return fail(fmt.Errorf("store returned profile %s", p.ID))
	}
	if err := p.Validate(); err != nil {
		return fail(err)
	}
	return LoadResult{Profile: &p}
}
