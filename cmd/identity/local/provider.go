package local

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gymleague/cmd/account"
	"gymleague/cmd/identity"
	"gymleague/cmd/security/password"
	"gymleague/cmd/security/token"
)

// Provider implements identity.Provider on top of an AccountStore.
type Provider struct {
	log    *slog.Logger
	cfg    Config
	store  AccountStore
	cache  TokenCache
	tokens *tokenManager
	pw     password.Config
	now    func() time.Time
	events *identity.Broadcaster

	// Hash of a random password, verified against when the email is unknown
	// so both branches cost one Argon2id evaluation.
	dummyHash string

	mu      sync.Mutex
	current *identity.Session
}

// Option configures a Provider.
type Option func(*Provider) error

// WithPasswordConfig overrides the hashing parameters and password policy.
func WithPasswordConfig(c password.Config) Option {
	return func(p *Provider) error {
		p.pw = c
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) error {
		if now == nil {
			return errors.New("local: nil clock")
		}
		p.now = now
		return nil
	}
}

// WithEventQueue sets the per-subscriber event buffer.
func WithEventQueue(n int) Option {
	return func(p *Provider) error {
		if n <= 0 {
			return errors.New("local: event queue must be positive")
		}
		p.events = identity.NewBroadcaster(p.log, n)
		return nil
	}
}

// New constructs a Provider. A nil cache keeps the token in memory only.
func New(log *slog.Logger, cfg Config, store AccountStore, cache TokenCache, opts ...Option) (*Provider, error) {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		return nil, errors.New("local: nil account store")
	}
	if cache == nil {
		cache = &MemoryTokenCache{}
	}

	tm, err := newTokenManager(cfg)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		log:    log,
		cfg:    cfg,
		store:  store,
		cache:  cache,
		tokens: tm,
		pw:     password.DefaultConfig(),
		now:    time.Now,
		events: identity.NewBroadcaster(log, 0),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	dummy, err := p.pw.Hash(account.NewID())
	if err != nil {
		return nil, err
	}
	p.dummyHash = dummy

	return p, nil
}

var _ identity.Provider = (*Provider)(nil)

func (p *Provider) SignIn(ctx context.Context, email, pass string) (identity.Session, error) {
	const op = "local.SignIn"

	emailNorm := account.NormalizeEmail(email)
	if emailNorm == "" || pass == "" {
		return identity.Session{}, identity.AuthError{Op: op, Reason: identity.ReasonInvalidCredentials}
	}

	acct, err := p.store.GetAccountByEmail(ctx, emailNorm)
	if err != nil {
		if !account.IsNotFound(err) {
			return identity.Session{}, err
		}
		_, _ = p.pw.Verify(p.dummyHash, pass)
		return identity.Session{}, identity.AuthError{Op: op, Reason: identity.ReasonInvalidCredentials}
	}

	ok, err := p.pw.Verify(acct.PasswordHash, pass)
	if err != nil {
		p.log.Error("local.signin.hash_invalid", "account_id", acct.ID, "err", err)
		return identity.Session{}, identity.AuthError{Op: op, Reason: identity.ReasonInvalidCredentials}
	}
	if !ok {
		return identity.Session{}, identity.AuthError{Op: op, Reason: identity.ReasonInvalidCredentials}
	}

	if p.cfg.RequireVerifiedEmail && !acct.EmailVerified {
		return identity.Session{}, identity.AuthError{Op: op, Reason: identity.ReasonEmailNotVerified}
	}

	now := p.now().UTC()
	sid, err := account.NewULID(now)
	if err != nil {
		return identity.Session{}, err
	}

	tok, exp := p.tokens.Issue(acct.ID, sid, acct.Email, now)

	if err := p.store.CreateSession(ctx, SessionRecord{
		ID:        sid,
		AccountID: acct.ID,
		TokenHash: token.HashSessionTokenHex(tok),
		CreatedAt: now,
		ExpiresAt: exp,
	}); err != nil {
		return identity.Session{}, err
	}

	if err := p.cache.Save(tok); err != nil {
		// The session still works for this process.
		p.log.Warn("local.token_cache.save_failed", "err", err)
	}

	sess := identity.Session{
		ID:          sid,
		AccountID:   acct.ID,
		Email:       acct.Email,
		AccessToken: tok,
		ExpiresAt:   exp,
	}

	p.mu.Lock()
	p.current = &sess
	p.mu.Unlock()

	p.log.Info("local.signin", "account_id", acct.ID, "session_id", sid)
	out := sess
	p.events.Publish(identity.Event{Kind: identity.EventSessionEstablished, Session: &out})

	return sess, nil
}

func (p *Provider) SignUp(ctx context.Context, email, pass string, seed account.ProfileSeed) (string, error) {
	const op = "local.SignUp"

	emailNorm := account.NormalizeEmail(email)
	if emailNorm == "" || !strings.Contains(emailNorm, "@") {
		return "", account.Invalid(op, "invalid email")
	}

	if err := p.pw.Validate(pass); err != nil {
		return "", identity.AuthError{Op: op, Reason: identity.ReasonWeakPassword, Msg: err.Error()}
	}

	hash, err := p.pw.Hash(pass)
	if err != nil {
		return "", err
	}

	id := strings.TrimSpace(seed.ID)
	if id == "" {
		id = account.NewID()
	}

	created, err := p.store.CreateAccount(ctx, Account{
		ID:            id,
		Email:         strings.TrimSpace(email),
		EmailNorm:     emailNorm,
		PasswordHash:  hash,
		EmailVerified: !p.cfg.RequireVerifiedEmail,
		FirstName:     strings.TrimSpace(seed.FirstName),
		LastName:      strings.TrimSpace(seed.LastName),
		CreatedAt:     p.now().UTC(),
	})
	if err != nil {
		var ce account.ConflictError
		if errors.As(err, &ce) && ce.Field == "email" {
			return "", identity.AuthError{Op: op, Reason: identity.ReasonAccountExists}
		}
		return "", err
	}

	p.log.Info("local.signup", "account_id", created.ID, "verified", created.EmailVerified)
	return created.ID, nil
}

// ConfirmEmail marks the account's email verified. It stands in for the
// link a hosted provider would mail out.
func (p *Provider) ConfirmEmail(ctx context.Context, email string) error {
	acct, err := p.store.GetAccountByEmail(ctx, account.NormalizeEmail(email))
	if err != nil {
		return err
	}
	return p.store.MarkEmailVerified(ctx, acct.ID)
}

func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	cur := p.current
	p.current = nil
	p.mu.Unlock()

	var revokeErr error
	if cur != nil {
		revokeErr = p.store.RevokeSession(ctx, cur.ID, p.now().UTC())
		if revokeErr != nil && account.IsNotFound(revokeErr) {
			revokeErr = nil
		}
	}

	if err := p.cache.Clear(); err != nil {
		p.log.Warn("local.token_cache.clear_failed", "err", err)
	}

	if cur != nil {
		p.log.Info("local.signout", "account_id", cur.AccountID, "session_id", cur.ID)
	}
	p.events.Publish(identity.Event{Kind: identity.EventSessionEnded})

	return revokeErr
}

// CurrentSession returns the in-process session, or restores one from the
// token cache. A cached token that no longer verifies, or whose session row is
// revoked or expired, is discarded.
func (p *Provider) CurrentSession(ctx context.Context) (*identity.Session, error) {
	now := p.now().UTC()

	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()

	if cur != nil {
		if cur.ExpiresAt.After(now) {
			out := *cur
			return &out, nil
		}
		p.mu.Lock()
		if p.current == cur {
			p.current = nil
		}
		p.mu.Unlock()
	}

	tok, err := p.cache.Load()
	if err != nil {
		return nil, err
	}
	if tok == "" {
		return nil, nil
	}

	sess, ok, err := p.restore(ctx, tok, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := p.cache.Clear(); err != nil {
			p.log.Warn("local.token_cache.clear_failed", "err", err)
		}
		return nil, nil
	}

	p.mu.Lock()
	p.current = &sess
	p.mu.Unlock()

	out := sess
	return &out, nil
}

func (p *Provider) restore(ctx context.Context, tok string, now time.Time) (identity.Session, bool, error) {
	c, err := p.tokens.Verify(tok, now)
	if err != nil {
		p.log.Info("local.session.restore_rejected", "reason", "token")
		return identity.Session{}, false, nil
	}

	rec, err := p.store.GetSession(ctx, c.SessionID)
	if err != nil {
		if account.IsNotFound(err) {
			p.log.Info("local.session.restore_rejected", "reason", "missing")
			return identity.Session{}, false, nil
		}
		return identity.Session{}, false, err
	}

	if rec.AccountID != c.AccountID || !rec.Active(now) || !token.EqualHex64(rec.TokenHash, token.HashSessionTokenHex(tok)) {
		p.log.Info("local.session.restore_rejected", "reason", "inactive", "session_id", rec.ID)
		return identity.Session{}, false, nil
	}

	return identity.Session{
		ID:          rec.ID,
		AccountID:   rec.AccountID,
		Email:       c.Email,
		AccessToken: tok,
		ExpiresAt:   c.ExpiresAt,
	}, true, nil
}

func (p *Provider) Subscribe(ctx context.Context) (identity.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.events.Subscribe(), nil
}

// Close ends every open subscription.
func (p *Provider) Close() {
	p.events.Close()
}
