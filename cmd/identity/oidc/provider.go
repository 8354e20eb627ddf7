// Package oidc adapts an external OpenID Connect issuer to identity.Provider.
//
// Sign-in uses the resource-owner password grant and verifies the returned
// ID token against the issuer's keys. Account creation belongs to the issuer,
// so SignUp is unsupported. Sessions are held in memory only.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"gymleague/cmd/account"
	"gymleague/cmd/identity"
)

// idClaims are the ID token fields the provider relies on.
type idClaims struct {
	Subject       string    `json:"sub"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Expiry        time.Time `json:"-"`
}

type passwordExchanger interface {
	PasswordCredentialsToken(ctx context.Context, username, password string) (*oauth2.Token, error)
}

type verifyFunc func(ctx context.Context, rawIDToken string) (idClaims, error)

// Provider implements identity.Provider against an OIDC issuer.
type Provider struct {
	log      *slog.Logger
	exchange passwordExchanger
	verify   verifyFunc
	events   *identity.Broadcaster

	mu      sync.Mutex
	current *identity.Session
}

var _ identity.Provider = (*Provider)(nil)

// New discovers the issuer and constructs a Provider.
func New(ctx context.Context, log *slog.Logger, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	op, err := gooidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	verifier := op.Verifier(&gooidc.Config{ClientID: cfg.ClientID})

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "email", "profile"}
	}

	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     op.Endpoint(),
		Scopes:       scopes,
	}

	return newProvider(log, oc, func(ctx context.Context, raw string) (idClaims, error) {
		tok, err := verifier.Verify(ctx, raw)
		if err != nil {
			return idClaims{}, err
		}
		var c idClaims
		if err := tok.Claims(&c); err != nil {
			return idClaims{}, err
		}
		c.Expiry = tok.Expiry
		return c, nil
	}), nil
}

func newProvider(log *slog.Logger, ex passwordExchanger, verify verifyFunc) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{
		log:      log,
		exchange: ex,
		verify:   verify,
		events:   identity.NewBroadcaster(log, 0),
	}
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (identity.Session, error) {
	const op = "oidc.SignIn"

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return identity.Session{}, identity.AuthError{Op: op, Reason: identity.ReasonInvalidCredentials}
	}

	tok, err := p.exchange.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return identity.Session{}, mapTokenError(op, err)
	}

	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return identity.Session{}, fmt.Errorf("%s: issuer returned no id_token", op)
	}

	c, err := p.verify(ctx, raw)
	if err != nil {
		p.log.Warn("oidc.id_token.rejected", "err", err)
		return identity.Session{}, fmt.Errorf("%s: verify id_token: %w", op, err)
	}
	if c.Subject == "" {
		return identity.Session{}, fmt.Errorf("%s: id_token missing sub", op)
	}

	exp := tok.Expiry
	if exp.IsZero() {
		exp = c.Expiry
	}
	if c.Email == "" {
		c.Email = email
	}

	sid, err := account.NewULID(time.Now().UTC())
	if err != nil {
		return identity.Session{}, err
	}

	sess := identity.Session{
		ID:          sid,
		AccountID:   c.Subject,
		Email:       c.Email,
		AccessToken: tok.AccessToken,
		ExpiresAt:   exp,
	}

	p.mu.Lock()
	p.current = &sess
	p.mu.Unlock()

	p.log.Info("oidc.signin", "subject", c.Subject, "email_verified", c.EmailVerified)
	out := sess
	p.events.Publish(identity.Event{Kind: identity.EventSessionEstablished, Session: &out})
	return sess, nil
}

// mapTokenError turns a token endpoint rejection into an AuthError. Issuers
// report "account not fully set up" (typically an unverified email) as
// invalid_grant with a descriptive message.
func mapTokenError(op string, err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return fmt.Errorf("%s: token request: %w", op, err)
	}

	switch re.ErrorCode {
	case "invalid_grant", "unauthorized_client", "invalid_client", "":
		desc := strings.ToLower(re.ErrorDescription)
		if strings.Contains(desc, "not fully set up") ||
			strings.Contains(desc, "verif") ||
			strings.Contains(desc, "not confirmed") {
			return identity.AuthError{Op: op, Reason: identity.ReasonEmailNotVerified, Msg: re.ErrorDescription}
		}
		if re.ErrorCode == "" && re.Response != nil && re.Response.StatusCode >= 500 {
			return fmt.Errorf("%s: token request: %w", op, err)
		}
		return identity.AuthError{Op: op, Reason: identity.ReasonInvalidCredentials}
	default:
		return fmt.Errorf("%s: token request: %w", op, err)
	}
}

func (p *Provider) SignUp(context.Context, string, string, account.ProfileSeed) (string, error) {
	return "", identity.AuthError{Op: "oidc.SignUp", Reason: identity.ReasonUnsupported, Msg: "accounts are created at the issuer"}
}

func (p *Provider) SignOut(context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()

	p.events.Publish(identity.Event{Kind: identity.EventSessionEnded})
	return nil
}

func (p *Provider) CurrentSession(context.Context) (*identity.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil, nil
	}
	if !p.current.ExpiresAt.IsZero() && !p.current.ExpiresAt.After(time.Now()) {
		p.current = nil
		return nil, nil
	}
	out := *p.current
	return &out, nil
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
