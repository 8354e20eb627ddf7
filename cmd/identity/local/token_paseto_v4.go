package local

import (
	"errors"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

// errInvalidToken is returned when an access token fails verification.
var errInvalidToken = errors.New("invalid token")

// claims is the identity envelope carried by an access token.
type claims struct {
	AccountID string
	SessionID string
	Email     string
	ExpiresAt time.Time
}

// tokenManager issues and verifies PASETO v4.public access tokens.
type tokenManager struct {
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

func newTokenManager(cfg Config) (*tokenManager, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.PasetoV4SecretKeyHex)
	if err != nil {
		return nil, ErrConfig
	}
	if cfg.TokenTTL <= 0 {
		return nil, ErrConfig
	}

	return &tokenManager{
		issuer:    cfg.Issuer,
		ttl:       cfg.TokenTTL,
		clockSkew: cfg.ClockSkew,
		secret:    secret,
		public:    secret.Public(),
	}, nil
}

func (m *tokenManager) Issue(accountID, sessionID, email string, now time.Time) (string, time.Time) {
	exp := now.Add(m.ttl)

	tok := paseto.NewToken()
	tok.SetIssuer(m.issuer)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(exp)
	tok.SetString("uid", accountID)
	tok.SetString("sid", sessionID)
	tok.SetString("email", email)

	return tok.V4Sign(m.secret, nil), exp
}

func (m *tokenManager) Verify(token string, now time.Time) (claims, error) {
	// Validate slightly in the future so "nbf" tolerates clock differences.
	validAt := now.Add(m.clockSkew)

	p := paseto.NewParser()
	p.AddRule(paseto.IssuedBy(m.issuer))
	p.AddRule(paseto.ValidAt(validAt))

	parsed, err := p.ParseV4Public(m.public, token, nil)
	if err != nil {
		return claims{}, errInvalidToken
	}

	exp, err := parsed.GetExpiration()
	if err != nil {
		return claims{}, errInvalidToken
	}
	uid, err := parsed.GetString("uid")
	if err != nil || uid == "" {
		return claims{}, errInvalidToken
	}
	sid, err := parsed.GetString("sid")
	if err != nil || sid == "" {
		return claims{}, errInvalidToken
	}
	email, _ := parsed.GetString("email")

	return claims{AccountID: uid, SessionID: sid, Email: email, ExpiresAt: exp}, nil
}
