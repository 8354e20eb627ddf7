package local

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrConfig is returned for invalid provider configuration.
var ErrConfig = errors.New("local provider: invalid config")

// Config controls token lifetime, signing keys and the verification gate.
type Config struct {
	// Issuer is the "iss" claim of access tokens.
	Issuer string

	// TokenTTL is the lifetime of an access token and of its session row.
	TokenTTL time.Duration

	// ClockSkew is tolerated during token validation.
	ClockSkew time.Duration

	// PasetoV4SecretKeyHex is the hex-encoded Ed25519 key signing v4.public tokens.
	PasetoV4SecretKeyHex string

	// RequireVerifiedEmail rejects sign-in for accounts whose email is not confirmed.
	// New accounts start unverified when this is set.
	RequireVerifiedEmail bool
}

// DefaultConfig returns development defaults (no signing key).
func DefaultConfig() Config {
	return Config{
		Issuer:               "gymleague",
		TokenTTL:             7 * 24 * time.Hour,
		ClockSkew:            30 * time.Second,
		RequireVerifiedEmail: true,
	}
}

// LoadConfigFromEnv loads provider configuration.
//
// Required:
//   - GYM_LOCAL_PASETO_SECRET_KEY_HEX
//
// Optional:
//   - GYM_LOCAL_ISSUER
//   - GYM_LOCAL_TOKEN_TTL (Go duration)
//   - GYM_LOCAL_CLOCK_SKEW (Go duration)
//   - GYM_LOCAL_REQUIRE_VERIFIED_EMAIL (bool)
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("GYM_LOCAL_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("GYM_LOCAL_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.TokenTTL = d
	}

	if v := os.Getenv("GYM_LOCAL_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	if v := os.Getenv("GYM_LOCAL_REQUIRE_VERIFIED_EMAIL"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.RequireVerifiedEmail = b
	}

	cfg.PasetoV4SecretKeyHex = strings.TrimSpace(os.Getenv("GYM_LOCAL_PASETO_SECRET_KEY_HEX"))
	if cfg.PasetoV4SecretKeyHex == "" {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
