package app

import (
	"errors"
	"fmt"

	"gymleague/cmd/security/token"
)

// minTokenHMACKeyBytes is the HMAC-SHA256 key floor, measured in bytes.
const minTokenHMACKeyBytes = 32

// ValidateSecurityConfig fails startup when GYM_REQUIRE_TOKEN_HMAC is set but
// the key that token.HashSessionTokenHex reads is missing or too short.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	if _, err := token.HMACKeyFromEnv(minTokenHMACKeyBytes); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return fmt.Errorf("%w: GYM_REQUIRE_TOKEN_HMAC=true but %s is missing", ErrConfig, token.HMACEnvKey)
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return fmt.Errorf("%w: GYM_REQUIRE_TOKEN_HMAC=true but %s is shorter than %d bytes", ErrConfig, token.HMACEnvKey, minTokenHMACKeyBytes)
		default:
			return err
		}
	}
	return nil
}
