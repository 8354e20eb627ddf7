package identity

import (
	"errors"
	"fmt"
)

// ErrAuth is the kind shared by every AuthError.
var ErrAuth = errors.New("auth_error")

// Reason is a stable machine-readable AuthError cause.
type Reason string

const (
	ReasonInvalidCredentials Reason = "invalid_credentials"
	ReasonEmailNotVerified   Reason = "email_not_verified"
	ReasonAccountExists      Reason = "account_exists"
	ReasonWeakPassword       Reason = "weak_password"
	ReasonUnsupported        Reason = "unsupported"
)

// AuthError reports a rejected authentication request.
type AuthError struct {
	Op     string
	Reason Reason
	Msg    string
}

func (e AuthError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v: %s", e.Op, ErrAuth, e.Reason)
	}
	return fmt.Sprintf("%s: %v: %s: %s", e.Op, ErrAuth, e.Reason, e.Msg)
}

func (e AuthError) Unwrap() error { return ErrAuth }

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool { return errors.Is(err, ErrAuth) }

// ReasonOf returns the AuthError reason of err, or "" if err is not an AuthError.
func ReasonOf(err error) Reason {
	var ae AuthError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ""
}

// IsUnverified reports whether err says the account exists but its email is not verified yet.
func IsUnverified(err error) bool { return ReasonOf(err) == ReasonEmailNotVerified }
