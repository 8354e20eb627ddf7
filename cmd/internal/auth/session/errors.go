package session

import (
	"errors"
	"fmt"

	"gymleague/cmd/account"
	"gymleague/cmd/identity"
)

var (
	// ErrAlreadyStarted is returned by a second Start call.
	ErrAlreadyStarted = errors.New("session manager already started")

	// ErrClosed is returned by operations on a closed Manager.
	ErrClosed = errors.New("session manager closed")

	// ErrProfileLoad is the kind shared by every ProfileLoadError.
	ErrProfileLoad = errors.New("profile_load_failure")
)

// ProfileLoadError reports that the profile behind an identity could not be read.
type ProfileLoadError struct {
	AccountID string
	Err       error
}

func (e *ProfileLoadError) Error() string {
	return fmt.Sprintf("%v: account %s: %v", ErrProfileLoad, e.AccountID, e.Err)
}

func (e *ProfileLoadError) Unwrap() []error { return []error{ErrProfileLoad, e.Err} }

// FailureKind classifies a Failure for display.
type FailureKind string

const (
	FailureAuth         FailureKind = "auth_error"
	FailureProfileLoad  FailureKind = "profile_load_failure"
	FailureConstraint   FailureKind = "constraint_error"
	FailureInvalidInput FailureKind = "invalid_input"
	FailureSignOut      FailureKind = "sign_out_failure"
	FailureInternal     FailureKind = "internal"
)

// Failure is the error descriptor carried by State.
type Failure struct {
	Kind    FailureKind     `json:"kind"`
	Reason  identity.Reason `json:"reason,omitempty"`
	Message string          `json:"message"`
}

// FailureOf classifies err for display. Unknown errors become FailureInternal.
func FailureOf(err error) *Failure {
	if err == nil {
		return nil
	}

	f := &Failure{Kind: FailureInternal, Message: err.Error()}
	switch {
	case identity.IsAuthError(err):
		f.Kind = FailureAuth
		f.Reason = identity.ReasonOf(err)
	case errors.Is(err, ErrProfileLoad):
		f.Kind = FailureProfileLoad
	case account.IsConstraint(err):
		f.Kind = FailureConstraint
	case account.IsInvalidInput(err):
		f.Kind = FailureInvalidInput
	}
	return f
}
