package identity

import (
	"errors"
	"fmt"
	"testing"
)

func TestAuthError_ReasonSurvivesWrapping(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("login: %w", AuthError{Op: "local.SignIn", Reason: ReasonEmailNotVerified})

	if !IsAuthError(err) {
		t.Fatalf("expected auth error")
	}
	if !IsUnverified(err) {
		t.Fatalf("expected unverified reason")
	}
	if ReasonOf(errors.New("boom")) != "" {
		t.Fatalf("plain errors carry no reason")
	}
}
