package pgtest

import (
	"errors"
	"net"
	"testing"
)

func TestShouldSkip(t *testing.T) {
	t.Setenv("CI", "")

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("x")}, true},
		{"refused", errors.New("dial: connection refused"), true},
		{"syntax", errors.New("ERROR: syntax error at or near"), false},
	}
	for _, tc := range cases {
		if got := ShouldSkip(tc.err); got != tc.want {
			t.Fatalf("%s: ShouldSkip=%v want %v", tc.name, got, tc.want)
		}
	}
}

func TestShouldSkip_NeverInCI(t *testing.T) {
	t.Setenv("CI", "true")

	if ShouldSkip(errors.New("connection refused")) {
		t.Fatalf("expected no skip in CI")
	}
}
