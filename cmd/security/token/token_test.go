package token

import "testing"

func TestHashSessionTokenHex_SwitchesOnKey(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	plain := HashSessionTokenHex("tok")
	if plain != HashSHA256Hex("tok") {
		t.Fatalf("expected sha256 without key")
	}

	t.Setenv(HMACEnvKey, "0123456789abcdef0123456789abcdef")
	keyed := HashSessionTokenHex("tok")
	if keyed == plain {
		t.Fatalf("expected hmac output to differ from sha256")
	}
	if len(keyed) != 64 {
		t.Fatalf("len=%d want 64", len(keyed))
	}
}

func TestHMACKeyFromEnv(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	if _, err := HMACKeyFromEnv(32); err != ErrHMACKeyMissing {
		t.Fatalf("expected ErrHMACKeyMissing, got %v", err)
	}

	t.Setenv(HMACEnvKey, "short")
	if _, err := HMACKeyFromEnv(32); err != ErrHMACKeyTooShort {
		t.Fatalf("expected ErrHMACKeyTooShort, got %v", err)
	}
}

func TestEqualHex64(t *testing.T) {
	t.Parallel()

	a := HashSHA256Hex("a")
	if !EqualHex64(a, a) {
		t.Fatalf("expected equal")
	}
	if EqualHex64(a, HashSHA256Hex("b")) {
		t.Fatalf("expected different")
	}
	if EqualHex64("abc", "abc") {
		t.Fatalf("short inputs must not match")
	}
}
