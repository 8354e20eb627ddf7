package local

import (
	"errors"
	"testing"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

func TestLoadConfigFromEnv(t *testing.T) {
	key := paseto.NewV4AsymmetricSecretKey().ExportHex()
	t.Setenv("GYM_LOCAL_PASETO_SECRET_KEY_HEX", key)
	t.Setenv("GYM_LOCAL_ISSUER", "gym-test")
	t.Setenv("GYM_LOCAL_TOKEN_TTL", "2h")
	t.Setenv("GYM_LOCAL_CLOCK_SKEW", "5s")
	t.Setenv("GYM_LOCAL_REQUIRE_VERIFIED_EMAIL", "false")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Issuer != "gym-test" || cfg.TokenTTL != 2*time.Hour || cfg.ClockSkew != 5*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.RequireVerifiedEmail {
		t.Fatalf("expected RequireVerifiedEmail=false")
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing key": {"GYM_LOCAL_PASETO_SECRET_KEY_HEX": ""},
		"bad ttl":     {"GYM_LOCAL_TOKEN_TTL": "soon"},
		"zero ttl":    {"GYM_LOCAL_TOKEN_TTL": "0s"},
		"neg skew":    {"GYM_LOCAL_CLOCK_SKEW": "-1s"},
		"bad bool":    {"GYM_LOCAL_REQUIRE_VERIFIED_EMAIL": "maybe"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("GYM_LOCAL_PASETO_SECRET_KEY_HEX", paseto.NewV4AsymmetricSecretKey().ExportHex())
			t.Setenv("GYM_LOCAL_TOKEN_TTL", "")
			t.Setenv("GYM_LOCAL_CLOCK_SKEW", "")
			t.Setenv("GYM_LOCAL_REQUIRE_VERIFIED_EMAIL", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
				t.Fatalf("got %v want ErrConfig", err)
			}
		})
	}
}
