package oidc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// ErrConfig is returned for missing or invalid OIDC settings.
var ErrConfig = errors.New("oidc provider: invalid config")

// Config describes the upstream OpenID Connect issuer and client.
type Config struct {
	Issuer       string   `env:"GYM_OIDC_ISSUER"`
	ClientID     string   `env:"GYM_OIDC_CLIENT_ID"`
	ClientSecret string   `env:"GYM_OIDC_CLIENT_SECRET"`
	Scopes       []string `env:"GYM_OIDC_SCOPES" envSeparator:"," envDefault:"openid,email,profile"`
}

// LoadConfigFromEnv parses GYM_OIDC_* variables.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	cfg.Issuer = strings.TrimRight(strings.TrimSpace(cfg.Issuer), "/")
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.Scopes = trimCSV(cfg.Scopes)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the required fields.
func (c Config) Validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("%w: GYM_OIDC_ISSUER is required", ErrConfig)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%w: GYM_OIDC_CLIENT_ID is required", ErrConfig)
	}
	return nil
}

func trimCSV(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
