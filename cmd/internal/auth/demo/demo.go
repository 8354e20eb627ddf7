// Package demo resolves the fixed demo credentials to their built-in profiles.
//
// Resolution is pure: it never reads or writes any store.
package demo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"gymleague/cmd/account"
)

// Catalog maps normalized demo emails to the profile each one signs in as.
// Every account shares Password.
type Catalog struct {
	Password string                     `yaml:"password"`
	Accounts map[string]account.Profile `yaml:"accounts"`
}

// Resolver answers demo-credential lookups against a Catalog.
type Resolver struct {
	password string
	accounts map[string]account.Profile
}

// NewResolver validates c and builds a Resolver. An empty catalog (no password
// or no accounts) is allowed and resolves nothing.
func NewResolver(c Catalog) (*Resolver, error) {
	r := &Resolver{password: c.Password, accounts: make(map[string]account.Profile, len(c.Accounts))}
	if c.Password == "" {
		return r, nil
	}

	for email, p := range c.Accounts {
		norm := account.NormalizeEmail(email)
		if norm == "" {
			return nil, fmt.Errorf("demo: empty email key")
		}
		if p.Email == "" {
			p.Email = norm
		}
		if account.NormalizeEmail(p.Email) != norm {
			return nil, fmt.Errorf("demo: %s: profile email %q does not match key", norm, p.Email)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("demo: %s: %w", norm, err)
		}
		if _, dup := r.accounts[norm]; dup {
			return nil, fmt.Errorf("demo: duplicate account %s", norm)
		}
		r.accounts[norm] = p.Clone()
	}
	return r, nil
}

// Resolve returns the demo profile for the credentials. It matches only when
// the password is exactly the demo password and the email is in the catalog.
func (r *Resolver) Resolve(email, password string) (account.Profile, bool) {
	if r == nil || r.password == "" || password != r.password {
		return account.Profile{}, false
	}
	p, ok := r.accounts[account.NormalizeEmail(email)]
	if !ok {
		return account.Profile{}, false
	}
	return p.Clone(), true
}

// Len returns the number of demo accounts.
func (r *Resolver) Len() int {
	if r == nil || r.password == "" {
		return 0
	}
	return len(r.accounts)
}

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) (Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Catalog{}, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("demo: read catalog: %w", err)
	}
	return ParseCatalog(b)
}

// ParseCatalog decodes a YAML catalog. Unknown keys are rejected. An empty
// document is an empty catalog.
func ParseCatalog(b []byte) (Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return Catalog{}, nil
		}
		return Catalog{}, fmt.Errorf("demo: parse catalog: %w", err)
	}
	return c, nil
}
