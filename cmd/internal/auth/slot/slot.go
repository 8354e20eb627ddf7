// Package slot persists the demo profile across restarts under one named key.
//
// Reads fail open: an unreadable or malformed value is logged, cleared and
// reported as absent, never as an error.
package slot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gymleague/cmd/account"
)

// DefaultKey names the slot when none is configured.
const DefaultKey = "gymleague.demo_profile"

// ErrCorrupt marks a stored value that could not be decoded into a valid profile.
var ErrCorrupt = errors.New("storage_corruption")

// Slot stores at most one profile.
type Slot interface {
	// Read returns the stored profile. It never fails: a corrupt value is
	// cleared and (nil, false) returned.
	Read(ctx context.Context) (*account.Profile, bool)
	Write(ctx context.Context, p account.Profile) error
	Clear(ctx context.Context) error
}

// backend is raw byte storage for a single key.
type backend interface {
	get(ctx context.Context) ([]byte, bool, error)
	set(ctx context.Context, b []byte) error
	del(ctx context.Context) error
	describe() string
}

type codecSlot struct {
	log *slog.Logger
	key string
	b   backend
}

func newCodecSlot(log *slog.Logger, key string, b backend) *codecSlot {
	if log == nil {
		log = slog.Default()
	}
	return &codecSlot{log: log, key: key, b: b}
}

func (s *codecSlot) Read(ctx context.Context) (*account.Profile, bool) {
	raw, ok, err := s.b.get(ctx)
	if err != nil {
		s.log.Warn("slot.read_failed", "key", s.key, "backend", s.b.describe(), "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	p, err := Decode(raw)
	if err != nil {
		s.log.Warn("slot.corrupt", "key", s.key, "backend", s.b.describe(), "err", err)
		if cerr := s.b.del(ctx); cerr != nil {
			s.log.Warn("slot.clear_failed", "key", s.key, "err", cerr)
		}
		return nil, false
	}
	return &p, true
}

func (s *codecSlot) Write(ctx context.Context, p account.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("slot: marshal: %w", err)
	}
	if err := s.b.set(ctx, raw); err != nil {
		return fmt.Errorf("slot: write %s: %w", s.key, err)
	}
	return nil
}

func (s *codecSlot) Clear(ctx context.Context) error {
	if err := s.b.del(ctx); err != nil {
		return fmt.Errorf("slot: clear %s: %w", s.key, err)
	}
	return nil
}

// Decode parses a stored value. Unknown fields, trailing data and profiles
// failing validation are all ErrCorrupt.
func Decode(raw []byte) (account.Profile, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return account.Profile{}, fmt.Errorf("%w: empty value", ErrCorrupt)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var p account.Profile
	if err := dec.Decode(&p); err != nil {
		return account.Profile{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return account.Profile{}, fmt.Errorf("%w: trailing data", ErrCorrupt)
	}
	if err := p.Validate(); err != nil {
		return account.Profile{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return p, nil
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultKey
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("slot: invalid key %q", key)
	}
	return key, nil
}
