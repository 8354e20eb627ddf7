package password

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Params controls Argon2id hashing cost. MemoryKiB is in KiB as argon2.IDKey expects.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds accepted password length (in runes).
type Policy struct {
	MinLength int
	MaxLength int
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Params
	Policy Policy
}

// DefaultConfig returns interactive-login costs. MinLength matches the hosted
// identity providers the app also talks to (6), so one account works on both.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Params{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 6,
			MaxLength: 256,
		},
	}
}

// FromEnv loads config from environment variables on top of DefaultConfig.
//
// Env surface:
//   - GYM_PASSWORD_MIN_LEN, GYM_PASSWORD_MAX_LEN
//   - GYM_ARGON2_MEMORY_KIB, GYM_ARGON2_ITERATIONS, GYM_ARGON2_PARALLELISM
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := envUint("GYM_PASSWORD_MIN_LEN", 1, 1024, func(v uint64) { cfg.Policy.MinLength = int(v) }); err != nil {
		return Config{}, err
	}
	if err := envUint("GYM_PASSWORD_MAX_LEN", 1, 4096, func(v uint64) { cfg.Policy.MaxLength = int(v) }); err != nil {
		return Config{}, err
	}
	if err := envUint("GYM_ARGON2_MEMORY_KIB", 8*1024, 1024*1024, func(v uint64) { cfg.Params.MemoryKiB = uint32(v) }); err != nil {
		return Config{}, err
	}
	if err := envUint("GYM_ARGON2_ITERATIONS", 1, 20, func(v uint64) { cfg.Params.Iterations = uint32(v) }); err != nil {
		return Config{}, err
	}
	if err := envUint("GYM_ARGON2_PARALLELISM", 1, 64, func(v uint64) { cfg.Params.Parallelism = uint8(v) }); err != nil {
		return Config{}, err
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf("%w: min_len(%d) > max_len(%d)", ErrConfig, cfg.Policy.MinLength, cfg.Policy.MaxLength)
	}
	return cfg, nil
}

// Validate checks the length policy. Characters are counted as runes.
func (c Config) Validate(password string) error {
	n := utf8.RuneCountInString(password)
	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}
	return nil
}

func envUint(key string, minVal, maxVal uint64, set func(uint64)) error {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return fmt.Errorf("%w: %s: not an unsigned integer", ErrConfig, key)
	}
	if v < minVal || v > maxVal {
		return fmt.Errorf("%w: %s: out of range [%d..%d]", ErrConfig, key, minVal, maxVal)
	}
	set(v)
	return nil
}
