package api

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMaxBodyBytes       = 1 << 20
	defaultStreamBuffer       = 8
	defaultStreamWriteTimeout = 5 * time.Second
	defaultStreamPing         = 30 * time.Second
	defaultAttemptMax         = 10
	defaultAttemptWindow      = 5 * time.Minute
)

// Config controls the session API surface.
type Config struct {
	MaxBodyBytes int64

	// OriginPatterns are host patterns accepted for cross-origin stream
	// upgrades. Same-host upgrades are always accepted.
	OriginPatterns []string

	StreamBuffer       int
	StreamWriteTimeout time.Duration
	StreamPingInterval time.Duration

	// Failed login/signup attempts per email within AttemptWindow before
	// requests for that email are rejected with 429. Zero disables it.
	AttemptMax    int
	AttemptWindow time.Duration
}

// DefaultConfig returns the defaults used by LoadConfigFromEnv.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:       defaultMaxBodyBytes,
		OriginPatterns:     []string{"localhost", "127.0.0.1"},
		StreamBuffer:       defaultStreamBuffer,
		StreamWriteTimeout: defaultStreamWriteTimeout,
		StreamPingInterval: defaultStreamPing,
		AttemptMax:         defaultAttemptMax,
		AttemptWindow:      defaultAttemptWindow,
	}
}

// LoadConfigFromEnv loads API config from GYM_API_* with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		MaxBodyBytes:       envInt64("GYM_API_MAX_BODY_BYTES", def.MaxBodyBytes),
		OriginPatterns:     envCSV("GYM_API_ORIGIN_PATTERNS", def.OriginPatterns),
		StreamBuffer:       envInt("GYM_API_STREAM_BUFFER", def.StreamBuffer),
		StreamWriteTimeout: envDuration("GYM_API_STREAM_WRITE_TIMEOUT", def.StreamWriteTimeout),
		StreamPingInterval: envDuration("GYM_API_STREAM_PING_INTERVAL", def.StreamPingInterval),
		AttemptMax:         envIntAllowZero("GYM_API_ATTEMPT_MAX", def.AttemptMax),
		AttemptWindow:      envDuration("GYM_API_ATTEMPT_WINDOW", def.AttemptWindow),
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = def.MaxBodyBytes
	}
	if c.StreamBuffer <= 0 {
		c.StreamBuffer = def.StreamBuffer
	}
	if c.StreamWriteTimeout <= 0 {
		c.StreamWriteTimeout = def.StreamWriteTimeout
	}
	if c.StreamPingInterval <= 0 {
		c.StreamPingInterval = def.StreamPingInterval
	}
	if c.AttemptMax < 0 {
		c.AttemptMax = 0
	}
	if c.AttemptWindow <= 0 {
		c.AttemptWindow = def.AttemptWindow
	}
	return c
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envIntAllowZero(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSV(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
