package api

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg := LoadConfigFromEnv()
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Fatalf("cfg=%+v, want defaults", cfg)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("GYM_API_MAX_BODY_BYTES", "2048")
	t.Setenv("GYM_API_ORIGIN_PATTERNS", " app.local , *.example.com ,")
	t.Setenv("GYM_API_STREAM_BUFFER", "3")
	t.Setenv("GYM_API_STREAM_WRITE_TIMEOUT", "2s")
	t.Setenv("GYM_API_ATTEMPT_MAX", "0")
	t.Setenv("GYM_API_ATTEMPT_WINDOW", "nonsense")

	cfg := LoadConfigFromEnv()
	if cfg.MaxBodyBytes != 2048 {
		t.Fatalf("MaxBodyBytes=%d", cfg.MaxBodyBytes)
	}
	if want := []string{"app.local", "*.example.com"}; !reflect.DeepEqual(cfg.OriginPatterns, want) {
		t.Fatalf("OriginPatterns=%v, want %v", cfg.OriginPatterns, want)
	}
	if cfg.StreamBuffer != 3 || cfg.StreamWriteTimeout != 2*time.Second {
		t.Fatalf("stream cfg=%d/%v", cfg.StreamBuffer, cfg.StreamWriteTimeout)
	}
	if cfg.AttemptMax != 0 {
		t.Fatalf("AttemptMax=%d, want 0 (disabled)", cfg.AttemptMax)
	}
	if cfg.AttemptWindow != defaultAttemptWindow {
		t.Fatalf("AttemptWindow=%v, want default", cfg.AttemptWindow)
	}
}
