package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gymleague/cmd/internal/auth/slot"
	"gymleague/cmd/internal/pgstore"
)

// ErrConfig is returned for an invalid runtime configuration.
var ErrConfig = errors.New("app: invalid config")

// Provider modes.
const (
	ProviderNone  = "none"
	ProviderLocal = "local"
	ProviderOIDC  = "oidc"
)

// Slot backends.
const (
	SlotFile   = "file"
	SlotRedis  = "redis"
	SlotMemory = "memory"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	DBSchema    string
	// DBMigrate applies the profile (and local provider) DDL at startup.
	DBMigrate bool

	Provider string

	// StateDir holds the file slot and the local provider's token cache.
	StateDir    string
	SlotBackend string
	SlotKey     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DemoCatalog string

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool

	// If true, GYM_TOKEN_HMAC_KEY must be set (>= 32 bytes) so stored
	// session tokens are HMAC digests.
	RequireTokenHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("GYM_HTTP_ADDR", "127.0.0.1:8080"),
		LogLevel:  EnvString("GYM_LOG_LEVEL", "info"),
		LogFormat: EnvString("GYM_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("GYM_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("GYM_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("GYM_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("GYM_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("GYM_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("GYM_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("GYM_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("GYM_DB_MIN_CONNS", 0),
		DBSchema:    EnvString("GYM_DB_SCHEMA", pgstore.DefaultSchema),
		DBMigrate:   EnvBool("GYM_DB_MIGRATE", false),

		Provider: EnvString("GYM_PROVIDER", ProviderNone),

		StateDir:    EnvString("GYM_STATE_DIR", defaultStateDir()),
		SlotBackend: EnvString("GYM_SLOT_BACKEND", SlotFile),
		SlotKey:     EnvString("GYM_SLOT_KEY", slot.DefaultKey),

		RedisAddr:     EnvString("GYM_REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: EnvString("GYM_REDIS_PASSWORD", ""),
		RedisDB:       EnvIntAllowZero("GYM_REDIS_DB", 0),

		DemoCatalog: EnvString("GYM_DEMO_CATALOG", ""),

		CORSAllowedOrigins:   EnvCSV("GYM_CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "http://127.0.0.1:*"}),
		CORSAllowCredentials: EnvBool("GYM_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("GYM_CORS_MAX_AGE_SECONDS", 600),

		ReadinessRequireDB: EnvBool("GYM_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("GYM_REQUIRE_TOKEN_HMAC", false),
	}
}

// Validate checks the enumerated settings and their dependencies.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderNone, ProviderLocal, ProviderOIDC:
	default:
		return fmt.Errorf("%w: GYM_PROVIDER must be none, local or oidc (got %q)", ErrConfig, c.Provider)
	}

	switch c.SlotBackend {
	case SlotFile:
		if c.StateDir == "" {
			return fmt.Errorf("%w: GYM_STATE_DIR is required for the file slot", ErrConfig)
		}
	case SlotRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: GYM_REDIS_ADDR is required for the redis slot", ErrConfig)
		}
	case SlotMemory:
	default:
		return fmt.Errorf("%w: GYM_SLOT_BACKEND must be file, redis or memory (got %q)", ErrConfig, c.SlotBackend)
	}

	if c.DatabaseURL != "" {
		if _, err := pgstore.ValidSchema(c.DBSchema); err != nil {
			return fmt.Errorf("%w: GYM_DB_SCHEMA: %v", ErrConfig, err)
		}
	}
	if c.DBMigrate && c.DatabaseURL == "" {
		return fmt.Errorf("%w: GYM_DB_MIGRATE requires GYM_DATABASE_URL", ErrConfig)
	}
	return nil
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "gymleague")
	}
	return ".gymleague"
}
