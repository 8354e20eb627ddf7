// Package app wires the gymleague session daemon: config, logging, storage
// backends, the identity provider, the session manager and its HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"gymleague/cmd/identity"
	"gymleague/cmd/identity/local"
	"gymleague/cmd/identity/oidc"
	"gymleague/cmd/internal/auth/api"
	"gymleague/cmd/internal/auth/demo"
	"gymleague/cmd/internal/auth/session"
	"gymleague/cmd/internal/auth/slot"
	"gymleague/cmd/internal/profile"
	"gymleague/cmd/security/password"
)

// tokenCacheFile is the local provider's token cache, under Config.StateDir.
const tokenCacheFile = "session.token"

// App owns every long-lived resource of the daemon.
type App struct {
	cfg Config
	log Logger

	dbPool   *pgxpool.Pool
	registry *prometheus.Registry
	manager  *session.Manager
	sessions *api.Handler

	// closers run in reverse order on shutdown.
	closers []func()
}

// New constructs a fully wired App. Nothing is started; Run does that.
func New(ctx context.Context, cfg Config, log Logger) (a *App, err error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	a = &App{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := session.NewMetrics(a.registry)
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURL != "" {
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("app: database: %w", err)
		}
		a.dbPool = pool
		a.closers = append(a.closers, pool.Close)
		log.Info("db.enabled", "schema", cfg.DBSchema)

		if cfg.DBMigrate {
			if err := Migrate(ctx, pool, cfg.DBSchema, cfg.Provider == ProviderLocal); err != nil {
				return nil, err
			}
			log.Info("db.migrated", "schema", cfg.DBSchema)
		}
	}

	catalog, err := demo.LoadCatalog(cfg.DemoCatalog)
	if err != nil {
		return nil, err
	}
	resolver, err := demo.NewResolver(catalog)
	if err != nil {
		return nil, err
	}
	log.Info("demo.catalog", "path", cfg.DemoCatalog, "accounts", resolver.Len())

	st, err := a.newSlot(ctx)
	if err != nil {
		return nil, err
	}

	provider, err := a.newProvider(ctx)
	if err != nil {
		return nil, err
	}

	deps := session.Deps{
		Slot:    st,
		Demo:    resolver,
		Log:     log,
		Metrics: metrics,
	}
	if provider != nil {
		deps.Provider = provider
		profiles, err := a.newProfileStore()
		if err != nil {
			return nil, err
		}
		deps.Profiles = profiles
	}

	m, err := session.NewManager(deps)
	if err != nil {
		return nil, err
	}
	a.manager = m
	a.closers = append(a.closers, m.Close)

	a.sessions, err = api.NewHandler(log, m, api.LoadConfigFromEnv())
	if err != nil {
		return nil, err
	}

	return a, nil
}

func (a *App) newSlot(ctx context.Context) (slot.Slot, error) {
	switch a.cfg.SlotBackend {
	case SlotMemory:
		a.log.Info("slot.backend", "backend", SlotMemory)
		return slot.NewMemory(a.log), nil

	case SlotRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
		a.closers = append(a.closers, func() { _ = client.Close() })

		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pctx).Err(); err != nil {
			return nil, fmt.Errorf("app: redis: %w", err)
		}
		a.log.Info("slot.backend", "backend", SlotRedis, "addr", a.cfg.RedisAddr)
		return slot.NewRedis(a.log, client, a.cfg.SlotKey)

	default:
		a.log.Info("slot.backend", "backend", SlotFile, "dir", a.cfg.StateDir)
		return slot.NewFile(a.log, a.cfg.StateDir, a.cfg.SlotKey)
	}
}

func (a *App) newProvider(ctx context.Context) (identity.Provider, error) {
	switch a.cfg.Provider {
	case ProviderLocal:
		lcfg, err := local.LoadConfigFromEnv()
		if err != nil {
			return nil, err
		}
		pw, err := password.FromEnv()
		if err != nil {
			return nil, err
		}

		var store local.AccountStore
		if a.dbPool != nil {
			store, err = local.NewPostgresStore(a.dbPool, local.WithSchema(a.cfg.DBSchema))
			if err != nil {
				return nil, err
			}
		} else {
			a.log.Warn("identity.local.inmemory_accounts")
			store = local.NewMemoryStore()
		}

		var cache local.TokenCache = &local.MemoryTokenCache{}
		if a.cfg.SlotBackend == SlotFile {
			fc, err := local.NewFileTokenCache(filepath.Join(a.cfg.StateDir, tokenCacheFile))
			if err != nil {
				return nil, err
			}
			cache = fc
		}

		p, err := local.New(a.log, lcfg, store, cache, local.WithPasswordConfig(pw))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, p.Close)
		a.log.Info("identity.provider", "provider", ProviderLocal, "issuer", lcfg.Issuer)
		return p, nil

	case ProviderOIDC:
		ocfg, err := oidc.LoadConfigFromEnv()
		if err != nil {
			return nil, err
		}
		p, err := oidc.New(ctx, a.log, ocfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, p.Close)
		a.log.Info("identity.provider", "provider", ProviderOIDC, "issuer", ocfg.Issuer)
		return p, nil

	default:
		a.log.Info("identity.provider", "provider", ProviderNone)
		return nil, nil
	}
}

func (a *App) newProfileStore() (profile.Store, error) {
	if a.dbPool == nil {
		a.log.Warn("profile.store.inmemory")
		return profile.NewMemoryStore(), nil
	}
	return profile.NewPostgresStore(a.dbPool, profile.WithSchema(a.cfg.DBSchema))
}

// Handler returns the full HTTP handler chain.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.sessions, a.registry)

	var h http.Handler = mux
	h = WithCORS(h, a.cfg, a.log)
	h = WithSecurityHeaders(h)
	return WithRequestLogging(h, a.log)
}

// Run resolves the initial session state, serves HTTP and blocks until ctx
// is cancelled or the server fails. Every resource is released on return.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if err := a.manager.Start(ctx); err != nil {
		return err
	}
	st := a.manager.Current()
	a.log.Info("session.ready", "status", st.Status, "source", st.Source)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"base_url", base,
		"stream_url", wsBaseURL(base)+"/session/stream",
		"db_enabled", a.dbPool != nil,
		"provider", a.cfg.Provider,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Open state streams end with StatusGoingAway once the manager closes.
	a.manager.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
