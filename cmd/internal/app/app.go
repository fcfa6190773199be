// Package app wires the copydesk server runtime: config, logging, stores,
// the auth handler and HTTP middleware.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"copydesk/cmd/identity"
	"copydesk/cmd/internal/accounts"
	"copydesk/cmd/internal/audit"
	"copydesk/cmd/internal/auth/api"
	"copydesk/cmd/internal/auth/session"
	"copydesk/cmd/internal/metrics"
	"copydesk/cmd/internal/ratelimit"
	"copydesk/cmd/internal/securitystore"
	"copydesk/cmd/security/password"
	"copydesk/cmd/security/token"
)

// App is the copydesk server runtime.
type App struct {
	cfg     Config
	log     Logger
	metrics *metrics.Metrics

	dbPool   *pgxpool.Pool
	security *securitystore.Provider

	auth *api.Handler
}

// stores groups the persistence backends chosen at startup.
type stores struct {
	users    identity.Store
	sessions session.Store
	audit    audit.Sink
	accounts accounts.Store
}

// New constructs a fully wired App. Without COPYDESK_DATABASE_URL every
// store is in-memory, which production validation forbids.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}
	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	apiCfg, err := api.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if cfg.IsProduction() {
		apiCfg.CookieSecure = true
	}

	codec, err := newCodec(cfg, log)
	if err != nil {
		return nil, err
	}
	cipher, err := newCipher(cfg, log)
	if err != nil {
		return nil, err
	}

	provider := securitystore.NewProvider(securitystore.Config{
		RedisURL:   cfg.RedisURL,
		Production: cfg.IsProduction(),
	}, log, m)
	sec, err := provider.Get(ctx)
	if err != nil {
		return nil, err
	}

	pool, st, err := newStores(ctx, cfg, pwCfg, log)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	cleanup := func() {
		_ = provider.Close()
		if pool != nil {
			pool.Close()
		}
	}

	seed := identity.AdminSeed{Username: cfg.AdminUsername, Email: cfg.AdminEmail, Password: cfg.AdminPassword}
	if _, err := identity.EnsureAdmin(ctx, st.users, seed, log); err != nil {
		cleanup()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	mgr, err := session.NewManager(sessCfg, st.sessions, codec, sec, log, m)
	if err != nil {
		cleanup()
		return nil, err
	}

	handler, err := api.NewHandler(apiCfg, api.Deps{
		Log:       log,
		Users:     st.users,
		Passwords: pwCfg,
		Sessions:  mgr,
		Codec:     codec,
		Limiter:   ratelimit.New(sec, log, m),
		Audit:     audit.New(st.audit, log, m),
		Accounts:  st.accounts,
		Cipher:    cipher,
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	return &App{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		dbPool:   pool,
		security: provider,
		auth:     handler,
	}, nil
}

func newCodec(cfg Config, log Logger) (*token.Codec, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		s, err := token.NewOpaque(minJWTSecretBytes)
		if err != nil {
			return nil, err
		}
		secret = s
		log.Warn("security.jwt_secret.ephemeral", "hint", "set COPYDESK_JWT_SECRET; sessions will not survive a restart")
	}
	return token.NewCodec([]byte(secret))
}

func newCipher(cfg Config, log Logger) (*accounts.Cipher, error) {
	if cfg.EncryptionKey == "" {
		log.Warn("security.encryption_key.ephemeral", "hint", "set COPYDESK_ENCRYPTION_KEY; stored secrets will be unreadable after a restart")
		return accounts.NewRandomCipher()
	}
	return accounts.NewCipher(cfg.EncryptionKey)
}

// newStores decides between Postgres-backed persistence and in-memory dev stores.
func newStores(ctx context.Context, cfg Config, pw password.Config, log Logger) (*pgxpool.Pool, stores, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		users := identity.NewMemoryStore(pw)
		return nil, stores{
			users:    users,
			sessions: session.NewMemoryStore(users),
			audit:    audit.NewMemorySink(),
			accounts: accounts.NewMemoryStore(),
		}, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, stores{}, err
	}

	st, err := postgresStores(pool, cfg.DBSchema, pw)
	if err != nil {
		pool.Close()
		return nil, stores{}, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)
	return pool, st, nil
}

func postgresStores(pool *pgxpool.Pool, schema string, pw password.Config) (stores, error) {
	users, err := identity.NewPostgresStore(pool, identity.WithSchema(schema), identity.WithPasswordConfig(pw))
	if err != nil {
		return stores{}, err
	}
	sessions, err := session.NewPostgresStore(pool, schema)
	if err != nil {
		return stores{}, err
	}
	sink, err := audit.NewPostgresSink(pool, schema)
	if err != nil {
		return stores{}, err
	}
	accts, err := accounts.NewPostgresStore(pool, schema)
	if err != nil {
		return stores{}, err
	}
	return stores{users: users, sessions: sessions, audit: sink, accounts: accts}, nil
}

// Handler returns the full middleware chain over all routes.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.registerHTTP(mux)

	var h http.Handler = a.auth.Legacy(mux)
	h = WithCORS(h, a.cfg, a.log)
	h = WithSecurityHeaders(h)
	h = WithRequestLogging(h, a.log, a.metrics)
	return WithRequestID(h)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"base_url", runtimeBaseURL(a.cfg.HTTPAddr),
		"env", a.cfg.Environment,
		"db_enabled", a.dbPool != nil,
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
		a.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.Close()
	a.log.Info("server.stopped")
	return nil
}

// Close releases the security store client and the DB pool.
func (a *App) Close() {
	if err := a.security.Close(); err != nil {
		a.log.Error("securitystore.close.fail", "err", err)
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}
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
