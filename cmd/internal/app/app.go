// Package app wires the gatehouse server runtime: config, logging, stores,
// the session service, HTTP routes and background workers.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gatehouse/cmd/identity"
	authapi "gatehouse/cmd/internal/auth/api"
	"gatehouse/cmd/internal/auth/session"
	"gatehouse/cmd/internal/db"
	"gatehouse/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// App owns the HTTP server, the session service and the database pool.
type App struct {
	cfg Config
	log Logger

	pool    *pgxpool.Pool
	svc     *session.Service
	sweeper *session.Sweeper
	handler http.Handler
}

// New constructs a fully wired App. With no GATE_DATABASE_URL it runs on in-memory stores.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, nil)
	}

	hasher, err := ValidateSecurityConfig(cfg)
	if err != nil {
		return nil, err
	}

	passCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}

	sessCfg, err := loadSessionConfig(cfg, log)
	if err != nil {
		return nil, err
	}

	tokens, err := session.NewAccessTokenManager(sessCfg)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log}

	var (
		users    identity.Store
		sessions session.Store
		audit    authapi.AuditSink
		pinger   Pinger
	)
	if cfg.DatabaseURL == "" {
		log.Warn("db.disabled.inmemory_store", "dev_mode", cfg.DevMode)
		users = identity.NewMemoryStore()
		sessions = session.NewMemoryStore()
		audit = authapi.LogAudit{Log: log}
	} else {
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		pinger = pool

		if users, err = identity.NewPostgresStore(pool, identity.WithSchema(db.Schema)); err != nil {
			pool.Close()
			return nil, err
		}
		if sessions, err = session.NewPostgresStore(pool, db.Schema); err != nil {
			pool.Close()
			return nil, err
		}
		if audit, err = authapi.NewPostgresAudit(pool, db.Schema, sessCfg.StoreTimeout, log); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("db.enabled.postgres_store")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sessMetrics := session.NewMetrics(reg)

	svc, err := session.NewService(sessCfg, session.Deps{
		Store:       sessions,
		Users:       users,
		Credentials: session.NewCredentialVerifier(users, passCfg, sessCfg.StoreTimeout),
		Tokens:      tokens,
		Hasher:      hasher,
	}, session.WithLogger(log), session.WithMetrics(sessMetrics))
	if err != nil {
		a.closePool()
		return nil, err
	}
	a.svc = svc
	a.sweeper = session.NewSweeper(sessions, sessCfg, log, sessMetrics)

	authHandler, err := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), users, svc,
		authapi.WithAuditSink(audit),
		authapi.WithPasswordConfig(passCfg),
	)
	if err != nil {
		a.closePool()
		return nil, err
	}

	mux := http.NewServeMux()
	registerHTTP(mux, log, cfg, pinger, reg, authHandler)

	var h http.Handler = mux
	h = WithHTTPMetrics(h, mux, newHTTPMetrics(reg))
	h = WithRequestLogging(h, log)
	h = WithSecurityHeaders(h)
	h = WithRequestID(h)
	a.handler = h

	log.Info("app.ready",
		"token_format", string(sessCfg.TokenFormat),
		"token_hmac", hasher.HMAC(),
		"max_sessions_per_user", sessCfg.MaxSessionsPerUser,
	)
	return a, nil
}

// loadSessionConfig reads session settings. In dev mode a missing signing key
// is replaced by an ephemeral one; tokens then do not survive a restart.
func loadSessionConfig(cfg Config, log Logger) (session.Config, error) {
	sessCfg, err := session.LoadConfigFromEnv()
	if err == nil {
		return sessCfg, nil
	}
	if !errors.Is(err, session.ErrSigningKeyMissing) || !cfg.DevMode {
		return session.Config{}, fmt.Errorf("session config: %w", err)
	}

	switch sessCfg.TokenFormat {
	case session.FormatJWT:
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return session.Config{}, err
		}
		sessCfg.JWTSecret = hex.EncodeToString(buf)
	default:
		sessCfg.PasetoV4SecretKeyHex = session.GeneratePasetoV4SecretKeyHex()
	}
	log.Warn("session.signing_key.ephemeral", "token_format", string(sessCfg.TokenFormat))
	return sessCfg, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP and runs the session sweeper until ctx is done or either fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.pool != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		return a.sweeper.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	err := g.Wait()

	// Pending last_check_at writes must finish before the pool goes away.
	a.svc.Wait()
	a.closePool()

	a.log.Info("server.stopped")
	return err
}

func (a *App) closePool() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
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
