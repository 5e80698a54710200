// Package app wires the Memory Book server runtime: config, logging, stores,
// the HTTP router and the background session sweeper.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Flugers27/Memory-book/cmd/identity"
	"github.com/Flugers27/Memory-book/cmd/internal/access"
	accessapi "github.com/Flugers27/Memory-book/cmd/internal/access/api"
	authapi "github.com/Flugers27/Memory-book/cmd/internal/auth/api"
	"github.com/Flugers27/Memory-book/cmd/internal/auth/session"
	"github.com/Flugers27/Memory-book/cmd/internal/invite"
	"github.com/Flugers27/Memory-book/cmd/internal/migrations"
	"github.com/Flugers27/Memory-book/cmd/internal/pages"
	"github.com/Flugers27/Memory-book/cmd/internal/telemetry"
	"github.com/Flugers27/Memory-book/cmd/security/token"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// dummySecret is hashed once at startup so logins for unknown users pay the
// same argon2id cost as real ones.
const dummySecret = "memorybook-dummy-password"

// pageStore is pages.Store plus the resource lookup the resolver uses.
type pageStore interface {
	pages.Store
	access.ResourceFinder
}

// stores groups the persistence backends chosen at startup.
type stores struct {
	users    identity.Store
	sessions session.Store
	grants   access.GrantStore
	pages    pageStore
	invites  invite.Store
}

// App is the Memory Book server runtime. It owns the database pool, the
// redis client and everything built on top of them.
type App struct {
	cfg Config
	log Logger

	dbPool *pgxpool.Pool
	redis  *redis.Client

	metrics *telemetry.Metrics
	sweeper *session.Sweeper
	handler http.Handler
}

// New constructs a fully wired App. An empty database.url runs every store in
// memory; an empty redis.url keeps the login throttle in process.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	a := &App{cfg: cfg, log: log, metrics: telemetry.NewMetrics()}

	st, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}

	limiter, err := a.newLimiter(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	dummy, err := cfg.Password.Hash(dummySecret)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("app: dummy hash: %w", err)
	}

	sessions, err := session.NewService(cfg.Session, st.users, st.sessions, cfg.Password,
		session.WithLogger(log),
		session.WithMetrics(a.metrics),
		session.WithDummyHash(dummy),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	accounts := identity.NewService(st.users, cfg.Password,
		identity.WithSessionRevoker(sessions),
		identity.WithLogger(log),
	)

	acc, err := access.NewService(st.grants, st.pages,
		access.WithLogger(log),
		access.WithMetrics(a.metrics),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	pg := pages.NewService(st.pages, acc, pages.WithLogger(log))
	invites, err := invite.NewService(st.invites, acc,
		invite.WithDigester(token.NewDigester(cfg.Session.DigestKey)),
		invite.WithLogger(log),
	)
	if err != nil {
		a.close()
		return nil, err
	}

	authHandler, err := authapi.NewHandler(log, cfg.AuthAPI, accounts, sessions,
		authapi.WithLimiter(limiter),
		authapi.WithMetrics(a.metrics),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	accessHandler, err := accessapi.NewHandler(log, accessapi.Config{
		MaxBodyBytes: cfg.AuthAPI.MaxBodyBytes,
		AdminToken:   cfg.AdminToken,
	}, acc, pg, sessions, accessapi.WithInvites(invites))
	if err != nil {
		a.close()
		return nil, err
	}

	a.sweeper, err = session.NewSweeper(sessions, cfg.SweepSchedule, log, a.metrics)
	if err != nil {
		a.close()
		return nil, err
	}

	a.handler = newRouter(routerDeps{
		log:     log,
		cfg:     cfg,
		metrics: a.metrics,
		dbPool:  a.dbPool,
		auth:    authHandler,
		access:  accessHandler,
	})
	return a, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP and runs the sweeper until ctx is cancelled or the server
// fails, then shuts both down and releases the pool and redis client.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

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
		a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbPool != nil, "redis_enabled", a.redis != nil)
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

	if err := g.Wait(); err != nil {
		return err
	}
	a.log.Info("server.stopped")
	return nil
}

func (a *App) openStores(ctx context.Context) (stores, error) {
	if a.cfg.DatabaseURL == "" {
		a.log.Info("db.disabled.inmemory_store")
		return stores{
			users:    identity.NewMemoryStore(),
			sessions: session.NewMemoryStore(),
			grants:   access.NewMemoryStore(),
			pages:    pages.NewMemoryStore(),
			invites:  invite.NewMemoryStore(),
		}, nil
	}

	pool, err := NewDBPool(ctx, a.cfg)
	if err != nil {
		return stores{}, err
	}
	a.dbPool = pool

	if a.cfg.Migrate {
		if err := migrations.Up(ctx, pool); err != nil {
			a.close()
			return stores{}, err
		}
		a.log.Info("db.migrated")
	}

	users, err := identity.NewPostgresStore(pool)
	if err != nil {
		a.close()
		return stores{}, err
	}
	sessions, err := session.NewPostgresStore(pool)
	if err != nil {
		a.close()
		return stores{}, err
	}
	grants, err := access.NewPostgresStore(pool)
	if err != nil {
		a.close()
		return stores{}, err
	}
	pageRows, err := pages.NewPostgresStore(pool)
	if err != nil {
		a.close()
		return stores{}, err
	}
	invites, err := invite.NewPostgresStore(pool)
	if err != nil {
		a.close()
		return stores{}, err
	}

	a.log.Info("db.enabled.postgres_store")
	return stores{users: users, sessions: sessions, grants: grants, pages: pageRows, invites: invites}, nil
}

func (a *App) newLimiter(ctx context.Context) (authapi.Limiter, error) {
	maxFailures, window := a.cfg.AuthAPI.LoginMaxFailures, a.cfg.AuthAPI.LoginWindow
	if a.cfg.RedisURL == "" {
		return authapi.NewLocalLimiter(0, maxFailures, window), nil
	}

	client, err := NewRedisClient(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	a.redis = client
	a.log.Info("redis.enabled.login_throttle")
	return authapi.NewRedisLimiter(client, maxFailures, window, ""), nil
}

// close releases the pool and redis client. Stores do not own the pool.
func (a *App) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
		a.redis = nil
	}
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
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
