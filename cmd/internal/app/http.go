package app

import (
	"net/http"
	"time"

	accessapi "github.com/Flugers27/Memory-book/cmd/internal/access/api"
	authapi "github.com/Flugers27/Memory-book/cmd/internal/auth/api"
	"github.com/Flugers27/Memory-book/cmd/internal/httpx"
	"github.com/Flugers27/Memory-book/cmd/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type routerDeps struct {
	log     Logger
	cfg     Config
	metrics *telemetry.Metrics
	dbPool  *pgxpool.Pool
	auth    *authapi.Handler
	access  *accessapi.Handler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(WithRequestLogging(d.log, d.metrics))
	r.Use(WithSecurityHeaders)
	if len(d.cfg.CORSAllowedOrigins) > 0 {
		r.Use(newCORS(d.cfg.CORSAllowedOrigins))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/readyz", readyz(d))
	r.Method(http.MethodGet, "/metrics", d.metrics.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	if d.auth != nil {
		d.auth.Routes(r)
	}
	if d.access != nil {
		d.access.Routes(r)
	}

	return otelhttp.NewHandler(r, "memorybook.http",
		otelhttp.WithFilter(func(r *http.Request) bool {
			switch r.URL.Path {
			case "/healthz", "/readyz", "/metrics":
				return false
			}
			return true
		}),
	)
}

func readyz(d routerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.cfg.ReadinessRequireDB && d.dbPool == nil {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}
		if d.dbPool != nil {
			if err := PingDB(r.Context(), d.dbPool, 2*time.Second); err != nil {
				d.log.Info("readyz.db.not_ready", "err", err)
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	}
}
