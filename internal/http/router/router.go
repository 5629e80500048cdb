// Package router arma el chi.Router con el pipeline completo de middlewares
// y todas las rutas del servicio.
package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/qaaqit/qaaq-auth/internal/authcache"
	"github.com/qaaqit/qaaq-auth/internal/authflow"
	"github.com/qaaqit/qaaq-auth/internal/dbpool"
	"github.com/qaaqit/qaaq-auth/internal/domain/repository"
	httpx "github.com/qaaqit/qaaq-auth/internal/http"
	"github.com/qaaqit/qaaq-auth/internal/http/handlers"
	mw "github.com/qaaqit/qaaq-auth/internal/http/middlewares"
	"github.com/qaaqit/qaaq-auth/internal/rate"
	"github.com/qaaqit/qaaq-auth/internal/resolver"
	"github.com/qaaqit/qaaq-auth/internal/session"
)

// Deps contiene todo lo necesario para armar el router.
type Deps struct {
	Checker  *authflow.Checker
	Sessions session.Store
	Cache    *authcache.Cache
	Pool     *dbpool.Manager

	// Nombres de cookies (config)
	SessionCookie string
	LegacyCookie  string

	// CheckRedis opcional para readyz cuando el backend de sesiones es redis
	CheckRedis func(ctx context.Context) error

	// MetricsHandler para /metrics (nil lo deshabilita)
	MetricsHandler http.Handler

	// AdminLimiter limita las rutas de admin (nil lo deshabilita)
	AdminLimiter rate.Limiter

	// Users y Resolver para el chequeo de credenciales legacy
	Users    repository.UserRepository
	Resolver *resolver.Resolver
	// AuthLimiter limita el endpoint de credenciales (blanco de fuerza bruta)
	AuthLimiter rate.Limiter
}

// New arma el router. El orden del pipeline importa: request id primero,
// después logging, métricas, y el Session Bridge ANTES de cualquier ruta que
// mire identidad.
func New(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(
		mw.WithRequestID(),
		mw.WithLogging(),
		httpx.WithMetrics,
		mw.WithSessionBridge(mw.BridgeDeps{
			Checker:      deps.Checker,
			Sessions:     deps.Sessions,
			CookieName:   deps.SessionCookie,
			LegacyCookie: deps.LegacyCookie,
		}),
	)

	// Health
	r.Get("/healthz", handlers.NewHealthzHandler())
	r.Get("/readyz", handlers.NewReadyzHandler(
		func(ctx context.Context) error { return deps.Pool.Pool().Ping(ctx) },
		deps.CheckRedis,
	))

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// Chequeo de credenciales legacy: público, con su propio rate limit
	r.Group(func(r chi.Router) {
		r.Use(mw.WithRateLimit(deps.AuthLimiter))
		r.Post("/v1/auth/verify", handlers.NewCredentialCheckHandler(deps.Users, deps.Resolver))
	})

	// Rutas autenticadas
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireResolved())
		r.Get("/v1/me", handlers.NewMeHandler())
	})

	// Admin: salud del pool y cache
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireResolved(), mw.WithRateLimit(deps.AdminLimiter))
		r.Get("/v1/admin/pool/stats", handlers.NewPoolStatsHandler(deps.Pool))
		r.Post("/v1/admin/pool/reset", handlers.NewPoolResetHandler(deps.Pool))
		r.Post("/v1/admin/pool/optimize", handlers.NewPoolOptimizeHandler(deps.Pool))
		r.Post("/v1/admin/cache/clear", handlers.NewCacheClearHandler(deps.Cache))
	})

	return r
}
