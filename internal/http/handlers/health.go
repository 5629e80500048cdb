package handlers

import (
	"context"
	"net/http"
	"os"

	httpx "github.com/qaaqit/qaaq-auth/internal/http"
	"github.com/qaaqit/qaaq-auth/internal/observability/logger"
)

// NewHealthzHandler responde liveness plano. Sin dependencias: si el proceso
// contesta, está vivo.
func NewHealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// NewReadyzHandler verifica que las dependencias reales estén accesibles:
// la base y, si hay backend redis de sesiones, redis.
func NewReadyzHandler(pingDB func(ctx context.Context) error, checkRedis func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if v := os.Getenv("SERVICE_VERSION"); v != "" {
			w.Header().Set("X-Service-Version", v)
		}

		// 1) DB
		if err := pingDB(r.Context()); err != nil {
			logger.From(r.Context()).Named("readyz").Error("db no disponible", logger.Err(err))
			httpx.WriteError(w, http.StatusServiceUnavailable, "db_unavailable", "database unavailable")
			return
		}

		// 2) Redis (opcional)
		if checkRedis != nil {
			if err := checkRedis(r.Context()); err != nil {
				logger.From(r.Context()).Named("readyz").Error("redis no disponible", logger.Err(err))
				httpx.WriteError(w, http.StatusServiceUnavailable, "redis_unavailable", "redis unavailable")
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}
