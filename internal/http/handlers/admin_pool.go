package handlers

import (
	"net/http"

	"github.com/qaaqit/qaaq-auth/internal/audit"
	"github.com/qaaqit/qaaq-auth/internal/authcache"
	"github.com/qaaqit/qaaq-auth/internal/dbpool"
	httpx "github.com/qaaqit/qaaq-auth/internal/http"
	"github.com/qaaqit/qaaq-auth/internal/observability/logger"
)

// NewPoolStatsHandler expone el snapshot de salud del pool.
// GET /v1/admin/pool/stats
func NewPoolStatsHandler(mgr *dbpool.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "solo GET")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, mgr.Stats())
	}
}

// NewPoolResetHandler resetea los contadores del pool (queries, errores,
// uptime). No toca las conexiones.
// POST /v1/admin/pool/reset
func NewPoolResetHandler(mgr *dbpool.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "solo POST")
			return
		}
		mgr.ResetStats()
		logger.From(r.Context()).Named("admin").Info("pool stats reseteadas")
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	}
}

// NewPoolOptimizeHandler dispara la pasada de diagnóstico manualmente.
// POST /v1/admin/pool/optimize
func NewPoolOptimizeHandler(mgr *dbpool.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "solo POST")
			return
		}
		mgr.OptimizePool(r.Context())
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "optimized"})
	}
}

// NewCacheClearHandler vacía el auth cache completo.
// POST /v1/admin/cache/clear
func NewCacheClearHandler(cache *authcache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "solo POST")
			return
		}
		n := cache.Len()
		cache.Clear()
		audit.Log(r.Context(), audit.EventCacheCleared, logger.Count(n))
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "cleared", "evicted": n})
	}
}
