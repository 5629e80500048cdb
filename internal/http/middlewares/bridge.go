package middlewares

import (
	"net/http"
	"strings"

	httpx "github.com/qaaqit/qaaq-auth/internal/http"

	"github.com/qaaqit/qaaq-auth/internal/audit"
	"github.com/qaaqit/qaaq-auth/internal/authflow"
	"github.com/qaaqit/qaaq-auth/internal/observability/logger"
	"github.com/qaaqit/qaaq-auth/internal/session"
	"github.com/qaaqit/qaaq-auth/internal/util"
)

// BridgeDeps agrupa los colaboradores del Session Bridge.
type BridgeDeps struct {
	Checker *authflow.Checker
	// Sessions se usa SOLO para auto-reparación de sesiones colgadas.
	Sessions session.Store
	// CookieName de la sesión federada.
	CookieName string
	// LegacyCookie del stack viejo.
	LegacyCookie string
}

// WithSessionBridge es la etapa del pipeline que corre ANTES de cualquier
// chequeo de autorización. Normaliza el estado ambiental de sesión/token en
// una única identidad canónica publicada en el contexto como AuthContext.
//
// El estado de resolución vive solo dentro del request: arranca sin resolver
// y termina resuelto o no autenticado. No hay estado cross-request acá.
//
// Auto-reparación: si había una cookie de sesión federada pero la resolución
// falló, la sesión apunta a un usuario que ya no existe. Se borra del store
// activamente (no solo se ignora) para que los próximos requests no repitan
// el lookup fallido.
func WithSessionBridge(deps BridgeDeps) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			st := extractAmbient(r, deps.CookieName, deps.LegacyCookie)

			res := deps.Checker.Check(ctx, st)

			if res == nil {
				httpx.RecordAuthResolution("", false)
				if st.FederatedSID != "" {
					// sesión colgada: repararla, no ignorarla
					if err := deps.Sessions.Delete(ctx, string(st.FederatedSID)); err != nil {
						logger.From(ctx).Named("bridge").Warn("no se pudo limpiar sesión colgada",
							logger.Err(err))
					} else {
						audit.Log(ctx, audit.EventSessionHealed,
							logger.SessionKey(util.MaskIdentifier(string(st.FederatedSID), 6)))
					}
				}
				ctx = WithAuth(ctx, AuthContext{Authenticated: false})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			httpx.RecordAuthResolution(string(res.Identity.Method), true)
			if !res.FromCache {
				// las resoluciones cacheadas no van a la pista: repetirían
				// el mismo evento cada request dentro del TTL
				audit.Log(ctx, audit.EventResolved,
					logger.UserID(res.Identity.User.ID),
					logger.AuthMethod(string(res.Identity.Method)))
			}
			ctx = WithAuth(ctx, AuthContext{
				Authenticated: true,
				Identity:      res.Identity,
				FromCache:     res.FromCache,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireResolved corta con 401 uniforme si el bridge no resolvió identidad.
// Debe usarse después de WithSessionBridge. El motivo interno del fallo nunca
// llega al cliente.
func RequireResolved() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !GetAuth(r.Context()).Authenticated {
				httpx.WriteUnauthenticated(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractAmbient es LA función de extracción: produce las variantes de
// identificador desde el request sin confiar en ninguna. Cualquier forma
// nueva de identidad ambiental se agrega acá y solo acá.
func extractAmbient(r *http.Request, cookieName, legacyCookie string) authflow.State {
	var ids []authflow.Identifier

	if ah := strings.TrimSpace(r.Header.Get("Authorization")); ah != "" {
		if strings.HasPrefix(strings.ToLower(ah), "bearer ") {
			ids = append(ids, authflow.BearerToken(strings.TrimSpace(ah[len("Bearer "):])))
		}
	}
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		ids = append(ids, authflow.FederatedSessionID(c.Value))
	}
	if c, err := r.Cookie(legacyCookie); err == nil && c.Value != "" {
		ids = append(ids, authflow.LegacySessionID(c.Value))
	}

	return authflow.Collect(ids...)
}
