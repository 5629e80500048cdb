package middlewares

import (
	"context"

	"github.com/qaaqit/qaaq-auth/internal/domain/types"
)

// =================================================================================
// CONTEXT KEYS
// =================================================================================

type ctxKey string

const (
	// ctxAuthKey guarda el AuthContext publicado por el Session Bridge
	ctxAuthKey ctxKey = "auth"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
)

// AuthContext es el resultado canónico de la resolución de identidad,
// publicado UNA vez por request por el Session Bridge. Todo el código
// downstream consulta esto y nunca el estado crudo de sesión/token.
type AuthContext struct {
	Authenticated bool
	Identity      types.ResolvedIdentity
	FromCache     bool
}

// WithAuth inyecta el AuthContext (interno, solo lo usa el bridge).
func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, ctxAuthKey, ac)
}

// GetAuth obtiene el AuthContext del request.
// Si el bridge no corrió, retorna el zero value (no autenticado).
func GetAuth(ctx context.Context) AuthContext {
	if v := ctx.Value(ctxAuthKey); v != nil {
		if ac, ok := v.(AuthContext); ok {
			return ac
		}
	}
	return AuthContext{}
}

// setRequestID inyecta el request ID en el contexto (interno)
func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
