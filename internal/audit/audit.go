// Package audit emite la pista de auditoría de eventos de identidad.
// El sink actual es el logger estructurado; cambiar el destino (DB, broker)
// no toca a los emisores.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/qaaqit/qaaq-auth/internal/observability/logger"
)

// Eventos conocidos.
const (
	// EventResolved: el bridge publicó una identidad autenticada.
	EventResolved = "auth.resolved"
	// EventSessionHealed: se limpió una sesión federada colgada.
	EventSessionHealed = "session.healed"
	// EventCacheCleared: un admin vació el auth cache.
	EventCacheCleared = "cache.cleared"
	// EventCredentialOK: un chequeo de password legacy pasó.
	EventCredentialOK = "auth.password_verified"
)

// Log emite un evento de auditoría con sus campos.
// Nunca loguear identificadores crudos acá: enmascarar antes.
func Log(ctx context.Context, event string, fields ...zap.Field) {
	logger.From(ctx).Named("audit").Info(event, fields...)
}
