package repository

import (
	"context"
	"time"
)

// Providers conocidos del grafo de identidades.
const (
	// ProviderQaaq: tokens bearer emitidos por el propio servicio.
	ProviderQaaq = "qaaq"
	// ProviderGoogle: sesión federada vía Google.
	ProviderGoogle = "google"
	// ProviderReplit: sesión federada legacy (cuentas migradas).
	ProviderReplit = "replit"
	// ProviderWhatsApp: cuentas creadas desde el bot de WhatsApp.
	ProviderWhatsApp = "whatsapp"
)

// ProviderLink vincula un provider_user_id externo con un usuario.
// Es el grafo unificado: un usuario puede encontrarse por cualquiera
// de sus identificadores vinculados.
type ProviderLink struct {
	ID         string
	UserID     string
	Provider   string
	ProviderID string
	Verified   bool
	CreatedAt  time.Time
}

// LinkRepository define operaciones sobre el grafo de identidades.
type LinkRepository interface {
	// GetByProvider busca un link por (provider, provider_user_id).
	// Retorna ErrNotFound si no existe.
	GetByProvider(ctx context.Context, provider, providerID string) (*ProviderLink, error)

	// ListByUser lista todos los links de un usuario, orden de creación.
	ListByUser(ctx context.Context, userID string) ([]ProviderLink, error)

	// Ensure crea el link (user, provider, providerID) si no existe.
	// Idempotente: si ya existe no hace nada y no es error.
	Ensure(ctx context.Context, userID, provider, providerID string) error
}
