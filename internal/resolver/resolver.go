// Package resolver mapea identificadores opacos a usuarios canónicos.
//
// El orden de estrategias es contrato, no detalle: se prueba estrictamente en
// el orden declarado y se corta en el primer éxito. Cada fallo intermedio es
// no-fatal; solo el agotamiento completo se reporta como ErrNotFound.
package resolver

import (
	"context"
	"regexp"
	"strings"

	"github.com/qaaqit/qaaq-auth/internal/domain/repository"
	"github.com/qaaqit/qaaq-auth/internal/observability/logger"
	"github.com/qaaqit/qaaq-auth/internal/util"
)

// Hints de contexto que afectan la cadena de estrategias.
const (
	// HintFederatedLegacy habilita el lookup por replit_id (estrategia 3).
	HintFederatedLegacy = "federated-legacy"
	// HintSession es el hint neutro de los lookups de sesión.
	HintSession = "session"
)

// phoneRe acepta E.164 y variantes con espacios/guiones, mínimo 7 dígitos.
var phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,17}[0-9]$`)

// Resolver resuelve identidades contra el user store y mantiene el grafo
// unificado de identidades.
type Resolver struct {
	users repository.UserRepository
	links repository.LinkRepository
}

// New crea el resolver.
func New(users repository.UserRepository, links repository.LinkRepository) *Resolver {
	return &Resolver{users: users, links: links}
}

// Resolve intenta las estrategias en orden estricto:
//
//  1. primary key
//  2. grafo unificado (provider_id de cualquier provider vinculado)
//  3. lookup legacy por replit_id (solo con hint federated-legacy)
//  4. email, si el identifier es sintácticamente un email
//  5. teléfono, si matchea el patrón
//
// Determinista para un estado fijo del store. Retorna repository.ErrNotFound
// al agotar la cadena; eso NO es un error del sistema, es "no autenticado".
func (r *Resolver) Resolve(ctx context.Context, identifier, hint string) (*repository.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, repository.ErrNotFound
	}
	log := logger.From(ctx).Named("resolver")

	// 1. primary key
	if u, err := r.users.GetByID(ctx, identifier); err == nil {
		return u, nil
	}

	// 2. grafo unificado
	if u, err := r.users.FindByAnyIdentity(ctx, identifier); err == nil {
		return u, nil
	}

	// 3. lookup legacy, solo si el contexto lo indica
	if hint == HintFederatedLegacy {
		if u, err := r.users.GetByLegacyProviderID(ctx, identifier); err == nil {
			// encontrado fuera del grafo: backfillear el link para que el
			// próximo lookup pegue en la estrategia 2 directo
			r.backfill(ctx, u, repository.ProviderReplit, identifier)
			return u, nil
		}
	}

	// 4. email
	if strings.Contains(identifier, "@") {
		if u, err := r.users.GetByEmail(ctx, identifier); err == nil {
			return u, nil
		}
	}

	// 5. teléfono
	if phoneRe.MatchString(identifier) {
		if u, err := r.users.GetByPhone(ctx, identifier); err == nil {
			return u, nil
		}
	}

	log.Debug("identidad no resuelta", logger.Key(mask(identifier)))
	return nil, repository.ErrNotFound
}

// mask enmascara un identificador para logs: nunca loguear el valor completo.
func mask(s string) string {
	if strings.Contains(s, "@") {
		return util.MaskEmail(s)
	}
	return util.MaskIdentifier(s, 4)
}

// EnsureProviderLink backfillea un link del grafo. Best-effort: el error se
// retorna para quien quiera loguearlo, pero los callers lo descartan a
// propósito: un backfill fallido jamás voltea una resolución exitosa.
func (r *Resolver) EnsureProviderLink(ctx context.Context, user *repository.User, provider, providerID string) error {
	if user == nil || providerID == "" {
		return nil
	}
	if err := r.links.Ensure(ctx, user.ID, provider, providerID); err != nil {
		logger.From(ctx).Named("resolver").Warn("backfill de provider link falló",
			logger.UserID(user.ID),
			logger.Provider(provider),
			logger.Err(err),
		)
		return err
	}
	return nil
}

// backfill es EnsureProviderLink con el descarte explícito del error.
func (r *Resolver) backfill(ctx context.Context, user *repository.User, provider, providerID string) {
	_ = r.EnsureProviderLink(ctx, user, provider, providerID)
}
