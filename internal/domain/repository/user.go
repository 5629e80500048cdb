package repository

import (
	"context"
	"time"
)

// User representa un marino registrado en la plataforma.
// El resolver lo trata como opaco más allá de ID, Email, Phone y sus
// identidades vinculadas; el resto de campos son para los handlers.
type User struct {
	ID            string
	Email         string
	Phone         string // número WhatsApp en formato E.164, puede estar vacío
	Name          string
	Rank          string // rango marítimo ("chief_engineer", "2nd_officer", ...)
	ShipName      string
	City          string
	EmailVerified bool
	CreatedAt     time.Time
	LastLoginAt   *time.Time

	// PasswordHash (PHC) solo se usa para CheckPassword; nil si la cuenta
	// no tiene password (solo federada). Jamás se serializa hacia afuera.
	PasswordHash *string
}

// CheckPasswordFunc compara un hash PHC con un password en claro.
// No toca la BD; vive en el port para que los services no importen crypto.
type CheckPasswordFunc func(hash *string, password string) bool

// UserRepository define las búsquedas que necesita la resolución de identidad.
// Todas retornan ErrNotFound si no hay usuario.
type UserRepository interface {
	// GetByID busca por primary key.
	GetByID(ctx context.Context, userID string) (*User, error)

	// GetByEmail busca por email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByPhone busca por número de WhatsApp normalizado.
	GetByPhone(ctx context.Context, phone string) (*User, error)

	// FindByAnyIdentity busca en el grafo unificado de identidades:
	// el identifier puede ser un provider_user_id de cualquier provider vinculado.
	FindByAnyIdentity(ctx context.Context, identifier string) (*User, error)

	// GetByLegacyProviderID busca por el campo de provider legacy (replit_id),
	// que vive en la tabla de usuarios y no en el grafo.
	GetByLegacyProviderID(ctx context.Context, providerID string) (*User, error)

	// CheckPassword verifica el password contra el hash almacenado.
	// No accede a la BD, solo compara.
	CheckPassword(hash *string, password string) bool
}
