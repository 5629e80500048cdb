package types

import (
	"time"

	"github.com/qaaqit/qaaq-auth/internal/domain/repository"
)

// Method indica qué método de autenticación resolvió la identidad.
type Method string

const (
	MethodToken     Method = "token"
	MethodFederated Method = "federated"
	MethodLegacy    Method = "legacy-session"
	MethodCache     Method = "cache"
)

// ResolvedIdentity es la identidad canónica de un request.
// Inmutable una vez producida: pertenece al request que la resolvió y,
// opcionalmente, se copia al Auth Cache.
type ResolvedIdentity struct {
	User       *repository.User
	Method     Method
	ResolvedAt time.Time
}
