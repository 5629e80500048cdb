// Package session provee el store de sesiones ambientales que el Session
// Bridge consulta y repara. Backends: memory (dev/tests) y redis (prod).
package session

import (
	"context"
	"errors"
	"time"
)

// Kind distingue de dónde viene la sesión.
type Kind string

const (
	// KindFederated: sesión creada por un login federado (google/replit).
	KindFederated Kind = "federated"
	// KindLegacy: sesión del stack viejo (cookie connect.sid).
	KindLegacy Kind = "legacy"
)

// Session es el estado ambiental asociado a una cookie.
// Subject es el identificador que el provider afirmó; el bridge NO lo
// confía hasta que el resolver lo mapee a un usuario real.
type Session struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	Subject   string         `json:"subject"`
	Provider  string         `json:"provider,omitempty"`
	Claims    map[string]any `json:"claims,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ErrNotFound indica que la sesión no existe o expiró.
var ErrNotFound = errors.New("session: not found")

// Store define las operaciones del session store.
type Store interface {
	// Get retorna la sesión o ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Put guarda la sesión con el TTL del store.
	Put(ctx context.Context, s *Session) error

	// Delete elimina la sesión. Borrar una sesión inexistente no es error:
	// el bridge la usa para auto-reparar sesiones colgadas.
	Delete(ctx context.Context, id string) error
}

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
