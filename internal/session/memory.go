package session

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Mem es el backend en memoria, para desarrollo y tests.
type Mem struct {
	c   *gocache.Cache
	ttl time.Duration
}

// NewMemory crea un store en memoria con TTL por sesión.
func NewMemory(ttl time.Duration) *Mem {
	return &Mem{c: gocache.New(ttl, time.Minute), ttl: ttl}
}

func (m *Mem) Get(_ context.Context, id string) (*Session, error) {
	v, ok := m.c.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	s, ok := v.(*Session)
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Mem) Put(_ context.Context, s *Session) error {
	m.c.Set(s.ID, s, m.ttl)
	return nil
}

func (m *Mem) Delete(_ context.Context, id string) error {
	m.c.Delete(id)
	return nil
}
