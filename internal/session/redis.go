package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis es el backend distribuido para producción.
type Redis struct {
	cli    *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig configura el backend redis.
type RedisConfig struct {
	Addr   string
	DB     int
	Prefix string
	TTL    time.Duration
}

// NewRedis crea un store redis. No valida la conexión: usar Ping si importa.
func NewRedis(cfg RedisConfig) *Redis {
	cli := redis.NewClient(&redis.Options{Addr: cfg.Addr, DB: cfg.DB})
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "sess:"
	}
	return &Redis{cli: cli, prefix: prefix, ttl: cfg.TTL}
}

// Ping verifica la conexión.
func (r *Redis) Ping(ctx context.Context) error {
	return r.cli.Ping(ctx).Err()
}

// Close cierra el cliente.
func (r *Redis) Close() error { return r.cli.Close() }

// Client expone el cliente subyacente para consumidores que comparten la
// misma conexión (rate limiting).
func (r *Redis) Client() *redis.Client { return r.cli }

func (r *Redis) key(id string) string { return r.prefix + id }

func (r *Redis) Get(ctx context.Context, id string) (*Session, error) {
	b, err := r.cli.Get(ctx, r.key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		// payload corrupto: tratarlo como inexistente y dejar que el
		// bridge lo repare borrándolo
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *Redis) Put(ctx context.Context, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.cli.Set(ctx, r.key(s.ID), b, r.ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	return r.cli.Del(ctx, r.key(id)).Err()
}
