package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qaaqit/qaaq-auth/internal/observability/logger"
)

// PoolConfig configura el pgxpool.
type PoolConfig struct {
	DSN          string
	MaxConns     int
	MinConns     int
	ConnLifetime string
}

// Open crea y conecta el pgxpool.
// El ping inicial es best-effort: si la base está caída en el arranque, el
// proceso levanta igual y readyz reporta el estado real.
func Open(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnLifetime != "" {
		if d, err := time.ParseDuration(cfg.ConnLifetime); err == nil {
			pcfg.MaxConnLifetime = d
			pcfg.MaxConnIdleTime = d
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		logger.Named("pg").Warn("ping inicial falló, el pool reintenta solo", logger.Err(err))
	} else {
		logger.Named("pg").Info("pool listo", logger.Int64("max_conns", int64(pcfg.MaxConns)))
	}

	return pool, nil
}
