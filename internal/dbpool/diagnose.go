package dbpool

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/qaaqit/qaaq-auth/internal/observability/logger"
)

// OptimizePool es diagnóstico, no correctivo: busca queries largas y cadenas
// de bloqueo por locks en pg_stat_activity y las loguea para que un humano (o
// el alerting) actúe. Se dispara a mano, desde el reporter, o automáticamente
// cuando la tasa de error supera el umbral.
func (m *Manager) OptimizePool(ctx context.Context) {
	if m.pool == nil {
		return
	}
	// una corrida a la vez
	if !m.optimLock.CompareAndSwap(false, true) {
		return
	}
	defer m.optimLock.Store(false)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	log := logger.Named("dbpool")

	m.reportLongRunning(ctx, log)
	m.reportBlocking(ctx, log)
}

func (m *Manager) reportLongRunning(ctx context.Context, log *zap.Logger) {
	const q = `
		SELECT pid, now() - query_start AS duration, left(query, 120) AS query
		FROM pg_stat_activity
		WHERE state = 'active'
		  AND query_start < now() - $1::interval
		  AND pid <> pg_backend_pid()
		ORDER BY query_start
	`
	interval := m.opts.LongRunning.String()
	err := m.ExecuteQuery(ctx, q, []any{interval}, func(rows pgx.Rows) error {
		for rows.Next() {
			var pid int
			var dur time.Duration
			var query string
			if err := rows.Scan(&pid, &dur, &query); err != nil {
				return err
			}
			log.Warn("query colgada",
				logger.Int64("pid", int64(pid)),
				logger.Duration(dur),
				logger.String("sql", query),
			)
		}
		return nil
	})
	if err != nil {
		log.Warn("diagnóstico long-running falló", logger.Err(err))
	}
}

func (m *Manager) reportBlocking(ctx context.Context, log *zap.Logger) {
	const q = `
		SELECT blocked.pid  AS blocked_pid,
		       blocking.pid AS blocking_pid,
		       left(blocked_activity.query, 120)  AS blocked_query,
		       left(blocking_activity.query, 120) AS blocking_query
		FROM pg_locks blocked
		JOIN pg_locks blocking
		  ON blocking.locktype = blocked.locktype
		 AND blocking.database IS NOT DISTINCT FROM blocked.database
		 AND blocking.relation IS NOT DISTINCT FROM blocked.relation
		 AND blocking.pid <> blocked.pid
		JOIN pg_stat_activity blocked_activity  ON blocked_activity.pid = blocked.pid
		JOIN pg_stat_activity blocking_activity ON blocking_activity.pid = blocking.pid
		WHERE NOT blocked.granted AND blocking.granted
	`
	err := m.ExecuteQuery(ctx, q, nil, func(rows pgx.Rows) error {
		for rows.Next() {
			var blockedPID, blockingPID int
			var blockedQ, blockingQ string
			if err := rows.Scan(&blockedPID, &blockingPID, &blockedQ, &blockingQ); err != nil {
				return err
			}
			log.Warn("cadena de bloqueo",
				logger.Int64("blocked_pid", int64(blockedPID)),
				logger.Int64("blocking_pid", int64(blockingPID)),
				logger.String("blocked_sql", blockedQ),
				logger.String("blocking_sql", blockingQ),
			)
		}
		return nil
	})
	if err != nil {
		log.Warn("diagnóstico de locks falló", logger.Err(err))
	}
}

// StartMonitor arranca el reporter periódico: cada ReportInterval loguea un
// snapshot de stats y, si la tasa de error lo amerita, corre OptimizePool.
// Idempotente: llamadas repetidas no duplican la goroutine.
func (m *Manager) StartMonitor() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		t := time.NewTicker(m.opts.ReportInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				m.report()
			case <-m.stop:
				return
			}
		}
	}()
	logger.Named("dbpool").Info("monitor del pool iniciado",
		logger.Duration(m.opts.ReportInterval))
}

// StopMonitor detiene el reporter. Seguro de llamar aunque nunca arrancó.
func (m *Manager) StopMonitor() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}

func (m *Manager) report() {
	s := m.Stats()
	logger.Named("dbpool").Info("pool stats",
		logger.Int64("active", s.Active),
		logger.Int64("waiting", s.Waiting),
		logger.Int64("total_queries", s.TotalQueries),
		logger.Int64("errors", s.Errors),
		logger.Duration(s.Uptime),
		logger.Int64("pool_total_conns", int64(s.PoolTotalConns)),
		logger.Int64("pool_idle_conns", int64(s.PoolIdleConns)),
	)
	if m.opts.Metrics != nil {
		m.opts.Metrics.observe(s)
	}
	if s.TotalQueries > 100 && float64(s.Errors)/float64(s.TotalQueries) > 0.05 {
		m.OptimizePool(context.Background())
	}
}
