// Package dbpool envuelve el pool compartido de pgx con contadores de salud,
// detección de queries lentas/bloqueantes y retry transaccional.
//
// Todo el I/O de storage del servicio pasa por acá: los repos no tocan el
// pgxpool directo.
package dbpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qaaqit/qaaq-auth/internal/observability/logger"
)

var (
	// ErrQueryFailure marca un fallo de query simple.
	ErrQueryFailure = errors.New("query failed")
	// ErrTransactionFailure marca el agotamiento de los reintentos de una
	// transacción. Distinto de ErrQueryFailure a propósito: el caller puede
	// querer alertar distinto.
	ErrTransactionFailure = errors.New("transaction failed")
)

// Options configura el manager.
type Options struct {
	// SlowQuery umbral para loguear (no fallar) queries lentas. Default 1s.
	SlowQuery time.Duration
	// ReportInterval período del reporter de stats. Default 2m.
	ReportInterval time.Duration
	// MaxTxRetries default para ExecuteTransaction cuando se pasa 0. Default 3.
	MaxTxRetries int
	// LongRunning umbral para el diagnóstico de queries colgadas. Default 5m.
	LongRunning time.Duration
	// Metrics opcional: si está, el manager exporta contadores a prometheus.
	Metrics *Metrics
}

// Stats es el snapshot de salud del pool. Nunca se persiste.
type Stats struct {
	Active       int64         `json:"active_connections"`
	Waiting      int64         `json:"waiting_count"`
	TotalQueries int64         `json:"total_queries"`
	Errors       int64         `json:"error_count"`
	Uptime       time.Duration `json:"uptime"`
	// Del pgxpool subyacente
	PoolTotalConns int32 `json:"pool_total_conns"`
	PoolIdleConns  int32 `json:"pool_idle_conns"`
	PoolMaxConns   int32 `json:"pool_max_conns"`
}

// Manager administra el pool compartido.
type Manager struct {
	pool *pgxpool.Pool
	opts Options

	active       atomic.Int64
	waiting      atomic.Int64
	totalQueries atomic.Int64
	errorCount   atomic.Int64

	mu        sync.Mutex
	resetAt   time.Time
	optimLock atomic.Bool // evita OptimizePool concurrentes

	stop     chan struct{}
	wg       sync.WaitGroup
	started  atomic.Bool
	stopOnce sync.Once

	// inyectables para tests
	begin       func(ctx context.Context) (pgx.Tx, error)
	backoffBase time.Duration
}

// New crea el manager sobre un pool ya conectado.
func New(pool *pgxpool.Pool, opts Options) *Manager {
	if opts.SlowQuery <= 0 {
		opts.SlowQuery = time.Second
	}
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 2 * time.Minute
	}
	if opts.MaxTxRetries <= 0 {
		opts.MaxTxRetries = 3
	}
	if opts.LongRunning <= 0 {
		opts.LongRunning = 5 * time.Minute
	}
	m := &Manager{
		pool:        pool,
		opts:        opts,
		resetAt:     time.Now(),
		stop:        make(chan struct{}),
		backoffBase: time.Second,
	}
	if pool != nil {
		m.begin = func(ctx context.Context) (pgx.Tx, error) { return pool.Begin(ctx) }
	}
	return m
}

// Pool expone el pgxpool subyacente (healthcheck, shutdown).
func (m *Manager) Pool() *pgxpool.Pool { return m.pool }

// ExecuteQuery adquiere una conexión, corre la query y entrega las filas al
// callback scan. La conexión se libera en TODOS los caminos (adquisición
// scoped). Una query que supera el umbral slow-query se loguea con WARN pero
// no falla.
func (m *Manager) ExecuteQuery(ctx context.Context, sql string, args []any, scan func(pgx.Rows) error) error {
	m.waiting.Add(1)
	conn, err := m.pool.Acquire(ctx)
	m.waiting.Add(-1)
	if err != nil {
		m.countError()
		return fmt.Errorf("%w: acquire: %v", ErrQueryFailure, err)
	}
	defer conn.Release()

	m.active.Add(1)
	defer m.active.Add(-1)
	m.totalQueries.Add(1)
	if m.opts.Metrics != nil {
		m.opts.Metrics.queries.Inc()
	}

	start := time.Now()
	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		m.countError()
		return fmt.Errorf("%w: %v", ErrQueryFailure, err)
	}
	scanErr := scan(rows)
	rows.Close()
	if scanErr == nil {
		scanErr = rows.Err()
	}

	if dur := time.Since(start); dur > m.opts.SlowQuery {
		logger.Named("dbpool").Warn("query lenta",
			logger.Duration(dur),
			logger.String("sql", truncateSQL(sql)),
		)
		if m.opts.Metrics != nil {
			m.opts.Metrics.slowQueries.Inc()
		}
	}

	if scanErr != nil {
		m.countError()
		return fmt.Errorf("%w: %v", ErrQueryFailure, scanErr)
	}
	return nil
}

// ExecuteTransaction corre fn dentro de una transacción con reintentos.
// Cada intento es un ciclo begin/fn/commit completo; ante cualquier error se
// hace rollback y la conexión vuelve al pool antes del siguiente intento.
// Backoff exponencial 2^intento entre intentos. Solo el error del ÚLTIMO
// intento se reporta, envuelto en ErrTransactionFailure.
func (m *Manager) ExecuteTransaction(ctx context.Context, fn func(pgx.Tx) error, maxRetries int) error {
	if maxRetries <= 0 {
		maxRetries = m.opts.MaxTxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = m.runTxAttempt(ctx, fn)
		if lastErr == nil {
			return nil
		}
		logger.Named("dbpool").Warn("intento de transacción falló",
			logger.Int64("attempt", int64(attempt)),
			logger.Err(lastErr),
		)

		if attempt == maxRetries {
			break
		}
		// 2^attempt segundos (base inyectable para tests)
		backoff := time.Duration(1<<uint(attempt)) * m.backoffBase
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrTransactionFailure, ctx.Err())
		}
	}

	m.countError()
	if m.opts.Metrics != nil {
		m.opts.Metrics.txFailures.Inc()
	}
	return fmt.Errorf("%w: %v", ErrTransactionFailure, lastErr)
}

func (m *Manager) runTxAttempt(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := m.begin(ctx)
	if err != nil {
		return err
	}

	m.active.Add(1)
	m.totalQueries.Add(1)
	defer m.active.Add(-1)

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return nil
}

// countError incrementa el contador y dispara el diagnóstico del pool si la
// tasa de error rodante supera el 5% con más de 100 queries observadas.
func (m *Manager) countError() {
	errs := m.errorCount.Add(1)
	if m.opts.Metrics != nil {
		m.opts.Metrics.errors.Inc()
	}
	total := m.totalQueries.Load()
	if total > 100 && float64(errs)/float64(total) > 0.05 {
		// async: el diagnóstico no puede frenar el request que falló
		go m.OptimizePool(context.Background())
	}
}

// Stats retorna el snapshot actual. Solo lectura, apto para alerting externo.
func (m *Manager) Stats() Stats {
	s := Stats{
		Active:       m.active.Load(),
		Waiting:      m.waiting.Load(),
		TotalQueries: m.totalQueries.Load(),
		Errors:       m.errorCount.Load(),
	}
	m.mu.Lock()
	s.Uptime = time.Since(m.resetAt)
	m.mu.Unlock()
	if m.pool != nil {
		ps := m.pool.Stat()
		s.PoolTotalConns = ps.TotalConns()
		s.PoolIdleConns = ps.IdleConns()
		s.PoolMaxConns = ps.MaxConns()
	}
	return s
}

// ResetStats vuelve los contadores a cero y reinicia el uptime.
func (m *Manager) ResetStats() {
	m.totalQueries.Store(0)
	m.errorCount.Store(0)
	m.mu.Lock()
	m.resetAt = time.Now()
	m.mu.Unlock()
}

func truncateSQL(sql string) string {
	const max = 120
	if len(sql) > max {
		return sql[:max] + "…"
	}
	return sql
}
