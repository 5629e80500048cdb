package dbpool

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exporta los contadores del pool a prometheus.
type Metrics struct {
	queries     prometheus.Counter
	errors      prometheus.Counter
	slowQueries prometheus.Counter
	txFailures  prometheus.Counter

	active  prometheus.Gauge
	waiting prometheus.Gauge
	idle    prometheus.Gauge
}

// NewMetrics registra las métricas del pool en el registry dado.
// Pasar nil usa el registry default.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		queries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "db_pool_queries_total",
			Help: "Total de queries ejecutadas vía el pool manager",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "db_pool_errors_total",
			Help: "Total de queries/transacciones fallidas",
		}),
		slowQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "db_pool_slow_queries_total",
			Help: "Queries que superaron el umbral slow-query",
		}),
		txFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "db_pool_tx_failures_total",
			Help: "Transacciones que agotaron sus reintentos",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_pool_active_connections",
			Help: "Conexiones activas según el último snapshot",
		}),
		waiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_pool_waiting_requests",
			Help: "Requests esperando conexión según el último snapshot",
		}),
		idle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_pool_idle_connections",
			Help: "Conexiones idle del pgxpool",
		}),
	}
	reg.MustRegister(m.queries, m.errors, m.slowQueries, m.txFailures,
		m.active, m.waiting, m.idle)
	return m
}

// observe vuelca un snapshot de stats a los gauges.
func (m *Metrics) observe(s Stats) {
	m.active.Set(float64(s.Active))
	m.waiting.Set(float64(s.Waiting))
	m.idle.Set(float64(s.PoolIdleConns))
}
