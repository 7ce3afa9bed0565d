package observability

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the entitlement engine
type Metrics struct {
	// Access resolution metrics
	AccessChecksTotal   *prometheus.CounterVec // labels: outcome, via
	AccessDenialsTotal  *prometheus.CounterVec // labels: reason
	AccessCheckDuration prometheus.Histogram

	// Seat enforcement metrics
	SeatChecksTotal     *prometheus.CounterVec // labels: outcome
	SeatRejectionsTotal *prometheus.CounterVec // labels: bucket
	SerializationAborts prometheus.Counter

	// Reconciler metrics
	ReconcileCyclesTotal      *prometheus.CounterVec // labels: outcome
	ReconcileTransitionsTotal *prometheus.CounterVec // labels: from, to
	ReconcileScannedTotal     prometheus.Counter
	ReconcileCycleDuration    prometheus.Histogram

	// Product cache metrics
	ProductCacheHitsTotal   prometheus.Counter
	ProductCacheMissesTotal prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AccessChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lawafrica_access_checks_total",
				Help: "Total access resolution requests by outcome",
			},
			[]string{"outcome", "via"},
		),
		AccessDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lawafrica_access_denials_total",
				Help: "Access denials by reason",
			},
			[]string{"reason"},
		),
		AccessCheckDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lawafrica_access_check_duration_seconds",
				Help:    "Access resolution latency",
				Buckets: prometheus.DefBuckets,
			},
		),
		SeatChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lawafrica_seat_checks_total",
				Help: "Seat capacity checks by outcome",
			},
			[]string{"outcome"},
		),
		SeatRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lawafrica_seat_rejections_total",
				Help: "Seat limit rejections by bucket",
			},
			[]string{"bucket"},
		),
		SerializationAborts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lawafrica_serialization_aborts_total",
				Help: "Seat-enforcement transactions aborted by serialization conflicts",
			},
		),
		ReconcileCyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lawafrica_reconcile_cycles_total",
				Help: "Subscription reconciliation cycles by outcome",
			},
			[]string{"outcome"},
		),
		ReconcileTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lawafrica_reconcile_transitions_total",
				Help: "Automatic subscription status transitions",
			},
			[]string{"from", "to"},
		),
		ReconcileScannedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lawafrica_reconcile_scanned_total",
				Help: "Drift candidates scanned by the reconciler",
			},
		),
		ReconcileCycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lawafrica_reconcile_cycle_duration_seconds",
				Help:    "Reconciliation cycle latency",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
		),
		ProductCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lawafrica_product_cache_hits_total",
				Help: "Content product cache hits",
			},
		),
		ProductCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lawafrica_product_cache_misses_total",
				Help: "Content product cache misses",
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lawafrica_db_connections_active",
				Help: "Active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lawafrica_db_connections_idle",
				Help: "Idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.AccessChecksTotal,
		m.AccessDenialsTotal,
		m.AccessCheckDuration,
		m.SeatChecksTotal,
		m.SeatRejectionsTotal,
		m.SerializationAborts,
		m.ReconcileCyclesTotal,
		m.ReconcileTransitionsTotal,
		m.ReconcileScannedTotal,
		m.ReconcileCycleDuration,
		m.ProductCacheHitsTotal,
		m.ProductCacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// UpdateDBStats refreshes the connection pool gauges from sql.DBStats.
func (m *Metrics) UpdateDBStats(db *sql.DB) {
	stats := db.Stats()
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// Handler returns an HTTP handler exposing the registry.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
