package subscriptions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dochieno/lawafrica-entitlements/pkg/audit"
	"github.com/dochieno/lawafrica-entitlements/pkg/observability"
)

// ReconcilerConfig holds tuning knobs for the lifecycle reconciler
type ReconcilerConfig struct {
	// BatchSize is the number of drift candidates fetched and committed per
	// transaction.
	BatchSize int

	// Interval is the pause between reconciliation cycles in Run.
	Interval time.Duration
}

// DefaultReconcilerConfig returns the production defaults.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		BatchSize: 500,
		Interval:  5 * time.Minute,
	}
}

// Reconciler keeps stored subscription statuses consistent with wall-clock
// time. It is the only agent that moves subscriptions among pending, active,
// and expired; suspended rows are filtered out of every candidate query and
// never assigned.
type Reconciler struct {
	db      *sql.DB
	store   *PostgresStore
	audit   *audit.DBLogger
	logger  *observability.Logger
	metrics *observability.Metrics
	config  ReconcilerConfig

	// now is swapped out by tests
	now func() time.Time
}

// NewReconciler creates a new lifecycle reconciler. metrics may be nil.
func NewReconciler(db *sql.DB, store *PostgresStore, auditLogger *audit.DBLogger, logger *observability.Logger, metrics *observability.Metrics, config ReconcilerConfig) *Reconciler {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultReconcilerConfig().BatchSize
	}
	if config.Interval <= 0 {
		config.Interval = DefaultReconcilerConfig().Interval
	}
	return &Reconciler{
		db:      db,
		store:   store,
		audit:   auditLogger,
		logger:  logger,
		metrics: metrics,
		config:  config,
		now:     time.Now,
	}
}

// RunStats summarizes one reconciliation pass
type RunStats struct {
	RunID        string
	Scanned      int
	Transitioned int
}

// ReconcileOnce performs one full scan over drift candidates using id-cursor
// pagination, committing each batch in its own transaction so partial
// progress survives a mid-run failure. It observes ctx between batches.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{RunID: uuid.NewString()}

	var lastID int64
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		now := r.now().UTC()
		batch, err := r.store.driftCandidates(ctx, lastID, r.config.BatchSize, now)
		if err != nil {
			return stats, err
		}
		if len(batch) == 0 {
			break
		}

		if err := r.applyBatch(ctx, batch, now, stats); err != nil {
			return stats, err
		}

		lastID = batch[len(batch)-1].ID
		if len(batch) < r.config.BatchSize {
			break
		}
	}

	return stats, nil
}

// applyBatch rewrites every drifted row in the batch and appends one audit
// fact per rewrite, all in a single transaction.
func (r *Reconciler) applyBatch(ctx context.Context, batch []*Subscription, now time.Time, stats *RunStats) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, sub := range batch {
		stats.Scanned++
		if r.metrics != nil {
			r.metrics.ReconcileScannedTotal.Inc()
		}

		// The SQL prefilter already selected for drift, but it is only an
		// I/O limiter; the Go derivation is authoritative.
		derived := DeriveStatus(sub.StartDate, sub.EndDate, now)
		if derived == sub.Status {
			continue
		}

		if err := r.store.updateStatusTx(ctx, tx, sub.ID, derived); err != nil {
			return err
		}

		entry := &audit.Entry{
			SubscriptionID:    sub.ID,
			Action:            audit.ActionAutoStatusChanged,
			PerformedByUserID: nil,
			OldStatus:         string(sub.Status),
			NewStatus:         string(derived),
			OldStartDate:      sub.StartDate,
			OldEndDate:        sub.EndDate,
			NewStartDate:      sub.StartDate,
			NewEndDate:        sub.EndDate,
			Note:              fmt.Sprintf("status drift corrected by reconciler run %s", stats.RunID),
		}
		if err := r.audit.LogTx(ctx, tx, entry); err != nil {
			return err
		}

		stats.Transitioned++
		if r.metrics != nil {
			r.metrics.ReconcileTransitionsTotal.WithLabelValues(string(sub.Status), string(derived)).Inc()
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reconciliation batch: %w", err)
	}

	return nil
}

// Run executes reconciliation cycles on a fixed interval until ctx is
// cancelled. Cycle failures are logged and do not terminate the loop; the
// next tick simply tries again, accepting bounded staleness over crashing a
// long-running background job.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		r.RunCycle(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle executes one reconciliation pass with logging and metrics,
// swallowing errors per the fail-open policy. The daemon's scheduler calls
// this directly.
func (r *Reconciler) RunCycle(ctx context.Context) {
	start := time.Now()
	stats, err := r.ReconcileOnce(ctx)
	elapsed := time.Since(start)

	if r.metrics != nil {
		r.metrics.ReconcileCycleDuration.Observe(elapsed.Seconds())
	}

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if r.metrics != nil {
			r.metrics.ReconcileCyclesTotal.WithLabelValues("error").Inc()
		}
		r.logger.WithError(err).WithField("run_id", stats.RunID).
			Error("subscription reconciliation cycle failed")
		return
	}

	if r.metrics != nil {
		r.metrics.ReconcileCyclesTotal.WithLabelValues("success").Inc()
	}
	r.logger.WithFields(map[string]interface{}{
		"run_id":       stats.RunID,
		"scanned":      stats.Scanned,
		"transitioned": stats.Transitioned,
		"duration_ms":  elapsed.Milliseconds(),
	}).Info("subscription reconciliation cycle completed")
}
