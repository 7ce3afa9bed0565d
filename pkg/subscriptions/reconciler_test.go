package subscriptions

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dochieno/lawafrica-entitlements/pkg/audit"
	"github.com/dochieno/lawafrica-entitlements/pkg/observability"
)

func newTestReconciler(t *testing.T, config ReconcilerConfig) (*Reconciler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	auditLogger, err := audit.NewDBLogger(db)
	require.NoError(t, err)

	store := NewPostgresStore(db, auditLogger)
	logger := observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
	r := NewReconciler(db, store, auditLogger, logger, nil, config)

	return r, mock, func() { db.Close() }
}

func TestReconcileOnce_CorrectsDriftedStatus(t *testing.T) {
	r, mock, closeDB := newTestReconciler(t, ReconcilerConfig{})
	defer closeDB()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	// Stale row: marked expired but its window runs for another five days.
	start := now.AddDate(0, 0, -10)
	end := now.AddDate(0, 0, 5)

	mock.ExpectQuery("SELECT (.+) FROM institution_product_subscriptions WHERE id >").
		WithArgs(int64(0), "suspended", now, "pending", "expired", "active", 500).
		WillReturnRows(sqlmock.NewRows(subscriptionCols).
			AddRow(42, 7, 3, "expired", start, end, start, start))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE institution_product_subscriptions SET status").
		WithArgs("active", int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO institution_subscription_audit").
		WithArgs(int64(42), "auto_status_changed", nil,
			"expired", "active",
			start, end, start, end,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	stats, err := r.ReconcileOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Scanned)
	assert.Equal(t, 1, stats.Transitioned)
	assert.NotEmpty(t, stats.RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileOnce_NoCandidates(t *testing.T) {
	r, mock, closeDB := newTestReconciler(t, ReconcilerConfig{})
	defer closeDB()

	mock.ExpectQuery("SELECT (.+) FROM institution_product_subscriptions WHERE id >").
		WillReturnRows(sqlmock.NewRows(subscriptionCols))

	stats, err := r.ReconcileOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Scanned)
	assert.Equal(t, 0, stats.Transitioned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileOnce_PrefilterFalsePositiveSkipped(t *testing.T) {
	r, mock, closeDB := newTestReconciler(t, ReconcilerConfig{})
	defer closeDB()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	// Row already carries the status its dates derive; the Go derivation is
	// authoritative and must not rewrite it.
	start := now.AddDate(0, -1, 0)
	end := now.AddDate(0, 1, 0)

	mock.ExpectQuery("SELECT (.+) FROM institution_product_subscriptions WHERE id >").
		WillReturnRows(sqlmock.NewRows(subscriptionCols).
			AddRow(42, 7, 3, "active", start, end, start, start))
	mock.ExpectBegin()
	mock.ExpectCommit()

	stats, err := r.ReconcileOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Scanned)
	assert.Equal(t, 0, stats.Transitioned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileOnce_CursorPagination(t *testing.T) {
	r, mock, closeDB := newTestReconciler(t, ReconcilerConfig{BatchSize: 2})
	defer closeDB()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	start := now.AddDate(0, 0, -10)
	end := now.AddDate(0, 0, 5)

	// Full first batch: two pending rows whose windows already opened.
	mock.ExpectQuery("SELECT (.+) FROM institution_product_subscriptions WHERE id >").
		WithArgs(int64(0), "suspended", now, "pending", "expired", "active", 2).
		WillReturnRows(sqlmock.NewRows(subscriptionCols).
			AddRow(10, 7, 3, "pending", start, end, start, start).
			AddRow(11, 7, 4, "pending", start, end, start, start))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE institution_product_subscriptions SET status").
		WithArgs("active", int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO institution_subscription_audit").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec("UPDATE institution_product_subscriptions SET status").
		WithArgs("active", int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO institution_subscription_audit").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectCommit()

	// Cursor advanced past the last id seen; empty batch ends the scan.
	mock.ExpectQuery("SELECT (.+) FROM institution_product_subscriptions WHERE id >").
		WithArgs(int64(11), "suspended", now, "pending", "expired", "active", 2).
		WillReturnRows(sqlmock.NewRows(subscriptionCols))

	stats, err := r.ReconcileOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 2, stats.Transitioned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileOnce_BatchFailureRollsBack(t *testing.T) {
	r, mock, closeDB := newTestReconciler(t, ReconcilerConfig{})
	defer closeDB()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	start := now.AddDate(0, 0, -10)
	end := now.AddDate(0, 0, 5)

	mock.ExpectQuery("SELECT (.+) FROM institution_product_subscriptions WHERE id >").
		WillReturnRows(sqlmock.NewRows(subscriptionCols).
			AddRow(42, 7, 3, "expired", start, end, start, start))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE institution_product_subscriptions SET status").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := r.ReconcileOnce(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunCycle_FailureDoesNotPanic(t *testing.T) {
	r, mock, closeDB := newTestReconciler(t, ReconcilerConfig{})
	defer closeDB()

	mock.ExpectQuery("SELECT (.+) FROM institution_product_subscriptions WHERE id >").
		WillReturnError(errors.New("database down"))

	// Fail-open: the cycle logs and returns so the next tick can try again.
	assert.NotPanics(t, func() {
		r.RunCycle(context.Background())
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	r, mock, closeDB := newTestReconciler(t, ReconcilerConfig{Interval: time.Hour})
	defer closeDB()

	mock.ExpectQuery("SELECT (.+) FROM institution_product_subscriptions WHERE id >").
		WillReturnRows(sqlmock.NewRows(subscriptionCols))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not observe cancellation")
	}
}
