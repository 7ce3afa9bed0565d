package subscriptions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dochieno/lawafrica-entitlements/pkg/audit"
)

const subscriptionColumns = `id, institution_id, content_product_id, status, start_date, end_date, created_at, updated_at`

// PostgresStore implements subscription persistence using PostgreSQL
type PostgresStore struct {
	db    *sql.DB
	audit *audit.DBLogger
}

// NewPostgresStore creates a new PostgresStore. The audit logger records
// every manual lifecycle action this store performs.
func NewPostgresStore(db *sql.DB, auditLogger *audit.DBLogger) *PostgresStore {
	return &PostgresStore{db: db, audit: auditLogger}
}

func scanSubscription(row interface{ Scan(...any) error }) (*Subscription, error) {
	sub := &Subscription{}
	err := row.Scan(
		&sub.ID, &sub.InstitutionID, &sub.ContentProductID, &sub.Status,
		&sub.StartDate, &sub.EndDate, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// LatestForProduct retrieves the authoritative (highest-id) subscription for
// an institution/product pair. Returns (nil, nil) when the pair has no
// subscription history at all.
func (s *PostgresStore) LatestForProduct(ctx context.Context, institutionID, productID int64) (*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM institution_product_subscriptions
		WHERE institution_id = $1 AND content_product_id = $2
		ORDER BY id DESC
		LIMIT 1
	`
	sub, err := scanSubscription(s.db.QueryRowContext(ctx, query, institutionID, productID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}

// GetSubscription retrieves a subscription by id
func (s *PostgresStore) GetSubscription(ctx context.Context, id int64) (*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM institution_product_subscriptions
		WHERE id = $1
	`
	sub, err := scanSubscription(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("subscription not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}

// driftCandidates fetches the next batch of subscriptions whose stored status
// disagrees with time-derivation. The CASE mirrors DeriveStatus purely as a
// store-level prefilter to limit I/O; the reconciler re-derives in Go before
// writing. Suspended rows are filtered here and must stay filtered: the
// reconciler never touches them.
func (s *PostgresStore) driftCandidates(ctx context.Context, afterID int64, limit int, now time.Time) ([]*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM institution_product_subscriptions
		WHERE id > $1
		  AND status <> $2
		  AND status <> CASE
			WHEN $3 < start_date THEN $4
			WHEN $3 >= end_date THEN $5
			ELSE $6
		  END
		ORDER BY id ASC
		LIMIT $7
	`
	rows, err := s.db.QueryContext(ctx, query,
		afterID, StatusSuspended, now, StatusPending, StatusExpired, StatusActive, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch drift candidates: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch drift candidates: %w", err)
	}

	return subs, nil
}

// updateStatusTx rewrites a subscription's status inside the caller's
// transaction.
func (s *PostgresStore) updateStatusTx(ctx context.Context, tx *sql.Tx, id int64, status Status) error {
	query := `UPDATE institution_product_subscriptions SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := tx.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("subscription not found")
	}

	return nil
}

// Suspend moves a subscription into the suspended state on behalf of an
// operator. Suspended is a manual-only state: the reconciler neither enters
// nor exits it.
func (s *PostgresStore) Suspend(ctx context.Context, id, performedByUserID int64, note string) error {
	return s.manualTransition(ctx, id, performedByUserID, note, audit.ActionManuallySuspended,
		func(*Subscription, time.Time) Status { return StatusSuspended })
}

// Resume takes a subscription out of the suspended state; the new status is
// whatever its dates derive right now.
func (s *PostgresStore) Resume(ctx context.Context, id, performedByUserID int64, note string) error {
	return s.manualTransition(ctx, id, performedByUserID, note, audit.ActionManuallyResumed,
		func(sub *Subscription, now time.Time) Status {
			return DeriveStatus(sub.StartDate, sub.EndDate, now)
		})
}

func (s *PostgresStore) manualTransition(ctx context.Context, id, performedByUserID int64, note string, action audit.Action, next func(*Subscription, time.Time) Status) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT ` + subscriptionColumns + `
		FROM institution_product_subscriptions
		WHERE id = $1
		FOR UPDATE
	`
	sub, err := scanSubscription(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return fmt.Errorf("subscription not found")
	}
	if err != nil {
		return fmt.Errorf("failed to get subscription: %w", err)
	}

	newStatus := next(sub, time.Now().UTC())
	if err := s.updateStatusTx(ctx, tx, id, newStatus); err != nil {
		return err
	}

	entry := &audit.Entry{
		SubscriptionID:    sub.ID,
		Action:            action,
		PerformedByUserID: &performedByUserID,
		OldStatus:         string(sub.Status),
		NewStatus:         string(newStatus),
		OldStartDate:      sub.StartDate,
		OldEndDate:        sub.EndDate,
		NewStartDate:      sub.StartDate,
		NewEndDate:        sub.EndDate,
		Note:              note,
	}
	if err := s.audit.LogTx(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit manual transition: %w", err)
	}

	return nil
}
