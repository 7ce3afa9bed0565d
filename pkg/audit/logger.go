package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Querier is the subset of database/sql operations the logger writes
// through; both *sql.DB and *sql.Tx satisfy it so an audit row can commit
// atomically with the change it describes.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// DBLogger appends subscription audit facts to PostgreSQL
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-backed audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// Log appends an audit fact outside any transaction.
func (l *DBLogger) Log(ctx context.Context, entry *Entry) error {
	return l.LogTx(ctx, l.db, entry)
}

// LogTx appends an audit fact through q, typically the transaction that
// carries the subscription change itself.
func (l *DBLogger) LogTx(ctx context.Context, q Querier, entry *Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO institution_subscription_audit (
			subscription_id, action, performed_by_user_id,
			old_status, new_status,
			old_start_date, old_end_date, new_start_date, new_end_date,
			note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		entry.SubscriptionID, entry.Action, entry.PerformedByUserID,
		entry.OldStatus, entry.NewStatus,
		entry.OldStartDate, entry.OldEndDate, entry.NewStartDate, entry.NewEndDate,
		entry.Note, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

// ListForSubscription retrieves the audit trail of one subscription, newest
// first.
func (l *DBLogger) ListForSubscription(ctx context.Context, subscriptionID int64, limit int) ([]*Entry, error) {
	query := `
		SELECT id, subscription_id, action, performed_by_user_id,
		       old_status, new_status,
		       old_start_date, old_end_date, new_start_date, new_end_date,
		       note, created_at
		FROM institution_subscription_audit
		WHERE subscription_id = $1
		ORDER BY id DESC
		LIMIT $2
	`
	rows, err := l.db.QueryContext(ctx, query, subscriptionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		var note sql.NullString
		if err := rows.Scan(
			&entry.ID, &entry.SubscriptionID, &entry.Action, &entry.PerformedByUserID,
			&entry.OldStatus, &entry.NewStatus,
			&entry.OldStartDate, &entry.OldEndDate, &entry.NewStartDate, &entry.NewEndDate,
			&note, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if note.Valid {
			entry.Note = note.String
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	return entries, nil
}
