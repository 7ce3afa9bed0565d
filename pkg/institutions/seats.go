package institutions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// GetSeatUsage counts seat-consuming memberships per bucket for display
// purposes. It runs outside any transaction; enforcement paths recompute
// usage inside their own transaction.
func (s *PostgresService) GetSeatUsage(ctx context.Context, institutionID int64) (*SeatUsage, error) {
	return s.seatUsage(ctx, s.db, institutionID)
}

// seatUsage computes seat usage through q so it can join an open transaction.
func (s *PostgresService) seatUsage(ctx context.Context, q Querier, institutionID int64) (*SeatUsage, error) {
	usage := &SeatUsage{InstitutionID: institutionID}

	query := `SELECT max_student_seats, max_staff_seats FROM institutions WHERE id = $1`
	err := q.QueryRowContext(ctx, query, institutionID).Scan(&usage.MaxStudent, &usage.MaxStaff)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("institution not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get seat limits: %w", err)
	}

	// A membership consumes a seat iff approved and active. Counts come back
	// per member type and fold through the canonical bucket mapping.
	query = `
		SELECT member_type, COUNT(*)
		FROM institution_memberships
		WHERE institution_id = $1 AND status = $2 AND is_active = true
		GROUP BY member_type
	`
	rows, err := q.QueryContext(ctx, query, institutionID, MembershipStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to count seat usage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var memberType MemberType
		var count int
		if err := rows.Scan(&memberType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan seat usage: %w", err)
		}
		switch BucketFor(memberType) {
		case SeatBucketStudent:
			usage.UsedStudent += count
		case SeatBucketStaff:
			usage.UsedStaff += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count seat usage: %w", err)
	}

	return usage, nil
}

// enforced reports whether a bucket limit is enforced at all.
func (s *PostgresService) enforced(max int) bool {
	if max <= 0 {
		return !s.unlimitedWhenZero
	}
	return true
}

// EnsureCanConsumeSeatForNewMembership checks whether one more seat of the
// requested type fits the institution's quota. Returns
// *SeatLimitExceededError when the bucket is full; the caller surfaces that
// as a client-facing conflict.
func (s *PostgresService) EnsureCanConsumeSeatForNewMembership(ctx context.Context, q Querier, institutionID int64, requested MemberType) error {
	usage, err := s.seatUsage(ctx, q, institutionID)
	if err != nil {
		return err
	}

	bucket := BucketFor(requested)
	if bucket == "" {
		return nil
	}

	used, max := usage.Bucket(bucket)
	if s.enforced(max) && used+1 > max {
		return &SeatLimitExceededError{
			InstitutionID: institutionID,
			RequestedType: requested,
			Usage:         usage,
		}
	}

	return nil
}

// EnsureCanChangeMemberType checks whether re-typing a member keeps every
// bucket within quota. Decreases and lateral moves are always allowed; only a
// positive bucket delta that overflows its limit blocks.
func (s *PostgresService) EnsureCanChangeMemberType(ctx context.Context, q Querier, institutionID int64, from, to MemberType, consumingSeat bool) error {
	if !consumingSeat {
		return nil
	}

	fromBucket := BucketFor(from)
	toBucket := BucketFor(to)
	if fromBucket == toBucket {
		return nil
	}

	usage, err := s.seatUsage(ctx, q, institutionID)
	if err != nil {
		return err
	}

	// Only the destination bucket can gain a seat; the source bucket delta is
	// always -1 or 0 and never blocks.
	if toBucket != "" {
		used, max := usage.Bucket(toBucket)
		if s.enforced(max) && used+1 > max {
			return &SeatLimitExceededError{
				InstitutionID: institutionID,
				RequestedType: to,
				Usage:         usage,
			}
		}
	}

	return nil
}

// ExecuteWithSeatEnforcement is the canonical guard around a seat-consuming
// membership mutation. It opens a SERIALIZABLE transaction, re-checks
// capacity inside it, runs mutate, and commits. On any failure the deferred
// rollback releases the transaction and the error propagates unchanged,
// including serialization aborts (retry policy belongs to the caller).
func (s *PostgresService) ExecuteWithSeatEnforcement(ctx context.Context, institutionID int64, memberType MemberType, mutate func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.EnsureCanConsumeSeatForNewMembership(ctx, tx, institutionID, memberType); err != nil {
		return err
	}

	if err := mutate(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seat-enforced mutation: %w", err)
	}

	return nil
}

// IsSerializationFailure reports whether err is a PostgreSQL serialization
// abort (SQLSTATE 40001), the signal that a conflicting concurrent
// transaction won. Callers typically retry these with bounded backoff.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001"
	}
	return false
}
