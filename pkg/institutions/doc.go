// Package institutions manages institutions, their memberships, and seat
// capacity enforcement.
//
// # Overview
//
// An institution buys a finite number of seats per bucket (student and
// staff). A membership consumes a seat only while it is approved and active.
// The seat capacity guard gates membership approval, reactivation, and
// member-type changes so that concurrent approvals can never over-allocate a
// bucket.
//
// # Concurrency
//
// Correctness does not rely on in-process locking. ExecuteWithSeatEnforcement
// re-checks capacity inside a SERIALIZABLE transaction and lets PostgreSQL
// abort one of any two conflicting commits, so the guarantee holds across
// horizontally-scaled instances. Serialization failures propagate to the
// caller unchanged; retry policy is a caller decision (see
// IsSerializationFailure).
//
// # Usage Example
//
// Approve a pending membership under seat enforcement:
//
//	err := svc.ExecuteWithSeatEnforcement(ctx, instID, institutions.MemberTypeStudent,
//		func(ctx context.Context, tx *sql.Tx) error {
//			_, err := tx.ExecContext(ctx,
//				`UPDATE institution_memberships SET status = 'approved', is_active = true WHERE id = $1`,
//				membershipID)
//			return err
//		})
//	if institutions.IsSeatLimitExceeded(err) {
//		// surface as a client-facing conflict
//	}
//
// # Related Packages
//
//   - pkg/entitlements: product access resolution
//   - pkg/subscriptions: subscription lifecycle
package institutions
