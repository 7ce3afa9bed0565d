// Package subscriptions manages institution product subscriptions and their
// time-driven lifecycle.
//
// # State machine
//
// A subscription is pending before its start date, active inside the
// half-open window [start, end), and expired from the end date on.
// DeriveStatus is the single source of automatic transitions among those
// three states; it is pure and idempotent, so re-running the reconciler when
// no time has passed is a no-op. Suspended is a manual-only state entered and
// exited by operators through Suspend and Resume; the reconciler filters it
// out of every candidate query and never assigns it.
//
// # Reconciler
//
// The Reconciler runs as a background loop, scanning drift candidates with
// id-cursor pagination (correct under concurrent inserts, unlike offset
// pagination), rewriting each drifted row, and appending one audit fact per
// rewrite. Each batch commits in its own transaction. Cycle failures are
// logged, never fatal.
package subscriptions
