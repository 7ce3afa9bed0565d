// Package audit provides an append-only fact log for institution
// subscription changes.
//
// Every automatic status rewrite by the lifecycle reconciler produces exactly
// one entry with a NULL performed_by_user_id; operator actions (suspend,
// resume) carry the acting user. Entries snapshot the full old and new
// (status, start, end) so the trail stands on its own without joining back to
// the mutable subscription row.
package audit
