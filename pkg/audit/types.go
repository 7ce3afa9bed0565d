package audit

import "time"

// Action represents the category of subscription audit fact
type Action string

const (
	// ActionAutoStatusChanged records a status rewrite by the lifecycle
	// reconciler; performed_by_user_id is NULL for these.
	ActionAutoStatusChanged Action = "auto_status_changed"

	// Operator-initiated facts carry the acting user id.
	ActionManuallySuspended Action = "manually_suspended"
	ActionManuallyResumed   Action = "manually_resumed"
)

// Entry represents one immutable subscription audit fact. Statuses are kept
// as plain strings so the log stays readable even across enum churn.
type Entry struct {
	ID                int64     `json:"id"`
	SubscriptionID    int64     `json:"subscription_id"`
	Action            Action    `json:"action"`
	PerformedByUserID *int64    `json:"performed_by_user_id,omitempty"`
	OldStatus         string    `json:"old_status"`
	NewStatus         string    `json:"new_status"`
	OldStartDate      time.Time `json:"old_start_date"`
	OldEndDate        time.Time `json:"old_end_date"`
	NewStartDate      time.Time `json:"new_start_date"`
	NewEndDate        time.Time `json:"new_end_date"`
	Note              string    `json:"note,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
