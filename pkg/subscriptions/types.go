package subscriptions

import "time"

// Status represents the lifecycle state of an institution subscription
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusSuspended Status = "suspended"
)

// Subscription represents one institution's subscription to a content
// product. Multiple historical rows may exist per (institution, product)
// pair; the row with the highest id is authoritative.
type Subscription struct {
	ID               int64     `json:"id"`
	InstitutionID    int64     `json:"institution_id"`
	ContentProductID int64     `json:"content_product_id"`
	Status           Status    `json:"status"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ValidAt reports whether the subscription grants access at the given
// instant: active and inside the half-open window [start, end). A suspended
// subscription is never valid regardless of its dates.
func (s *Subscription) ValidAt(now time.Time) bool {
	return s.Status == StatusActive && !now.Before(s.StartDate) && now.Before(s.EndDate)
}

// DeriveStatus computes the status a subscription's dates imply at the given
// instant. It is pure and total: every (start, end, now) maps to exactly one
// of pending, active, expired, and it never yields suspended. The lifecycle
// reconciler is the only caller that writes its result back.
func DeriveStatus(start, end, now time.Time) Status {
	if now.Before(start) {
		return StatusPending
	}
	if !now.Before(end) {
		return StatusExpired
	}
	return StatusActive
}
