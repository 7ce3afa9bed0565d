package institutions

import (
	"fmt"
	"time"
)

// MemberType represents the kind of member an institution membership grants
type MemberType string

const (
	MemberTypeStudent          MemberType = "student"
	MemberTypeStaff            MemberType = "staff"
	MemberTypeInstitutionAdmin MemberType = "institution_admin"
)

// MembershipStatus represents the approval state of a membership
type MembershipStatus string

const (
	MembershipStatusPendingApproval MembershipStatus = "pending_approval"
	MembershipStatusApproved        MembershipStatus = "approved"
	MembershipStatusRejected        MembershipStatus = "rejected"
	MembershipStatusRevoked         MembershipStatus = "revoked"
)

// SeatBucket represents the capacity bucket a member type counts against
type SeatBucket string

const (
	SeatBucketStudent SeatBucket = "student"
	SeatBucketStaff   SeatBucket = "staff"
)

// memberTypeBuckets is the canonical member-type-to-bucket mapping; every
// piece of seat math (usage reporting and enforcement alike) goes through it.
var memberTypeBuckets = map[MemberType]SeatBucket{
	MemberTypeStudent:          SeatBucketStudent,
	MemberTypeStaff:            SeatBucketStaff,
	MemberTypeInstitutionAdmin: SeatBucketStaff,
}

// BucketFor returns the seat bucket a member type counts against. Unknown
// member types consume no seat and map to the empty bucket.
func BucketFor(t MemberType) SeatBucket {
	return memberTypeBuckets[t]
}

// Institution represents an organization with purchased seat capacity
type Institution struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	MaxStudentSeats int       `json:"max_student_seats"`
	MaxStaffSeats   int       `json:"max_staff_seats"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Membership represents a user's membership in an institution
type Membership struct {
	ID            int64            `json:"id"`
	InstitutionID int64            `json:"institution_id"`
	UserID        int64            `json:"user_id"`
	MemberType    MemberType       `json:"member_type"`
	Status        MembershipStatus `json:"status"`
	IsActive      bool             `json:"is_active"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// ConsumesSeat reports whether the membership currently holds a seat.
func (m *Membership) ConsumesSeat() bool {
	return m.Status == MembershipStatusApproved && m.IsActive
}

// SeatUsage represents seat consumption against limits for an institution
type SeatUsage struct {
	InstitutionID int64 `json:"institution_id"`
	UsedStudent   int   `json:"used_student"`
	MaxStudent    int   `json:"max_student"`
	UsedStaff     int   `json:"used_staff"`
	MaxStaff      int   `json:"max_staff"`
}

// Bucket returns the used/max pair for a seat bucket.
func (u *SeatUsage) Bucket(b SeatBucket) (used, max int) {
	switch b {
	case SeatBucketStudent:
		return u.UsedStudent, u.MaxStudent
	case SeatBucketStaff:
		return u.UsedStaff, u.MaxStaff
	default:
		return 0, 0
	}
}

// SeatLimitExceededError represents a seat quota rejection
type SeatLimitExceededError struct {
	InstitutionID int64
	RequestedType MemberType
	Usage         *SeatUsage
}

func (e *SeatLimitExceededError) Error() string {
	used, max := e.Usage.Bucket(BucketFor(e.RequestedType))
	return fmt.Sprintf("seat limit exceeded for %s bucket (%d/%d) in institution %d",
		BucketFor(e.RequestedType), used, max, e.InstitutionID)
}

// IsSeatLimitExceeded checks if an error is a seat limit rejection
func IsSeatLimitExceeded(err error) bool {
	_, ok := err.(*SeatLimitExceededError)
	return ok
}
