package api

import (
	"context"
	"database/sql"
	"net/http"
	"strings"

	"github.com/dochieno/lawafrica-entitlements/pkg/httputil"
	"github.com/dochieno/lawafrica-entitlements/pkg/institutions"
)

// maxApproveAttempts bounds the serialization-abort retry loop around a
// seat-guarded approval.
const maxApproveAttempts = 3

// GetInstitution returns an institution by id
func (s *Server) GetInstitution(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	inst, err := s.institutions.GetInstitution(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		s.logger.WithError(err).Error("failed to get institution")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, inst)
}

// GetSeatUsage returns seat consumption against limits for an institution
func (s *Server) GetSeatUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	usage, err := s.institutions.GetSeatUsage(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		s.logger.WithError(err).Error("failed to get seat usage")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, usage)
}

// ListMembers returns all memberships of an institution
func (s *Server) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	members, err := s.institutions.ListMembers(r.Context(), id)
	if err != nil {
		s.logger.WithError(err).Error("failed to list members")
		httputil.WriteInternalError(w, err)
		return
	}
	if members == nil {
		members = []*institutions.Membership{}
	}

	httputil.WriteSuccess(w, members)
}

// GetMembership returns one user's membership in an institution
func (s *Server) GetMembership(w http.ResponseWriter, r *http.Request) {
	institutionID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	membership, err := s.institutions.GetMembership(r.Context(), institutionID, userID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		s.logger.WithError(err).Error("failed to get membership")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, membership)
}

// ApproveMembership approves a pending membership under seat enforcement.
// Returns 409 when the bucket is full. Serialization aborts from concurrent
// approvals are retried a bounded number of times before surfacing as 503.
func (s *Server) ApproveMembership(w http.ResponseWriter, r *http.Request) {
	institutionID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	membership, err := s.institutions.GetMembership(r.Context(), institutionID, userID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		s.logger.WithError(err).Error("failed to get membership")
		httputil.WriteInternalError(w, err)
		return
	}

	if membership.ConsumesSeat() {
		httputil.WriteSuccess(w, membership)
		return
	}

	for attempt := 0; attempt < maxApproveAttempts; attempt++ {
		err = s.institutions.ExecuteWithSeatEnforcement(r.Context(), institutionID, membership.MemberType,
			func(ctx context.Context, tx *sql.Tx) error {
				_, execErr := tx.ExecContext(ctx, `
					UPDATE institution_memberships
					SET status = 'approved', is_active = true, updated_at = NOW()
					WHERE institution_id = $1 AND user_id = $2
				`, institutionID, userID)
				return execErr
			})
		if err == nil || !institutions.IsSerializationFailure(err) {
			break
		}
		if s.metrics != nil {
			s.metrics.SerializationAborts.Inc()
		}
	}

	switch {
	case err == nil:
		if s.metrics != nil {
			s.metrics.SeatChecksTotal.WithLabelValues("allowed").Inc()
		}
	case institutions.IsSeatLimitExceeded(err):
		if s.metrics != nil {
			s.metrics.SeatChecksTotal.WithLabelValues("rejected").Inc()
			s.metrics.SeatRejectionsTotal.WithLabelValues(string(institutions.BucketFor(membership.MemberType))).Inc()
		}
		httputil.WriteConflict(w, err.Error())
		return
	case institutions.IsSerializationFailure(err):
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "concurrent seat contention, retry the request")
		return
	default:
		s.logger.WithError(err).Error("failed to approve membership")
		httputil.WriteInternalError(w, err)
		return
	}

	approved, err := s.institutions.GetMembership(r.Context(), institutionID, userID)
	if err != nil {
		s.logger.WithError(err).Error("failed to reload membership after approval")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, approved)
}
