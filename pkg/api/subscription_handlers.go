package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/dochieno/lawafrica-entitlements/pkg/audit"
	"github.com/dochieno/lawafrica-entitlements/pkg/httputil"
)

// lifecycleRequest carries the acting operator for a manual transition
type lifecycleRequest struct {
	PerformedByUserID int64  `json:"performed_by_user_id"`
	Note              string `json:"note,omitempty"`
}

// GetSubscription returns a subscription by id
func (s *Server) GetSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	sub, err := s.subscriptions.GetSubscription(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		s.logger.WithError(err).Error("failed to get subscription")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, sub)
}

// SuspendSubscription suspends a subscription on behalf of an operator
func (s *Server) SuspendSubscription(w http.ResponseWriter, r *http.Request) {
	s.manualTransition(w, r, s.subscriptions.Suspend)
}

// ResumeSubscription takes a subscription out of suspension; its new status
// derives from its dates
func (s *Server) ResumeSubscription(w http.ResponseWriter, r *http.Request) {
	s.manualTransition(w, r, s.subscriptions.Resume)
}

func (s *Server) manualTransition(w http.ResponseWriter, r *http.Request, transition func(ctx context.Context, id, performedByUserID int64, note string) error) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req lifecycleRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.PerformedByUserID <= 0 {
		httputil.WriteBadRequest(w, "performed_by_user_id is required")
		return
	}

	if err := transition(r.Context(), id, req.PerformedByUserID, req.Note); err != nil {
		if strings.Contains(err.Error(), "not found") {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		s.logger.WithError(err).Error("failed to apply subscription transition")
		httputil.WriteInternalError(w, err)
		return
	}

	sub, err := s.subscriptions.GetSubscription(r.Context(), id)
	if err != nil {
		s.logger.WithError(err).Error("failed to reload subscription after transition")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, sub)
}

// ListSubscriptionAudit returns the audit trail of a subscription, newest
// first. The "limit" query parameter caps the page size at 500.
func (s *Server) ListSubscriptionAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	entries, err := s.audit.ListForSubscription(r.Context(), id, limit)
	if err != nil {
		s.logger.WithError(err).Error("failed to list subscription audit")
		httputil.WriteInternalError(w, err)
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}

	httputil.WriteSuccess(w, entries)
}
