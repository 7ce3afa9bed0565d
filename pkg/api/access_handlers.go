package api

import (
	"net/http"

	"github.com/dochieno/lawafrica-entitlements/pkg/httputil"
)

// CheckAccess resolves whether an institution may access a content product.
// The optional "at" query parameter (RFC 3339) resolves access at a past or
// future instant; it defaults to now.
func (s *Server) CheckAccess(w http.ResponseWriter, r *http.Request) {
	institutionID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	productID, ok := httputil.ParsePathInt64OrError(w, r, "product_id")
	if !ok {
		return
	}
	asOf, err := httputil.ParseQueryTime(r, "at")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, err := s.resolver.CheckAccess(r.Context(), institutionID, productID, asOf)
	if err != nil {
		s.logger.WithError(err).Error("failed to resolve access")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}
