package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dochieno/lawafrica-entitlements/pkg/audit"
	"github.com/dochieno/lawafrica-entitlements/pkg/entitlements"
	"github.com/dochieno/lawafrica-entitlements/pkg/httputil"
	"github.com/dochieno/lawafrica-entitlements/pkg/institutions"
	"github.com/dochieno/lawafrica-entitlements/pkg/observability"
	"github.com/dochieno/lawafrica-entitlements/pkg/subscriptions"
)

// Server wires the entitlement services into an HTTP API
type Server struct {
	router        *mux.Router
	logger        *observability.Logger
	metrics       *observability.Metrics
	institutions  *institutions.PostgresService
	resolver      *entitlements.AccessResolver
	subscriptions *subscriptions.PostgresStore
	audit         *audit.DBLogger
}

// NewServer creates the API server and registers all routes. metrics may be
// nil.
func NewServer(
	logger *observability.Logger,
	metrics *observability.Metrics,
	institutionService *institutions.PostgresService,
	resolver *entitlements.AccessResolver,
	subscriptionStore *subscriptions.PostgresStore,
	auditLogger *audit.DBLogger,
) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		logger:        logger,
		metrics:       metrics,
		institutions:  institutionService,
		resolver:      resolver,
		subscriptions: subscriptionStore,
		audit:         auditLogger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.router.PathPrefix("/v1").Subrouter()

	// Institutions and seats
	v1.HandleFunc("/institutions/{id}", s.GetInstitution).Methods("GET")
	v1.HandleFunc("/institutions/{id}/seats", s.GetSeatUsage).Methods("GET")
	v1.HandleFunc("/institutions/{id}/members", s.ListMembers).Methods("GET")
	v1.HandleFunc("/institutions/{id}/members/{user_id}", s.GetMembership).Methods("GET")
	v1.HandleFunc("/institutions/{id}/members/{user_id}/approve", s.ApproveMembership).Methods("POST")

	// Access resolution
	v1.HandleFunc("/institutions/{id}/products/{product_id}/access", s.CheckAccess).Methods("GET")

	// Subscription lifecycle
	v1.HandleFunc("/subscriptions/{id}", s.GetSubscription).Methods("GET")
	v1.HandleFunc("/subscriptions/{id}/suspend", s.SuspendSubscription).Methods("POST")
	v1.HandleFunc("/subscriptions/{id}/resume", s.ResumeSubscription).Methods("POST")
	v1.HandleFunc("/subscriptions/{id}/audit", s.ListSubscriptionAudit).Methods("GET")
}

// Handler returns the fully assembled handler chain.
func (s *Server) Handler() http.Handler {
	return httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(s.logger),
		httputil.LoggingMiddleware(s.logger),
	)(s.router)
}
