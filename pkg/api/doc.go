// Package api provides the HTTP REST API for the LawAfrica entitlement engine.
//
// # Overview
//
// This package exposes access resolution, seat usage, membership approval,
// and subscription lifecycle operations as RESTful endpoints. Handlers are
// thin: they parse, delegate to the domain services, and map domain errors to
// status codes (seat limit rejections become 409, unknown resources 404).
//
// # Usage Example
//
//	server := api.NewServer(logger, metrics, institutionService, resolver, subscriptionStore, auditLogger)
//	http.ListenAndServe(":8080", server.Handler())
//
// Routes are versioned under /v1:
//
//   - GET  /v1/institutions/{id}                                  institution details
//   - GET  /v1/institutions/{id}/seats                            seat usage per bucket
//   - GET  /v1/institutions/{id}/members                          membership listing
//   - POST /v1/institutions/{id}/members/{user_id}/approve        seat-guarded approval
//   - GET  /v1/institutions/{id}/products/{product_id}/access     entitlement resolution
//   - POST /v1/subscriptions/{id}/suspend                         manual suspension
//   - POST /v1/subscriptions/{id}/resume                          manual resume
//   - GET  /v1/subscriptions/{id}/audit                           audit trail
package api
