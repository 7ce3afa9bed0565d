// Package postgres provides the PostgreSQL connection manager and schema
// bootstrap for the entitlement store. The store must support SERIALIZABLE
// transactions; the seat guard depends on that isolation level for
// race-free quota enforcement.
package postgres
