// Package orders persists print orders in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, and the status transitions that mirror the public order enum.
// Status changes go through compare-and-set updates keyed on the current
// status, so the single-writer-per-order rule holds across concurrent
// triggers and process restarts without in-memory locks.
//
// Treat this package as the single source of truth for order semantics;
// when you add new statuses or fields, update schema.sql and bump
// schemaVersion.
package orders
