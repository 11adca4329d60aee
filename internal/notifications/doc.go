// Package notifications delivers order lifecycle events via pluggable
// notifiers.
//
// The default implementation publishes to ntfy using the endpoint configured
// in config.toml and gracefully degrades to a no-op when notifications are
// disabled. Each meaningful status change (submitted, shipped, delivered,
// failed) has its own method so callers emit consistent messages without
// duplicating HTTP glue.
//
// Extend this package if you need alternative transports; orchestration code
// depends only on the simple Service interface.
package notifications
