// Package orchestrator drives print orders through their lifecycle: payment
// confirmation, document generation, vendor submission, and periodic
// reconciliation of in-flight jobs.
//
// Every mutation of an order goes through the store's compare-and-set
// transitions, so duplicate triggers (a replayed webhook, overlapping
// sweeps) resolve to a single winner instead of corrupting state. Failures
// land the order in failed with the raw reason preserved for support.
package orchestrator
