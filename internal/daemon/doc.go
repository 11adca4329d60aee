// Package daemon runs the long-lived bindery process: the HTTP API that
// receives payment webhooks, the periodic reconciliation scheduler, and
// single-instance locking. All order work is delegated to the orchestrator.
package daemon
