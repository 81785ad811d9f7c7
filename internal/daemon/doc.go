// Package daemon coordinates the long-running leadflow process.
//
// It wires the shared store, the stale-claim reclaimer, the notification relay,
// and an optional in-process worker runner into a single lifecycle with
// flock-based locking to prevent multiple instances against one data
// directory. Startup runs preflight checks, records the active scoring rules,
// and recomputes levels that drifted after a threshold change.
//
// Keep orchestration logic here: dispatch, scoring, and delivery rules live in
// their own packages while the daemon focuses on startup, shutdown, and the
// periodic loops.
package daemon
