// Package services defines shared utilities consumed by the dispatcher, the
// scoring engine, and worker handlers.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, customer IDs, worker roles, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures as
//     invalid input, transient, permanent, stale claims, or unknown signals.
//
// Use these helpers when wiring new worker logic so operational behaviour (error
// handling, observability, retries) stays uniform across the system.
package services
