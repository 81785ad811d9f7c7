// Package logging assembles structured slog loggers and formatting helpers used
// across leadflow components.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so dispatcher and scoring code can tag log
// lines with task IDs, customer IDs, worker roles and correlation IDs. Console
// output is colored only when the destination is a terminal. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
