// Package store owns the SQLite database shared by every leadflow component.
//
// A Store wraps one *sql.DB capped at a single connection. Components either
// issue reads through DB() or compose their writes inside WithTx, which hands
// the callback a Querier bound to the transaction so the dispatcher, registry,
// scoring engine and notification trigger can commit together. Contention from
// other processes (the CLI next to a running daemon) surfaces as SQLITE_BUSY and
// is absorbed by a short exponential backoff.
//
// Timestamps are stored as fixed-width UTC text so range predicates such as the
// stale-claim cutoff compare correctly. Schema changes ship as new files under
// migrations/; Open applies the ones a database has not seen yet and refuses a
// database written by a newer build.
package store
