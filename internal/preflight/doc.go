// Package preflight provides readiness checks for the filesystem paths,
// database, and notification sink that leadflow depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failing check before
//     it begins reclaiming tasks and relaying notifications.
//   - The CLI "leadflow status" command renders the same results as a table.
//
// Sink checks only run for the sink selected in notifications.sink.
package preflight
