// Package workers is the registry of worker roles.
//
// Roles form a closed set. Each has one registry row carrying its availability
// (available, busy, offline), the task it is currently bound to and its daily
// and lifetime completion counters. Several tasks of one role may be in flight
// at once; the row binds the oldest of them and rebinds when that task leaves
// processing. Bind, Release and RecordCompletion are meant to run inside the
// dispatcher's transaction.
package workers
