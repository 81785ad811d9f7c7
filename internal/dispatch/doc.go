// Package dispatch owns the shared task queue that worker roles claim from.
//
// Tasks move pending -> processing -> completed, failed or cancelled. A failed
// attempt re-enters pending while retries remain and each re-entry consumes
// one retry, so a task with retry limit N reaches terminal failure on its
// N+1th failure. Causes marked permanent skip the remaining retries.
//
// Claims pick the pending task with the lowest priority number for the role,
// breaking ties by creation order. This is a strict priority queue: a steady
// supply of high-priority work starves lower priorities indefinitely. Callers
// that need fairness must manage priorities themselves; the dispatcher does
// not age tasks.
//
// Tasks form a tree through parent ids. A parent whose worker completes it
// while children are still open is parked: it stays processing, is no longer
// bound to its role and is exempt from stale reclaim. When the last child
// reaches a terminal state the parent settles, failing with the first failed
// child's error if any child failed. Cancelling a task cancels its open
// descendants.
//
// Every transition runs in one SQLite transaction together with the worker
// registry update and any notification it raises. Workers that stop sending
// heartbeats have their tasks reclaimed by ReclaimStale, which counts as an
// ordinary retryable failure.
package dispatch
