// Package worker executes dispatched tasks.
//
// A Runner owns one lane per registered role. Each lane claims a task, runs
// the role's Handler while sending heartbeats, and reports the outcome back
// to the dispatcher. Handlers stand in for the external generation and
// messaging providers.
package worker
