// Package notify raises and delivers notifications.
//
// The Trigger decides, inside the caller's transaction, whether a score change
// or task completion deserves a notification: only upward level crossings,
// at most once per customer and level, and completions of configured task
// kinds. Notifications are rows in an outbox table. The Relay drains the outbox
// to a Sink (structured log, ntfy, or Kafka) at a configured rate and records
// delivery attempts; the read flag is left to whoever presents notifications.
package notify
