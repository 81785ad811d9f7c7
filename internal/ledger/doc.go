// Package ledger is the append-only record of conversation messages.
//
// Entries capture the customer, session, worker role, direction, content and
// the signals recognized in the message. The ledger never computes score
// deltas; the scoring engine stamps score_delta and scored_at exactly once per
// entry, which is the only mutation an entry ever sees.
package ledger
