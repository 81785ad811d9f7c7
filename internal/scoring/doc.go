// Package scoring turns recognized conversation signals into a customer's
// intent score and level.
//
// Each interaction's signals are deduplicated and summed before they touch the
// score, so crossing detection sees only the net effect. The score is signed
// and unbounded. The level is recomputed from the new score inside the same
// transaction that writes it, and an upward crossing records its notification
// in that transaction too. Mutations for one customer are serialized by an
// in-process lock and guarded against lost updates by a compare-and-set on the
// stored score.
package scoring
