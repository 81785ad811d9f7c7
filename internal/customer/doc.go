// Package customer stores prospect records: contact fields, owner, follow-up
// schedule, interaction counters and the current intent score and level.
//
// Only the scoring engine writes intent_score and intent_level, and it always
// writes both together. Customers are never deleted; Deactivate hides them from
// active listings and stops further scoring.
package customer
