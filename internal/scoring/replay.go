package scoring

import (
	"context"
	"fmt"

	"leadflow/internal/customer"
	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/store"
)

// ReplayReport compares a customer's stored score with the sum of the deltas
// stamped on its ledger entries. Drift is stored minus replayed; adjustments
// applied through ApplySignals without a ledger entry show up as drift.
type ReplayReport struct {
	CustomerID    int64          `json:"customerId"`
	Entries       int            `json:"entries"`
	StoredScore   int            `json:"storedScore"`
	StoredLevel   customer.Level `json:"storedLevel"`
	ReplayedScore int            `json:"replayedScore"`
	ReplayedLevel customer.Level `json:"replayedLevel"`
	Drift         int            `json:"drift"`
}

// Consistent reports whether replay reproduced the stored state.
func (r ReplayReport) Consistent() bool {
	return r.Drift == 0 && r.StoredLevel == r.ReplayedLevel
}

// Replay recomputes a customer's score from the ledger without mutating it.
func (e *Engine) Replay(ctx context.Context, customerID int64) (ReplayReport, error) {
	q := e.db.DB()
	c, err := customer.Load(ctx, q, customerID)
	if err != nil {
		return ReplayReport{}, err
	}
	entries, err := ledger.ScoredEntries(ctx, q, customerID)
	if err != nil {
		return ReplayReport{}, err
	}
	score := 0
	for _, entry := range entries {
		score += entry.ScoreDelta
	}
	report := ReplayReport{
		CustomerID:    customerID,
		Entries:       len(entries),
		StoredScore:   c.IntentScore,
		StoredLevel:   c.IntentLevel,
		ReplayedScore: score,
		ReplayedLevel: e.rules.Level(score),
		Drift:         c.IntentScore - score,
	}
	if !report.Consistent() {
		logging.WarnWithContext(e.logger, "intent score drift detected", "score_drift",
			logging.CustomerID(customerID),
			logging.Int("stored_score", report.StoredScore),
			logging.Int("replayed_score", report.ReplayedScore),
			logging.String(logging.FieldErrorHint, "check for manual adjustments outside the ledger"),
			logging.String(logging.FieldImpact, "stored score left unchanged"),
		)
	}
	return report, nil
}

// Relevel rewrites levels that no longer match the active thresholds, which
// happens after the thresholds change between loads. Scores are untouched and
// no notification is raised: the customer did nothing to cross a level. It
// returns the number of customers updated.
func (e *Engine) Relevel(ctx context.Context) (int, error) {
	rows, err := e.db.DB().QueryContext(ctx, `SELECT id, intent_score, intent_level FROM customers`)
	if err != nil {
		return 0, fmt.Errorf("scan customer levels: %w", err)
	}
	var stale []int64
	for rows.Next() {
		var (
			id    int64
			score int
			level string
		)
		if err := rows.Scan(&id, &score, &level); err != nil {
			rows.Close()
			return 0, err
		}
		if customer.Level(level) != e.rules.Level(score) {
			stale = append(stale, id)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	updated := 0
	for _, id := range stale {
		if err := e.relevel(ctx, id); err != nil {
			return updated, err
		}
		updated++
	}
	if updated > 0 {
		e.logger.Info("customer levels recomputed",
			logging.Int("updated", updated),
			logging.RulesVersion(e.rules.Version),
		)
	}
	return updated, nil
}

func (e *Engine) relevel(ctx context.Context, customerID int64) error {
	unlock := e.locks.lock(customerID)
	defer unlock()
	return e.db.WithTx(ctx, func(q store.Querier) error {
		c, err := customer.Load(ctx, q, customerID)
		if err != nil {
			return err
		}
		next := e.rules.Level(c.IntentScore)
		if next == c.IntentLevel {
			return nil
		}
		if _, err := q.ExecContext(ctx,
			`UPDATE customers SET intent_level = ?, updated_at = ? WHERE id = ?`,
			next, store.Now(), customerID,
		); err != nil {
			return fmt.Errorf("relevel customer %d: %w", customerID, err)
		}
		return nil
	})
}
