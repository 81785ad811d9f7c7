package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"leadflow/internal/customer"
	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/notify"
	"leadflow/internal/services"
	"leadflow/internal/store"
)

// maxWriteAttempts bounds optimistic retries when the stored score moved
// between read and write.
const maxWriteAttempts = 3

var errScoreConflict = errors.New("intent score changed concurrently")

// Result describes one score mutation. Replayed is set when ScoreEntry found
// the entry already scored and returned the stored delta without applying it.
type Result struct {
	CustomerID    int64                `json:"customerId"`
	EntryID       int64                `json:"entryId,omitempty"`
	PreviousScore int                  `json:"previousScore"`
	NewScore      int                  `json:"newScore"`
	PreviousLevel customer.Level       `json:"previousLevel"`
	NewLevel      customer.Level       `json:"newLevel"`
	Delta         int                  `json:"delta"`
	Applied       []string             `json:"applied,omitempty"`
	Unknown       []string             `json:"unknown,omitempty"`
	Replayed      bool                 `json:"replayed,omitempty"`
	Notification  *notify.Notification `json:"notification,omitempty"`
}

// Crossed reports whether the level changed.
func (r Result) Crossed() bool {
	return r.NewLevel != r.PreviousLevel
}

// Engine maintains customer intent scores and levels.
type Engine struct {
	db      *store.Store
	rules   Rules
	trigger *notify.Trigger
	locks   *customerLocks
	logger  *slog.Logger
}

// NewEngine builds an engine over one rule snapshot. trigger may be nil, in
// which case level crossings are logged but not notified.
func NewEngine(st *store.Store, rules Rules, trigger *notify.Trigger, logger *slog.Logger) *Engine {
	e := &Engine{
		db:      st,
		rules:   rules,
		trigger: trigger,
		locks:   newCustomerLocks(),
		logger:  logging.NewComponentLogger(logger, "scoring"),
	}
	if extra := rules.Unrecognized(); len(extra) > 0 {
		logging.WarnWithContext(e.logger, "scoring rules define signals outside the builtin vocabulary", "unknown_signal",
			logging.RulesVersion(rules.Version),
			logging.Strings("signals", extra),
			logging.String(logging.FieldErrorHint, "confirm the recognizer emits these keys"),
			logging.String(logging.FieldImpact, "signals are scored as configured"),
		)
	}
	return e
}

// Rules returns the active snapshot.
func (e *Engine) Rules() Rules {
	return e.rules
}

// ApplySignals adds the net delta of one interaction's signals to a customer's
// score and recomputes the level in the same transaction.
func (e *Engine) ApplySignals(ctx context.Context, customerID int64, signals []string) (Result, error) {
	if customerID <= 0 {
		return Result{}, services.Invalid("scoring", "apply signals", "customer id required")
	}
	normalized := ledger.NormalizeSignals(signals)

	unlock := e.locks.lock(customerID)
	defer unlock()

	var result Result
	err := e.withRetry(ctx, func(q store.Querier) error {
		var err error
		result, err = e.apply(ctx, q, customerID, normalized)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	e.report(ctx, result)
	return result, nil
}

// ScoreEntry applies a ledger entry's recorded signals and stamps the entry
// with the applied delta. Scoring an entry twice returns the stored delta and
// leaves the score untouched.
func (e *Engine) ScoreEntry(ctx context.Context, entryID int64) (Result, error) {
	entry, err := ledger.Load(ctx, e.db.DB(), entryID)
	if err != nil {
		return Result{}, err
	}

	unlock := e.locks.lock(entry.CustomerID)
	defer unlock()

	var result Result
	err = e.withRetry(ctx, func(q store.Querier) error {
		current, err := ledger.Load(ctx, q, entryID)
		if err != nil {
			return err
		}
		if current.Scored() {
			c, err := customer.Load(ctx, q, current.CustomerID)
			if err != nil {
				return err
			}
			result = Result{
				CustomerID:    c.ID,
				EntryID:       current.ID,
				PreviousScore: c.IntentScore,
				NewScore:      c.IntentScore,
				PreviousLevel: c.IntentLevel,
				NewLevel:      c.IntentLevel,
				Delta:         current.ScoreDelta,
				Replayed:      true,
			}
			return nil
		}
		result, err = e.apply(ctx, q, current.CustomerID, current.Signals)
		if err != nil {
			return err
		}
		result.EntryID = current.ID
		stamped, err := ledger.StampScore(ctx, q, current.ID, result.Delta, time.Now().UTC())
		if err != nil {
			return err
		}
		if !stamped {
			return errScoreConflict
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if !result.Replayed {
		e.report(ctx, result)
	}
	return result, nil
}

func (e *Engine) withRetry(ctx context.Context, fn func(q store.Querier) error) error {
	var err error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		err = e.db.WithTx(ctx, fn)
		if !errors.Is(err, errScoreConflict) {
			return err
		}
	}
	return services.Wrap(services.ErrTransient, "scoring", "write score", "retries exhausted", err)
}

// apply is the single read-modify-write of a customer's score. The level is
// derived from the new score before the write, never afterwards.
func (e *Engine) apply(ctx context.Context, q store.Querier, customerID int64, signals []string) (Result, error) {
	c, err := customer.Load(ctx, q, customerID)
	if err != nil {
		return Result{}, err
	}

	delta, applied, unknown := e.rules.Evaluate(signals)
	next := c.IntentScore + delta
	result := Result{
		CustomerID:    customerID,
		PreviousScore: c.IntentScore,
		NewScore:      next,
		PreviousLevel: c.IntentLevel,
		NewLevel:      e.rules.Level(next),
		Delta:         delta,
		Applied:       applied,
		Unknown:       unknown,
	}
	if len(applied) == 0 && result.NewLevel == c.IntentLevel {
		return result, nil
	}

	res, err := q.ExecContext(ctx,
		`UPDATE customers SET intent_score = ?, intent_level = ?, updated_at = ? WHERE id = ? AND intent_score = ?`,
		result.NewScore, result.NewLevel, store.Now(), customerID, c.IntentScore,
	)
	if err != nil {
		return Result{}, fmt.Errorf("update intent score: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Result{}, errScoreConflict
	}

	if e.trigger != nil && result.NewLevel.Above(result.PreviousLevel) {
		result.Notification, err = e.trigger.LevelCrossed(ctx, q, customerID, result.PreviousLevel, result.NewLevel)
		if err != nil {
			return Result{}, err
		}
	}
	return result, nil
}

func (e *Engine) report(ctx context.Context, result Result) {
	logger := logging.WithContext(ctx, e.logger)
	if len(result.Unknown) > 0 {
		logging.WarnWithContext(logger, "unknown signals ignored", "unknown_signal",
			logging.CustomerID(result.CustomerID),
			logging.Strings("signals", result.Unknown),
			logging.String(logging.FieldErrorKind, services.Kind(services.ErrUnknownSignal)),
			logging.String(logging.FieldErrorHint, "add the signal to scoring.signals or fix the recognizer"),
			logging.String(logging.FieldImpact, "signal contributed zero to the intent score"),
		)
	}
	if result.Crossed() {
		logger.Info("intent level changed",
			logging.CustomerID(result.CustomerID),
			logging.String("previous_level", string(result.PreviousLevel)),
			logging.String("new_level", string(result.NewLevel)),
			logging.Int("score", result.NewScore),
		)
		return
	}
	logger.Debug("intent score updated",
		logging.CustomerID(result.CustomerID),
		logging.Int("delta", result.Delta),
		logging.Int("score", result.NewScore),
	)
}
