package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"leadflow/internal/logging"
	"leadflow/internal/services"
	"leadflow/internal/store"
	"leadflow/internal/workers"
)

// Complete records a worker's successful result. A task whose children are
// still open is parked until the last child finishes; otherwise it settles
// immediately.
func (d *Dispatcher) Complete(ctx context.Context, id int64, output json.RawMessage) (*Task, error) {
	if len(output) > 0 && !json.Valid(output) {
		return nil, services.Invalid("dispatch", "complete", "output is not valid JSON")
	}

	var task *Task
	err := d.db.WithTx(ctx, func(q store.Querier) error {
		t, err := load(ctx, q, id)
		if err != nil {
			return err
		}
		if t.Status != StatusProcessing || t.AwaitingChildren {
			return invalidState("complete", t)
		}
		open, err := openChildren(ctx, q, t.ID)
		if err != nil {
			return err
		}
		if open > 0 {
			if _, err := q.ExecContext(ctx,
				`UPDATE tasks SET output = ?, awaiting_children = 1, last_heartbeat = NULL, updated_at = ? WHERE id = ?`,
				store.NullableString(string(output)), store.Now(), t.ID,
			); err != nil {
				return fmt.Errorf("park task %d: %w", t.ID, err)
			}
			if err := workers.Release(ctx, q, t.Role, t.ID); err != nil {
				return err
			}
			d.logger.Info("task parked until children finish",
				logging.TaskID(t.ID),
				logging.Role(string(t.Role)),
				logging.Int("open_children", open),
			)
		} else if err := d.settle(ctx, q, t, output); err != nil {
			return err
		}
		task, err = load(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Fail records a worker-reported failure. Retryable causes re-queue the task
// while retries remain; a cause wrapping services.ErrPermanent or
// services.ErrInvalidInput finalizes it at once.
func (d *Dispatcher) Fail(ctx context.Context, id int64, cause error) (*Task, error) {
	var task *Task
	err := d.db.WithTx(ctx, func(q store.Querier) error {
		t, err := load(ctx, q, id)
		if err != nil {
			return err
		}
		if t.Status != StatusProcessing || t.AwaitingChildren {
			return invalidState("fail", t)
		}
		if err := d.fail(ctx, q, t, cause); err != nil {
			return err
		}
		task, err = load(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (d *Dispatcher) fail(ctx context.Context, q store.Querier, t *Task, cause error) error {
	message := "unknown failure"
	if cause != nil {
		message = cause.Error()
	}
	now := store.Now()
	logger := d.logger.With(logging.TaskID(t.ID), logging.Role(string(t.Role)))

	if services.IsRetryable(cause) && t.RetryCount < t.RetryLimit {
		if _, err := q.ExecContext(ctx,
			`UPDATE tasks
             SET status = ?, retry_count = retry_count + 1, error_message = ?, last_heartbeat = NULL, updated_at = ?
             WHERE id = ?`,
			StatusPending, message, now, t.ID,
		); err != nil {
			return fmt.Errorf("requeue task %d: %w", t.ID, err)
		}
		if err := workers.Release(ctx, q, t.Role, t.ID); err != nil {
			return err
		}
		logging.WarnWithContext(logger, "task failed, re-queued", "task_retry",
			logging.Int("retry_count", t.RetryCount+1),
			logging.Int("retry_limit", t.RetryLimit),
			logging.String(logging.FieldErrorKind, services.Kind(cause)),
			logging.String(logging.FieldErrorHint, "the task will be claimed again"),
			logging.String("error_message", message),
		)
		return nil
	}

	if err := d.finalize(ctx, q, t, StatusFailed, nil, message); err != nil {
		return err
	}
	if _, err := d.cancelChildren(ctx, q, t.ID); err != nil {
		return err
	}
	logging.ErrorWithContext(logger, "task failed permanently", "task_failed",
		logging.Int("retry_count", t.RetryCount),
		logging.Int("retry_limit", t.RetryLimit),
		logging.String(logging.FieldErrorKind, services.Kind(cause)),
		logging.String(logging.FieldErrorHint, "inspect the task error and re-enqueue if appropriate"),
		logging.String("error_message", message),
	)
	return d.rollup(ctx, q, t.ParentID)
}

// Cancel stops a pending or processing task and every open task beneath it.
func (d *Dispatcher) Cancel(ctx context.Context, id int64) (*Task, error) {
	var (
		task      *Task
		cancelled int
	)
	err := d.db.WithTx(ctx, func(q store.Querier) error {
		t, err := load(ctx, q, id)
		if err != nil {
			return err
		}
		if t.Status.Terminal() {
			return invalidState("cancel", t)
		}
		if cancelled, err = d.cancelTree(ctx, q, t); err != nil {
			return err
		}
		if err := d.rollup(ctx, q, t.ParentID); err != nil {
			return err
		}
		task, err = load(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	d.logger.Info("task cancelled",
		logging.TaskID(task.ID),
		logging.Role(string(task.Role)),
		logging.Int("cancelled_total", cancelled),
	)
	return task, nil
}

// cancelTree cancels t and its open descendants without rolling up into t's
// parent. It returns the number of tasks cancelled.
func (d *Dispatcher) cancelTree(ctx context.Context, q store.Querier, t *Task) (int, error) {
	if err := d.finalize(ctx, q, t, StatusCancelled, nil, ""); err != nil {
		return 0, err
	}
	n, err := d.cancelChildren(ctx, q, t.ID)
	return n + 1, err
}

// cancelChildren cancels the open descendants of parentID. A parent that
// fails for good takes its open children with it.
func (d *Dispatcher) cancelChildren(ctx context.Context, q store.Querier, parentID int64) (int, error) {
	children, err := queryTasks(ctx, q,
		`SELECT `+taskColumns+` FROM tasks WHERE parent_id = ? AND status IN (?, ?) ORDER BY id`,
		parentID, StatusPending, StatusProcessing)
	if err != nil {
		return 0, err
	}
	total := 0
	for i := range children {
		n, err := d.cancelTree(ctx, q, &children[i])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Heartbeat refreshes the liveness timestamp of a task being worked on.
func (d *Dispatcher) Heartbeat(ctx context.Context, id int64) error {
	now := store.Now()
	res, err := d.db.Exec(ctx,
		`UPDATE tasks SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ? AND awaiting_children = 0`,
		now, now, id, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("heartbeat task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	t, err := d.Get(ctx, id)
	if err != nil {
		return err
	}
	return invalidState("heartbeat", t)
}

// ReclaimStale fails every processing task whose heartbeat is older than
// cutoff with a stale-claim error, which follows the normal retry rule.
// Parked parents are exempt. It returns the number of tasks reclaimed.
func (d *Dispatcher) ReclaimStale(ctx context.Context, cutoff time.Time) (int, error) {
	stamp := store.FormatTime(cutoff)
	candidates, err := queryTasks(ctx, d.db.DB(),
		`SELECT `+taskColumns+` FROM tasks
         WHERE status = ? AND awaiting_children = 0 AND COALESCE(last_heartbeat, started_at, updated_at) < ?
         ORDER BY id`,
		StatusProcessing, stamp)
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, candidate := range candidates {
		var stale bool
		err := d.db.WithTx(ctx, func(q store.Querier) error {
			t, err := load(ctx, q, candidate.ID)
			if err != nil {
				return err
			}
			if t.Status != StatusProcessing || t.AwaitingChildren || !isStale(t, cutoff) {
				return nil
			}
			stale = true
			cause := services.Wrap(services.ErrStaleClaim, "dispatch", "reclaim",
				fmt.Sprintf("no heartbeat since %s", lastSeen(t).Format(time.RFC3339)), nil)
			return d.fail(ctx, q, t, cause)
		})
		if err != nil {
			return reclaimed, err
		}
		if stale {
			reclaimed++
			logging.WarnWithContext(d.logger, "stale task reclaimed", "stale_claim",
				logging.TaskID(candidate.ID),
				logging.Role(string(candidate.Role)),
				logging.String(logging.FieldErrorHint, "check that the worker for this role is alive"),
				logging.String(logging.FieldImpact, "task counted as a failed attempt"),
			)
		}
	}
	return reclaimed, nil
}

func lastSeen(t *Task) time.Time {
	switch {
	case t.LastHeartbeat != nil:
		return *t.LastHeartbeat
	case t.StartedAt != nil:
		return *t.StartedAt
	default:
		return t.UpdatedAt
	}
}

func isStale(t *Task, cutoff time.Time) bool {
	return lastSeen(t).Before(cutoff)
}
