package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"leadflow/internal/logging"
	"leadflow/internal/notify"
	"leadflow/internal/store"
	"leadflow/internal/workers"
)

func openChildren(ctx context.Context, q store.Querier, parentID int64) (int, error) {
	var open int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM tasks WHERE parent_id = ? AND status IN (?, ?)`,
		parentID, StatusPending, StatusProcessing,
	).Scan(&open); err != nil {
		return 0, fmt.Errorf("count open children of %d: %w", parentID, err)
	}
	return open, nil
}

// firstFailedChild returns the lowest-id failed child, or nil. Cancelled
// children are not failures.
func firstFailedChild(ctx context.Context, q store.Querier, parentID int64) (*Task, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE parent_id = ? AND status = ? ORDER BY id LIMIT 1`,
		parentID, StatusFailed)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find failed child of %d: %w", parentID, err)
	}
	return t, nil
}

// settle finalizes a task whose own work is done and whose children are all
// terminal: failed when a child failed, completed otherwise.
func (d *Dispatcher) settle(ctx context.Context, q store.Querier, t *Task, output json.RawMessage) error {
	failed, err := firstFailedChild(ctx, q, t.ID)
	if err != nil {
		return err
	}
	if failed != nil {
		message := fmt.Sprintf("child task %d failed: %s", failed.ID, failed.Error)
		if err := d.finalize(ctx, q, t, StatusFailed, output, message); err != nil {
			return err
		}
		logging.ErrorWithContext(d.logger, "parent task failed by child", "task_failed",
			logging.TaskID(t.ID),
			logging.Role(string(t.Role)),
			logging.Int64("child_id", failed.ID),
			logging.String(logging.FieldErrorHint, "inspect the failing child task"),
		)
		return d.rollup(ctx, q, t.ParentID)
	}

	if err := d.finalize(ctx, q, t, StatusCompleted, output, ""); err != nil {
		return err
	}
	if err := workers.RecordCompletion(ctx, q, t.Role); err != nil {
		return err
	}
	if d.trigger != nil {
		if _, err := d.trigger.TaskCompleted(ctx, q, notify.TaskEvent{
			TaskID:     t.ID,
			Kind:       t.Kind,
			Role:       string(t.Role),
			CustomerID: t.CustomerID,
		}); err != nil {
			return err
		}
	}
	d.logger.Info("task completed",
		logging.TaskID(t.ID),
		logging.Role(string(t.Role)),
		logging.String("kind", t.Kind),
	)
	return d.rollup(ctx, q, t.ParentID)
}

// finalize writes a terminal status and releases the role binding. A nil
// output keeps whatever output is already stored.
func (d *Dispatcher) finalize(ctx context.Context, q store.Querier, t *Task, status Status, output json.RawMessage, message string) error {
	now := store.Now()
	var outputValue any
	if len(output) > 0 {
		outputValue = string(output)
	}
	if _, err := q.ExecContext(ctx,
		`UPDATE tasks
         SET status = ?, output = COALESCE(?, output), error_message = COALESCE(?, error_message),
             awaiting_children = 0, last_heartbeat = NULL, completed_at = ?, updated_at = ?
         WHERE id = ?`,
		status, outputValue, store.NullableString(message), now, now, t.ID,
	); err != nil {
		return fmt.Errorf("finalize task %d as %s: %w", t.ID, status, err)
	}
	if t.Status == StatusProcessing {
		return workers.Release(ctx, q, t.Role, t.ID)
	}
	return nil
}

// rollup settles a parked parent once its last open child is terminal.
// Parents that are still pending or being worked on are left alone; they
// settle when their worker completes them.
func (d *Dispatcher) rollup(ctx context.Context, q store.Querier, parentID int64) error {
	if parentID <= 0 {
		return nil
	}
	parent, err := load(ctx, q, parentID)
	if err != nil {
		return err
	}
	if !parent.Parked() {
		return nil
	}
	open, err := openChildren(ctx, q, parent.ID)
	if err != nil {
		return err
	}
	if open > 0 {
		return nil
	}
	return d.settle(ctx, q, parent, nil)
}
