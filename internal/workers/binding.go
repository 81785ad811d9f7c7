package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"leadflow/internal/store"
)

// The helpers below run inside the dispatcher's transaction so task state and
// registry state always commit together.

// Eligible loads the role and rejects it when offline.
func Eligible(ctx context.Context, q store.Querier, role Role) (*Worker, error) {
	w, err := Load(ctx, q, role)
	if err != nil {
		return nil, err
	}
	if w.Availability == Offline {
		return nil, fmt.Errorf("%w: %s", ErrWorkerOffline, role)
	}
	return w, nil
}

// Bind marks the role busy. A role already representing another task keeps
// that binding; the registry records one representative task per role.
func Bind(ctx context.Context, q store.Querier, role Role, taskID int64) error {
	if _, err := q.ExecContext(ctx,
		`UPDATE workers
         SET availability = ?, current_task_id = COALESCE(current_task_id, ?), updated_at = ?
         WHERE role = ?`,
		Busy, taskID, store.Now(), role,
	); err != nil {
		return fmt.Errorf("bind worker %s: %w", role, err)
	}
	return nil
}

// Release clears taskID from the role's binding. When other tasks of the role
// are still being worked on, the oldest of them becomes the bound task;
// otherwise the role returns to available.
func Release(ctx context.Context, q store.Querier, role Role, taskID int64) error {
	var current sql.NullInt64
	err := q.QueryRowContext(ctx, `SELECT current_task_id FROM workers WHERE role = ?`, role).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read worker binding %s: %w", role, err)
	}
	if !current.Valid || current.Int64 != taskID {
		return nil
	}

	var next sql.NullInt64
	err = q.QueryRowContext(ctx,
		`SELECT id FROM tasks
         WHERE role = ? AND status = 'processing' AND awaiting_children = 0 AND id <> ?
         ORDER BY started_at, id LIMIT 1`,
		role, taskID,
	).Scan(&next)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("find next bound task %s: %w", role, err)
	}

	if next.Valid {
		_, err = q.ExecContext(ctx,
			`UPDATE workers SET current_task_id = ?, updated_at = ? WHERE role = ?`,
			next.Int64, store.Now(), role,
		)
	} else {
		_, err = q.ExecContext(ctx,
			`UPDATE workers
             SET current_task_id = NULL,
                 availability = CASE availability WHEN ? THEN ? ELSE availability END,
                 updated_at = ?
             WHERE role = ?`,
			Busy, Available, store.Now(), role,
		)
	}
	if err != nil {
		return fmt.Errorf("release worker %s: %w", role, err)
	}
	return nil
}

// RecordCompletion bumps the daily and lifetime counters for a successful task.
func RecordCompletion(ctx context.Context, q store.Querier, role Role) error {
	if _, err := q.ExecContext(ctx,
		`UPDATE workers
         SET completed_today = completed_today + 1, completed_total = completed_total + 1, updated_at = ?
         WHERE role = ?`,
		store.Now(), role,
	); err != nil {
		return fmt.Errorf("record completion %s: %w", role, err)
	}
	return nil
}
