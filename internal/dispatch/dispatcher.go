package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"leadflow/internal/config"
	"leadflow/internal/customer"
	"leadflow/internal/logging"
	"leadflow/internal/notify"
	"leadflow/internal/services"
	"leadflow/internal/store"
	"leadflow/internal/workers"
)

// ErrInvalidState rejects a transition that the task's current status does
// not allow. It is always wrapped together with services.ErrInvalidInput.
var ErrInvalidState = errors.New("invalid task state")

// Dispatcher owns the shared task queue.
type Dispatcher struct {
	db      *store.Store
	cfg     config.Dispatch
	trigger *notify.Trigger
	logger  *slog.Logger
}

// New constructs a dispatcher. trigger may be nil to disable completion
// notifications.
func New(st *store.Store, cfg config.Dispatch, trigger *notify.Trigger, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		db:      st,
		cfg:     cfg,
		trigger: trigger,
		logger:  logging.NewComponentLogger(logger, "dispatch"),
	}
}

func normalizeRole(operation string, role workers.Role) (workers.Role, error) {
	if role.Valid() {
		return role, nil
	}
	parsed, err := workers.ParseRole(string(role))
	if err != nil {
		return "", services.Invalid("dispatch", operation, fmt.Sprintf("unknown role %q", role))
	}
	return parsed, nil
}

func invalidState(operation string, t *Task) error {
	status := string(t.Status)
	if t.Parked() {
		status = "awaiting children"
	}
	return services.Wrap(services.ErrInvalidInput, "dispatch", operation,
		fmt.Sprintf("task %d is %s", t.ID, status), ErrInvalidState)
}

func load(ctx context.Context, q store.Querier, id int64) (*Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "dispatch", "load", fmt.Sprintf("task %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load task %d: %w", id, err)
	}
	return t, nil
}

// Enqueue creates a pending task.
func (d *Dispatcher) Enqueue(ctx context.Context, req EnqueueRequest) (*Task, error) {
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	if kind == "" {
		return nil, services.Invalid("dispatch", "enqueue", "task kind required")
	}
	role, err := normalizeRole("enqueue", req.Role)
	if err != nil {
		return nil, err
	}
	input := req.Input
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	if !json.Valid(input) {
		return nil, services.Invalid("dispatch", "enqueue", "input is not valid JSON")
	}
	retryLimit := d.cfg.DefaultRetryLimit
	if req.RetryLimit != nil {
		retryLimit = *req.RetryLimit
	}
	if retryLimit < 0 {
		return nil, services.Invalid("dispatch", "enqueue", "retry limit must be non-negative")
	}

	var task *Task
	err = d.db.WithTx(ctx, func(q store.Querier) error {
		priority := req.Priority
		if req.CustomerID > 0 {
			c, err := customer.Load(ctx, q, req.CustomerID)
			if errors.Is(err, services.ErrNotFound) {
				return services.Invalid("dispatch", "enqueue", fmt.Sprintf("customer %d does not exist", req.CustomerID))
			}
			if err != nil {
				return err
			}
			if priority == 0 {
				priority = d.levelPriority(c.IntentLevel)
			}
		}
		if priority == 0 {
			priority = d.cfg.DefaultPriority
		}
		if priority < d.cfg.PriorityMin || priority > d.cfg.PriorityMax {
			return services.Invalid("dispatch", "enqueue",
				fmt.Sprintf("priority %d outside [%d, %d]", priority, d.cfg.PriorityMin, d.cfg.PriorityMax))
		}
		if req.ParentID > 0 {
			parent, err := load(ctx, q, req.ParentID)
			if errors.Is(err, services.ErrNotFound) {
				return services.Invalid("dispatch", "enqueue", fmt.Sprintf("parent task %d does not exist", req.ParentID))
			}
			if err != nil {
				return err
			}
			if parent.Status.Terminal() {
				return services.Invalid("dispatch", "enqueue", fmt.Sprintf("parent task %d is %s", parent.ID, parent.Status))
			}
		}

		now := store.Now()
		res, err := q.ExecContext(ctx,
			`INSERT INTO tasks (kind, role, status, priority, customer_id, parent_id, input, retry_limit, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			kind, role, StatusPending, priority,
			store.NullableID(req.CustomerID), store.NullableID(req.ParentID),
			string(input), retryLimit, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("task id: %w", err)
		}
		task, err = load(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	attrs := []logging.Attr{
		logging.TaskID(task.ID),
		logging.Role(string(task.Role)),
		logging.String("kind", task.Kind),
		logging.Int("priority", task.Priority),
	}
	if task.ParentID > 0 {
		attrs = append(attrs, logging.Int64("parent_id", task.ParentID))
	}
	if task.CustomerID > 0 {
		attrs = append(attrs, logging.CustomerID(task.CustomerID))
	}
	d.logger.Info("task enqueued", logging.Args(attrs...)...)
	return task, nil
}

func (d *Dispatcher) levelPriority(level customer.Level) int {
	if priority, ok := d.cfg.LevelPriority[string(level)]; ok {
		return priority
	}
	return 0
}

// Claim moves the highest-priority pending task of role to processing and
// binds it to the role. It returns (nil, nil) when nothing is available and
// workers.ErrWorkerOffline when the role is offline.
func (d *Dispatcher) Claim(ctx context.Context, role workers.Role) (*Task, error) {
	role, err := normalizeRole("claim", role)
	if err != nil {
		return nil, err
	}

	var task *Task
	err = d.db.WithTx(ctx, func(q store.Querier) error {
		if _, err := workers.Eligible(ctx, q, role); err != nil {
			return err
		}
		now := store.Now()
		row := q.QueryRowContext(ctx,
			`UPDATE tasks
             SET status = ?, started_at = COALESCE(started_at, ?), last_heartbeat = ?, updated_at = ?
             WHERE id = (
                 SELECT id FROM tasks WHERE role = ? AND status = ? ORDER BY priority, id LIMIT 1
             ) AND status = ?
             RETURNING `+taskColumns,
			StatusProcessing, now, now, now,
			role, StatusPending,
			StatusPending,
		)
		claimed, err := scanTask(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("claim task: %w", err)
		}
		if err := workers.Bind(ctx, q, role, claimed.ID); err != nil {
			return err
		}
		task = claimed
		return nil
	})
	if err != nil {
		return nil, err
	}
	if task != nil {
		d.logger.Info("task claimed",
			logging.TaskID(task.ID),
			logging.Role(string(role)),
			logging.String("kind", task.Kind),
			logging.Int("priority", task.Priority),
			logging.Int("retry_count", task.RetryCount),
		)
	}
	return task, nil
}
