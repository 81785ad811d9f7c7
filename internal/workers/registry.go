package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"leadflow/internal/logging"
	"leadflow/internal/services"
	"leadflow/internal/store"
)

var (
	// ErrWorkerBound rejects leaving the busy state while a task is bound.
	ErrWorkerBound = errors.New("worker has a bound task")
	// ErrWorkerOffline is returned when an offline role tries to claim work.
	ErrWorkerOffline = errors.New("worker is offline")
)

// Worker is the registry entry for one role.
type Worker struct {
	Role           Role         `json:"role"`
	Availability   Availability `json:"availability"`
	CurrentTaskID  int64        `json:"currentTaskId,omitempty"`
	CompletedToday int          `json:"completedToday"`
	CompletedTotal int          `json:"completedTotal"`
	DailyResetAt   *time.Time   `json:"dailyResetAt,omitempty"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// Bound reports whether a task is currently bound to the role.
func (w Worker) Bound() bool {
	return w.CurrentTaskID > 0
}

// Registry tracks availability and completion counters per role.
type Registry struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRegistry constructs a registry backed by st.
func NewRegistry(st *store.Store, logger *slog.Logger) *Registry {
	return &Registry{store: st, logger: logging.NewComponentLogger(logger, "workers")}
}

const workerColumns = "role, availability, current_task_id, completed_today, completed_total, daily_reset_at, updated_at"

func scanWorker(scanner store.Scanner) (*Worker, error) {
	var (
		role       string
		state      string
		current    sql.NullInt64
		today      int
		total      int
		resetRaw   sql.NullString
		updatedRaw string
	)
	if err := scanner.Scan(&role, &state, &current, &today, &total, &resetRaw, &updatedRaw); err != nil {
		return nil, err
	}
	w := &Worker{
		Role:           Role(role),
		Availability:   Availability(state),
		CurrentTaskID:  current.Int64,
		CompletedToday: today,
		CompletedTotal: total,
		DailyResetAt:   store.ParseNullableTime(resetRaw.String, resetRaw.Valid),
	}
	if updated, err := store.ParseTime(updatedRaw); err == nil {
		w.UpdatedAt = updated
	}
	return w, nil
}

// Seed ensures every role has a registry row.
func (r *Registry) Seed(ctx context.Context) error {
	return r.store.WithTx(ctx, func(q store.Querier) error {
		for _, role := range allRoles {
			if err := ensure(ctx, q, role); err != nil {
				return err
			}
		}
		return nil
	})
}

func ensure(ctx context.Context, q store.Querier, role Role) error {
	if _, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO workers (role, availability, updated_at) VALUES (?, ?, ?)`,
		role, Available, store.Now(),
	); err != nil {
		return fmt.Errorf("seed worker %s: %w", role, err)
	}
	return nil
}

// Load reads a role's registry entry within q, creating it on first use.
func Load(ctx context.Context, q store.Querier, role Role) (*Worker, error) {
	if !role.Valid() {
		return nil, services.Invalid("workers", "load", fmt.Sprintf("unknown role %q", role))
	}
	if err := ensure(ctx, q, role); err != nil {
		return nil, err
	}
	row := q.QueryRowContext(ctx, `SELECT `+workerColumns+` FROM workers WHERE role = ?`, role)
	w, err := scanWorker(row)
	if err != nil {
		return nil, fmt.Errorf("load worker %s: %w", role, err)
	}
	return w, nil
}

// Get returns the registry entry for role.
func (r *Registry) Get(ctx context.Context, role Role) (*Worker, error) {
	var w *Worker
	err := r.store.WithTx(ctx, func(q store.Querier) error {
		var err error
		w, err = Load(ctx, q, role)
		return err
	})
	return w, err
}

// List returns all registry entries in role order.
func (r *Registry) List(ctx context.Context) ([]Worker, error) {
	if err := r.Seed(ctx); err != nil {
		return nil, err
	}
	rows, err := r.store.DB().QueryContext(ctx, `SELECT `+workerColumns+` FROM workers`)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	byRole := make(map[Role]Worker, len(allRoles))
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		byRole[w.Role] = *w
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]Worker, 0, len(byRole))
	for _, role := range allRoles {
		if w, ok := byRole[role]; ok {
			out = append(out, w)
		}
	}
	return out, nil
}

// SetAvailability moves a role to state. Leaving busy while a task is bound
// returns ErrWorkerBound.
func (r *Registry) SetAvailability(ctx context.Context, role Role, state Availability) (*Worker, error) {
	if _, err := ParseAvailability(string(state)); err != nil {
		return nil, err
	}
	var updated *Worker
	err := r.store.WithTx(ctx, func(q store.Querier) error {
		current, err := Load(ctx, q, role)
		if err != nil {
			return err
		}
		if state != Busy && current.Bound() {
			return fmt.Errorf("%w: %s is bound to task %d", ErrWorkerBound, role, current.CurrentTaskID)
		}
		if _, err := q.ExecContext(ctx,
			`UPDATE workers SET availability = ?, updated_at = ? WHERE role = ?`,
			state, store.Now(), role,
		); err != nil {
			return fmt.Errorf("set availability: %w", err)
		}
		updated, err = Load(ctx, q, role)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("worker availability changed",
		logging.Role(string(role)),
		logging.String("availability", string(state)),
	)
	return updated, nil
}

// ResetDailyCounters zeroes the daily completion counter without touching the
// lifetime total.
func (r *Registry) ResetDailyCounters(ctx context.Context, role Role) (*Worker, error) {
	var updated *Worker
	err := r.store.WithTx(ctx, func(q store.Querier) error {
		if _, err := Load(ctx, q, role); err != nil {
			return err
		}
		now := store.Now()
		if _, err := q.ExecContext(ctx,
			`UPDATE workers SET completed_today = 0, daily_reset_at = ?, updated_at = ? WHERE role = ?`,
			now, now, role,
		); err != nil {
			return fmt.Errorf("reset daily counters: %w", err)
		}
		var err error
		updated, err = Load(ctx, q, role)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("daily counters reset", logging.Role(string(role)))
	return updated, nil
}
