package dispatch

import (
	"context"
	"fmt"
	"strings"

	"leadflow/internal/store"
)

// Get returns one task.
func (d *Dispatcher) Get(ctx context.Context, id int64) (*Task, error) {
	return load(ctx, d.db.DB(), id)
}

// List returns tasks in creation order.
func (d *Dispatcher) List(ctx context.Context, filter Filter) ([]Task, error) {
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+store.Placeholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.Role != "" {
		role, err := normalizeRole("list", filter.Role)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, "role = ?")
		args = append(args, role)
	}
	if filter.ParentID > 0 {
		clauses = append(clauses, "parent_id = ?")
		args = append(args, filter.ParentID)
	}
	if filter.CustomerID > 0 {
		clauses = append(clauses, "customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return queryTasks(ctx, d.db.DB(), query, args...)
}

// Children returns the direct children of a task.
func (d *Dispatcher) Children(ctx context.Context, parentID int64) ([]Task, error) {
	if _, err := d.Get(ctx, parentID); err != nil {
		return nil, err
	}
	return d.List(ctx, Filter{ParentID: parentID})
}

// Stats counts tasks per status.
func (d *Dispatcher) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := d.db.DB().QueryContext(ctx, `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func queryTasks(ctx context.Context, q store.Querier, query string, args ...any) ([]Task, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
