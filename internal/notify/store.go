package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"leadflow/internal/services"
	"leadflow/internal/store"
)

// maxDeliveryAttempts bounds how often the relay retries one notification.
const maxDeliveryAttempts = 5

// Store reads notifications and records their read and delivery state.
type Store struct {
	db *store.Store
}

// NewStore constructs a notification store.
func NewStore(db *store.Store) *Store {
	return &Store{db: db}
}

// Filter narrows List results.
type Filter struct {
	UnreadOnly bool
	CustomerID int64
	Category   Category
	Limit      int
}

func load(ctx context.Context, q store.Querier, id int64) (*Notification, error) {
	row := q.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "notify", "load", fmt.Sprintf("notification %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load notification %d: %w", id, err)
	}
	return n, nil
}

// Get returns one notification.
func (s *Store) Get(ctx context.Context, id int64) (*Notification, error) {
	return load(ctx, s.db.DB(), id)
}

// List returns notifications newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Notification, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.UnreadOnly {
		clauses = append(clauses, "is_read = 0")
	}
	if filter.CustomerID > 0 {
		clauses = append(clauses, "customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, filter.Category)
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return s.query(ctx, query, args...)
}

// MarkRead flags a notification as read. This is the only user mutation.
func (s *Store) MarkRead(ctx context.Context, id int64) (*Notification, error) {
	res, err := s.db.Exec(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, services.Wrap(services.ErrNotFound, "notify", "mark read", fmt.Sprintf("notification %d", id), nil)
	}
	return s.Get(ctx, id)
}

// Pending returns undelivered notifications that still have attempts left, oldest first.
func (s *Store) Pending(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx,
		`SELECT `+notificationColumns+` FROM notifications
         WHERE delivered_at IS NULL AND delivery_attempts < ?
         ORDER BY id LIMIT ?`,
		maxDeliveryAttempts, limit)
}

// Undelivered counts notifications the relay will still attempt.
func (s *Store) Undelivered(ctx context.Context) (int, error) {
	var n int
	if err := s.db.DB().QueryRowContext(ctx,
		`SELECT COUNT(1) FROM notifications WHERE delivered_at IS NULL AND delivery_attempts < ?`,
		maxDeliveryAttempts,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count undelivered notifications: %w", err)
	}
	return n, nil
}

// MarkDelivered stamps a successful hand-off to the sink.
func (s *Store) MarkDelivered(ctx context.Context, id int64) error {
	if _, err := s.db.Exec(ctx,
		`UPDATE notifications SET delivered_at = ?, delivery_attempts = delivery_attempts + 1, last_delivery_error = NULL WHERE id = ?`,
		store.Now(), id,
	); err != nil {
		return fmt.Errorf("mark notification delivered: %w", err)
	}
	return nil
}

// MarkDeliveryFailed records a failed attempt.
func (s *Store) MarkDeliveryFailed(ctx context.Context, id int64, cause error) error {
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	if _, err := s.db.Exec(ctx,
		`UPDATE notifications SET delivery_attempts = delivery_attempts + 1, last_delivery_error = ? WHERE id = ?`,
		message, id,
	); err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Notification, error) {
	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}
