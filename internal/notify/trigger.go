package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"leadflow/internal/config"
	"leadflow/internal/customer"
	"leadflow/internal/logging"
	"leadflow/internal/store"
)

// TaskEvent describes a task that reached completed.
type TaskEvent struct {
	TaskID     int64
	Kind       string
	Role       string
	CustomerID int64
}

// Trigger decides whether an event deserves a notification and records it.
// Both entry points run inside the caller's transaction so the notification
// commits or rolls back with the state change that caused it.
type Trigger struct {
	audience    string
	notifyKinds map[string]struct{}
	logger      *slog.Logger
}

// NewTrigger builds a trigger from notification settings.
func NewTrigger(cfg config.Notifications, logger *slog.Logger) *Trigger {
	kinds := make(map[string]struct{}, len(cfg.NotifyKinds))
	for _, kind := range cfg.NotifyKinds {
		kinds[strings.ToLower(strings.TrimSpace(kind))] = struct{}{}
	}
	return &Trigger{
		audience:    cfg.Audience,
		notifyKinds: kinds,
		logger:      logging.NewComponentLogger(logger, "notify"),
	}
}

// NotifyWorthy reports whether completing a task of kind raises a notification.
func (t *Trigger) NotifyWorthy(kind string) bool {
	_, ok := t.notifyKinds[strings.ToLower(strings.TrimSpace(kind))]
	return ok
}

// LevelCrossed records a notification when next is above prev and the customer
// has never been notified about reaching next. It returns nil when nothing fires.
func (t *Trigger) LevelCrossed(ctx context.Context, q store.Querier, customerID int64, prev, next customer.Level) (*Notification, error) {
	if !next.Above(prev) {
		return nil, nil
	}
	var seen int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM level_notifications WHERE customer_id = ? AND level = ?`,
		customerID, next,
	).Scan(&seen); err != nil {
		return nil, fmt.Errorf("check level notification: %w", err)
	}
	if seen > 0 {
		t.logger.Debug("level crossing already notified",
			logging.CustomerID(customerID),
			logging.String("level", string(next)),
		)
		return nil, nil
	}

	now := time.Now().UTC()
	n, err := t.insert(ctx, q, Payload{
		CustomerID:    customerID,
		Category:      CategoryLevelCrossed,
		PreviousLevel: prev,
		NewLevel:      next,
		CreatedAt:     now,
	})
	if err != nil {
		return nil, err
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO level_notifications (customer_id, level, notification_id, created_at) VALUES (?, ?, ?, ?)`,
		customerID, next, n.ID, store.FormatTime(now),
	); err != nil {
		return nil, fmt.Errorf("record level notification: %w", err)
	}
	t.logger.Info("level crossing notification queued",
		logging.CustomerID(customerID),
		logging.String("previous_level", string(prev)),
		logging.String("new_level", string(next)),
		logging.NotificationID(n.ID),
	)
	return n, nil
}

// TaskCompleted records a notification for notify-worthy task kinds.
func (t *Trigger) TaskCompleted(ctx context.Context, q store.Querier, event TaskEvent) (*Notification, error) {
	if !t.NotifyWorthy(event.Kind) {
		return nil, nil
	}
	n, err := t.insert(ctx, q, Payload{
		CustomerID: event.CustomerID,
		TaskID:     event.TaskID,
		TaskKind:   event.Kind,
		Category:   CategoryTaskCompleted,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	t.logger.Info("task completion notification queued",
		logging.TaskID(event.TaskID),
		logging.Role(event.Role),
		logging.String("kind", event.Kind),
		logging.NotificationID(n.ID),
	)
	return n, nil
}

func (t *Trigger) insert(ctx context.Context, q store.Querier, payload Payload) (*Notification, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode notification payload: %w", err)
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO notifications (audience, category, customer_id, task_id, previous_level, new_level, payload, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.audience,
		payload.Category,
		store.NullableID(payload.CustomerID),
		store.NullableID(payload.TaskID),
		store.NullableString(string(payload.PreviousLevel)),
		store.NullableString(string(payload.NewLevel)),
		string(data),
		store.FormatTime(payload.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("notification id: %w", err)
	}
	return load(ctx, q, id)
}
