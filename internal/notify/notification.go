package notify

import (
	"database/sql"
	"encoding/json"
	"time"

	"leadflow/internal/customer"
	"leadflow/internal/store"
)

// Category classifies why a notification was raised.
type Category string

const (
	CategoryLevelCrossed  Category = "level_crossed"
	CategoryTaskCompleted Category = "task_completed"
)

// Payload is the document handed to the delivery channel.
type Payload struct {
	CustomerID    int64          `json:"customerId,omitempty"`
	TaskID        int64          `json:"taskId,omitempty"`
	TaskKind      string         `json:"taskKind,omitempty"`
	Category      Category       `json:"category"`
	PreviousLevel customer.Level `json:"previousLevel,omitempty"`
	NewLevel      customer.Level `json:"newLevel,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Notification is a persisted notification and its delivery bookkeeping.
type Notification struct {
	ID                int64          `json:"id"`
	Audience          string         `json:"audience"`
	Category          Category       `json:"category"`
	CustomerID        int64          `json:"customerId,omitempty"`
	TaskID            int64          `json:"taskId,omitempty"`
	PreviousLevel     customer.Level `json:"previousLevel,omitempty"`
	NewLevel          customer.Level `json:"newLevel,omitempty"`
	Payload           Payload        `json:"payload"`
	Read              bool           `json:"read"`
	DeliveredAt       *time.Time     `json:"deliveredAt,omitempty"`
	DeliveryAttempts  int            `json:"deliveryAttempts"`
	LastDeliveryError string         `json:"lastDeliveryError,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
}

const notificationColumns = "id, audience, category, customer_id, task_id, previous_level, new_level, payload, is_read, delivered_at, delivery_attempts, last_delivery_error, created_at"

func scanNotification(scanner store.Scanner) (*Notification, error) {
	var (
		n            Notification
		category     string
		customerID   sql.NullInt64
		taskID       sql.NullInt64
		previous     sql.NullString
		next         sql.NullString
		payloadRaw   string
		read         int
		deliveredRaw sql.NullString
		lastError    sql.NullString
		createdRaw   string
	)
	if err := scanner.Scan(
		&n.ID,
		&n.Audience,
		&category,
		&customerID,
		&taskID,
		&previous,
		&next,
		&payloadRaw,
		&read,
		&deliveredRaw,
		&n.DeliveryAttempts,
		&lastError,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	n.Category = Category(category)
	n.CustomerID = customerID.Int64
	n.TaskID = taskID.Int64
	n.PreviousLevel = customer.Level(previous.String)
	n.NewLevel = customer.Level(next.String)
	if err := json.Unmarshal([]byte(payloadRaw), &n.Payload); err != nil {
		return nil, err
	}
	n.Read = read != 0
	n.DeliveredAt = store.ParseNullableTime(deliveredRaw.String, deliveredRaw.Valid)
	n.LastDeliveryError = lastError.String
	if created, err := store.ParseTime(createdRaw); err == nil {
		n.CreatedAt = created
	}
	return &n, nil
}
