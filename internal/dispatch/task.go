package dispatch

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"leadflow/internal/services"
	"leadflow/internal/store"
	"leadflow/internal/workers"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Terminal reports whether no further transition is possible. A failed task
// that was re-queued is pending again, so failed here is always final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ParseStatus validates a status name.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, candidate := range allStatuses {
		if candidate == status {
			return status, nil
		}
	}
	return "", services.Invalid("dispatch", "parse status", fmt.Sprintf("unknown status %q", value))
}

// Task is one unit of dispatchable work.
type Task struct {
	ID               int64           `json:"id"`
	Kind             string          `json:"kind"`
	Role             workers.Role    `json:"role"`
	Status           Status          `json:"status"`
	Priority         int             `json:"priority"`
	CustomerID       int64           `json:"customerId,omitempty"`
	ParentID         int64           `json:"parentId,omitempty"`
	Input            json.RawMessage `json:"input"`
	Output           json.RawMessage `json:"output,omitempty"`
	Error            string          `json:"error,omitempty"`
	RetryCount       int             `json:"retryCount"`
	RetryLimit       int             `json:"retryLimit"`
	AwaitingChildren bool            `json:"awaitingChildren,omitempty"`
	LastHeartbeat    *time.Time      `json:"lastHeartbeat,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	StartedAt        *time.Time      `json:"startedAt,omitempty"`
	CompletedAt      *time.Time      `json:"completedAt,omitempty"`
}

// Parked reports whether the task finished its own work and waits on children.
func (t Task) Parked() bool {
	return t.Status == StatusProcessing && t.AwaitingChildren
}

const taskColumns = "id, kind, role, status, priority, customer_id, parent_id, input, output, error_message, retry_count, retry_limit, awaiting_children, last_heartbeat, created_at, updated_at, started_at, completed_at"

func scanTask(scanner store.Scanner) (*Task, error) {
	var (
		t            Task
		role         string
		status       string
		customerID   sql.NullInt64
		parentID     sql.NullInt64
		input        string
		output       sql.NullString
		errorMessage sql.NullString
		awaiting     int
		heartbeatRaw sql.NullString
		createdRaw   string
		updatedRaw   string
		startedRaw   sql.NullString
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&t.ID,
		&t.Kind,
		&role,
		&status,
		&t.Priority,
		&customerID,
		&parentID,
		&input,
		&output,
		&errorMessage,
		&t.RetryCount,
		&t.RetryLimit,
		&awaiting,
		&heartbeatRaw,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}
	t.Role = workers.Role(role)
	t.Status = Status(status)
	t.CustomerID = customerID.Int64
	t.ParentID = parentID.Int64
	t.Input = json.RawMessage(input)
	if output.Valid && output.String != "" {
		t.Output = json.RawMessage(output.String)
	}
	t.Error = errorMessage.String
	t.AwaitingChildren = awaiting != 0
	t.LastHeartbeat = store.ParseNullableTime(heartbeatRaw.String, heartbeatRaw.Valid)
	if created, err := store.ParseTime(createdRaw); err == nil {
		t.CreatedAt = created
	}
	if updated, err := store.ParseTime(updatedRaw); err == nil {
		t.UpdatedAt = updated
	}
	t.StartedAt = store.ParseNullableTime(startedRaw.String, startedRaw.Valid)
	t.CompletedAt = store.ParseNullableTime(completedRaw.String, completedRaw.Valid)
	return &t, nil
}

// EnqueueRequest describes a new task. Priority 0 derives the priority from
// the customer's intent level, or the configured default without a customer.
// A nil RetryLimit uses the configured default.
type EnqueueRequest struct {
	Kind       string
	Role       workers.Role
	Priority   int
	CustomerID int64
	ParentID   int64
	Input      json.RawMessage
	RetryLimit *int
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Statuses   []Status
	Role       workers.Role
	ParentID   int64
	CustomerID int64
	Limit      int
}
