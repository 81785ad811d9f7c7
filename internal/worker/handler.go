package worker

import (
	"context"
	"encoding/json"

	"leadflow/internal/dispatch"
	"leadflow/internal/workers"
)

// Handler performs the work of a claimed task, typically by calling an
// external generation or messaging provider. Returning an error wrapping
// services.ErrPermanent fails the task without further retries.
type Handler interface {
	Handle(ctx context.Context, task dispatch.Task) (json.RawMessage, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, task dispatch.Task) (json.RawMessage, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, task dispatch.Task) (json.RawMessage, error) {
	return f(ctx, task)
}

// Queue is the part of the dispatcher a runner needs.
type Queue interface {
	Claim(ctx context.Context, role workers.Role) (*dispatch.Task, error)
	Complete(ctx context.Context, id int64, output json.RawMessage) (*dispatch.Task, error)
	Fail(ctx context.Context, id int64, cause error) (*dispatch.Task, error)
	Heartbeat(ctx context.Context, id int64) error
}
