package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"leadflow/internal/dispatch"
	"leadflow/internal/logging"
	"leadflow/internal/services"
	"leadflow/internal/workers"
)

const (
	defaultPollInterval      = 2 * time.Second
	defaultHeartbeatInterval = 15 * time.Second
)

// errRunnerStopped is the failure recorded for a task interrupted by shutdown.
var errRunnerStopped = errors.New("runner stopped before the task finished")

// Options tunes a Runner. Zero intervals fall back to package defaults.
type Options struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	Logger            *slog.Logger
}

// Runner claims tasks for its registered roles and executes them. Each role
// gets its own lane that processes one task at a time.
type Runner struct {
	queue             Queue
	handlers          map[workers.Role]Handler
	pollInterval      time.Duration
	heartbeatInterval time.Duration
	logger            *slog.Logger
}

// NewRunner builds a runner over q.
func NewRunner(q Queue, opts Options) *Runner {
	r := &Runner{
		queue:             q,
		handlers:          make(map[workers.Role]Handler),
		pollInterval:      opts.PollInterval,
		heartbeatInterval: opts.HeartbeatInterval,
		logger:            logging.NewComponentLogger(opts.Logger, "worker"),
	}
	if r.pollInterval <= 0 {
		r.pollInterval = defaultPollInterval
	}
	if r.heartbeatInterval <= 0 {
		r.heartbeatInterval = defaultHeartbeatInterval
	}
	return r
}

// Register installs the handler for role, replacing any previous one.
func (r *Runner) Register(role workers.Role, h Handler) error {
	if !role.Valid() {
		return services.Invalid("worker", "register", fmt.Sprintf("unknown role %q", role))
	}
	if h == nil {
		return services.Invalid("worker", "register", "handler required")
	}
	r.handlers[role] = h
	return nil
}

// Roles lists registered roles in a stable order.
func (r *Runner) Roles() []workers.Role {
	roles := make([]workers.Role, 0, len(r.handlers))
	for role := range r.handlers {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// Run processes tasks until ctx is cancelled. It returns nil on cancellation.
func (r *Runner) Run(ctx context.Context) error {
	roles := r.Roles()
	if len(roles) == 0 {
		return errors.New("worker runner has no registered handlers")
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for _, role := range roles {
		handler := r.handlers[role]
		group.Go(func() error {
			r.runLane(groupCtx, role, handler)
			return nil
		})
	}
	r.logger.Info("worker runner started", logging.Int("lanes", len(roles)))
	err := group.Wait()
	r.logger.Info("worker runner stopped")
	return err
}

func (r *Runner) runLane(ctx context.Context, role workers.Role, handler Handler) {
	ctx = services.WithRole(ctx, string(role))
	logger := logging.WithContext(ctx, r.logger)
	for {
		if ctx.Err() != nil {
			return
		}
		task, err := r.queue.Claim(ctx, role)
		switch {
		case err != nil && ctx.Err() != nil:
			return
		case errors.Is(err, workers.ErrWorkerOffline):
			logger.Debug("role offline, waiting")
			r.wait(ctx)
			continue
		case err != nil:
			logging.WarnWithContext(logger, "claim failed", "claim_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
			r.wait(ctx)
			continue
		case task == nil:
			r.wait(ctx)
			continue
		}
		r.process(ctx, handler, task)
	}
}

func (r *Runner) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(r.pollInterval):
	}
}

// Process runs one claimed task to completion or failure. It is exported for
// callers that claim tasks themselves.
func (r *Runner) Process(ctx context.Context, handler Handler, task *dispatch.Task) {
	r.process(ctx, handler, task)
}

func (r *Runner) process(ctx context.Context, handler Handler, task *dispatch.Task) {
	taskCtx := services.WithTaskID(ctx, task.ID)
	taskCtx = services.WithRole(taskCtx, string(task.Role))
	taskCtx = services.WithRequestID(taskCtx, uuid.NewString())
	if task.CustomerID > 0 {
		taskCtx = services.WithCustomerID(taskCtx, task.CustomerID)
	}
	logger := logging.WithContext(taskCtx, r.logger)
	logger.Info("task started",
		logging.String(logging.FieldEventType, "task_start"),
		logging.String("kind", task.Kind),
		logging.Int("attempt", task.RetryCount+1),
	)

	hbCtx, stopHeartbeat := context.WithCancel(taskCtx)
	var wg sync.WaitGroup
	wg.Add(1)
	go r.heartbeatLoop(hbCtx, &wg, logger, task.ID)

	started := time.Now()
	output, err := r.invoke(taskCtx, handler, *task)
	stopHeartbeat()
	wg.Wait()

	// Report the outcome even when shutdown interrupted the handler, so the
	// task is re-queued now rather than after the claim timeout.
	reportCtx := context.WithoutCancel(taskCtx)
	if err == nil && ctx.Err() != nil {
		err = errRunnerStopped
	}
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, errRunnerStopped) {
			err = fmt.Errorf("%w: %w", errRunnerStopped, err)
		}
		if _, failErr := r.queue.Fail(reportCtx, task.ID, err); failErr != nil {
			logging.ErrorWithContext(logger, "failed to record task failure", "task_report_failed",
				logging.Error(failErr),
				logging.String(logging.FieldErrorHint, "the task will be reclaimed after the claim timeout"),
			)
			return
		}
		logging.WarnWithContext(logger, "task attempt failed", "task_attempt_failed",
			logging.Error(err),
			logging.Duration("duration", time.Since(started)),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "see the task error for details"),
		)
		return
	}
	if _, completeErr := r.queue.Complete(reportCtx, task.ID, output); completeErr != nil {
		logging.ErrorWithContext(logger, "failed to record task completion", "task_report_failed",
			logging.Error(completeErr),
			logging.String(logging.FieldErrorHint, "the task will be reclaimed after the claim timeout"),
		)
		return
	}
	logger.Info("task finished",
		logging.String(logging.FieldEventType, "task_complete"),
		logging.Duration("duration", time.Since(started)),
	)
}

// invoke calls the handler, turning a panic into a permanent failure.
func (r *Runner) invoke(ctx context.Context, handler Handler, task dispatch.Task) (output json.RawMessage, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = services.Wrap(services.ErrPermanent, "worker", "handle",
				fmt.Sprintf("handler panic: %v", recovered), nil)
		}
	}()
	return handler.Handle(ctx, task)
}

func (r *Runner) heartbeatLoop(ctx context.Context, wg *sync.WaitGroup, logger *slog.Logger, taskID int64) {
	defer wg.Done()
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.queue.Heartbeat(ctx, taskID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("heartbeat update failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_failed"),
					logging.String(logging.FieldErrorHint, "check database access"),
				)
			}
		}
	}
}
