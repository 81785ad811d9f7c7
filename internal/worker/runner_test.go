package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"leadflow/internal/dispatch"
	"leadflow/internal/logging"
	"leadflow/internal/services"
	"leadflow/internal/testsupport"
	"leadflow/internal/worker"
	"leadflow/internal/workers"
)

func newDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return dispatch.New(st, cfg.Dispatch, nil, logging.NewNop())
}

// runUntil runs the runner until done reports true or the deadline passes.
func runUntil(t *testing.T, runner *worker.Runner, done func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- runner.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !done() {
		if time.Now().After(deadline) {
			cancel()
			<-result
			t.Fatal("runner did not finish the work in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-result; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func allInStatus(t *testing.T, d *dispatch.Dispatcher, status dispatch.Status, ids ...int64) func() bool {
	return func() bool {
		for _, id := range ids {
			task, err := d.Get(context.Background(), id)
			if err != nil {
				t.Errorf("Get failed: %v", err)
				return true
			}
			if task.Status != status {
				return false
			}
		}
		return true
	}
}

func TestRunnerCompletesClaimedTasks(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	var ids []int64
	for _, kind := range []string{"draft_copy", "draft_copy", "generate_video"} {
		task, err := d.Enqueue(ctx, dispatch.EnqueueRequest{Kind: kind, Role: workers.RoleContent})
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		ids = append(ids, task.ID)
	}

	runner := worker.NewRunner(d, worker.Options{PollInterval: 10 * time.Millisecond, Logger: logging.NewNop()})
	err := runner.Register(workers.RoleContent, worker.HandlerFunc(func(ctx context.Context, task dispatch.Task) (json.RawMessage, error) {
		if id, ok := services.TaskIDFromContext(ctx); !ok || id != task.ID {
			return nil, errors.New("task id missing from context")
		}
		return json.Marshal(map[string]string{"kind": task.Kind})
	}))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	runUntil(t, runner, allInStatus(t, d, dispatch.StatusCompleted, ids...))

	task, _ := d.Get(ctx, ids[2])
	if string(task.Output) != `{"kind":"generate_video"}` {
		t.Fatalf("unexpected output %s", task.Output)
	}
}

func TestRunnerRetriesTransientFailures(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	task, err := d.Enqueue(ctx, dispatch.EnqueueRequest{Kind: "chat_reply", Role: workers.RoleChat})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	var calls atomic.Int32
	runner := worker.NewRunner(d, worker.Options{PollInterval: 10 * time.Millisecond, Logger: logging.NewNop()})
	_ = runner.Register(workers.RoleChat, worker.HandlerFunc(func(ctx context.Context, task dispatch.Task) (json.RawMessage, error) {
		if calls.Add(1) == 1 {
			return nil, services.Wrap(services.ErrTransient, "chat", "reply", "provider rate limited", nil)
		}
		return json.RawMessage(`{"reply":"ok"}`), nil
	}))

	runUntil(t, runner, allInStatus(t, d, dispatch.StatusCompleted, task.ID))

	final, _ := d.Get(ctx, task.ID)
	if final.RetryCount != 1 || calls.Load() != 2 {
		t.Fatalf("expected one retry, got retry_count=%d calls=%d", final.RetryCount, calls.Load())
	}
}

func TestRunnerTreatsPanicsAsPermanent(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	task, err := d.Enqueue(ctx, dispatch.EnqueueRequest{Kind: "lead_report", Role: workers.RoleAnalyst})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	runner := worker.NewRunner(d, worker.Options{PollInterval: 10 * time.Millisecond, Logger: logging.NewNop()})
	_ = runner.Register(workers.RoleAnalyst, worker.HandlerFunc(func(context.Context, dispatch.Task) (json.RawMessage, error) {
		panic("nil report template")
	}))

	runUntil(t, runner, allInStatus(t, d, dispatch.StatusFailed, task.ID))

	final, _ := d.Get(ctx, task.ID)
	if final.RetryCount != 0 {
		t.Fatalf("expected no retries after a panic, got %d", final.RetryCount)
	}
}

func TestRunRequiresHandlers(t *testing.T) {
	runner := worker.NewRunner(newDispatcher(t), worker.Options{})
	if err := runner.Run(context.Background()); err == nil {
		t.Fatal("expected error without handlers")
	}
	if err := runner.Register("janitor", worker.HandlerFunc(nil)); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid role to be rejected, got %v", err)
	}
}

type recordingQueue struct {
	mu         sync.Mutex
	heartbeats int
	beat       chan struct{}
	completed  []int64
}

func (q *recordingQueue) Claim(context.Context, workers.Role) (*dispatch.Task, error) {
	return nil, nil
}

func (q *recordingQueue) Complete(_ context.Context, id int64, _ json.RawMessage) (*dispatch.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, id)
	return &dispatch.Task{ID: id, Status: dispatch.StatusCompleted}, nil
}

func (q *recordingQueue) Fail(_ context.Context, id int64, _ error) (*dispatch.Task, error) {
	return &dispatch.Task{ID: id, Status: dispatch.StatusFailed}, nil
}

func (q *recordingQueue) Heartbeat(context.Context, int64) error {
	q.mu.Lock()
	q.heartbeats++
	q.mu.Unlock()
	select {
	case q.beat <- struct{}{}:
	default:
	}
	return nil
}

func TestProcessSendsHeartbeatsWhileHandling(t *testing.T) {
	queue := &recordingQueue{beat: make(chan struct{}, 1)}
	runner := worker.NewRunner(queue, worker.Options{HeartbeatInterval: 5 * time.Millisecond, Logger: logging.NewNop()})

	handler := worker.HandlerFunc(func(ctx context.Context, task dispatch.Task) (json.RawMessage, error) {
		for i := 0; i < 2; i++ {
			select {
			case <-queue.beat:
			case <-time.After(2 * time.Second):
				return nil, errors.New("no heartbeat observed")
			}
		}
		return json.RawMessage(`{}`), nil
	})
	runner.Process(context.Background(), handler, &dispatch.Task{ID: 7, Kind: "chat_reply", Role: workers.RoleChat})

	queue.mu.Lock()
	defer queue.mu.Unlock()
	if queue.heartbeats < 2 {
		t.Fatalf("expected at least two heartbeats, got %d", queue.heartbeats)
	}
	if len(queue.completed) != 1 || queue.completed[0] != 7 {
		t.Fatalf("expected task 7 completed, got %v", queue.completed)
	}
}
