package workers_test

import (
	"context"
	"errors"
	"testing"

	"leadflow/internal/logging"
	"leadflow/internal/services"
	"leadflow/internal/store"
	"leadflow/internal/testsupport"
	"leadflow/internal/workers"
)

func newRegistry(t *testing.T) (*workers.Registry, *store.Store) {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	reg := workers.NewRegistry(st, logging.NewNop())
	if err := reg.Seed(context.Background()); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	return reg, st
}

func insertProcessingTask(t *testing.T, st *store.Store, role workers.Role) int64 {
	t.Helper()
	now := store.Now()
	res, err := st.Exec(context.Background(),
		`INSERT INTO tasks (kind, role, status, priority, retry_limit, created_at, updated_at, started_at)
         VALUES ('draft_copy', ?, 'processing', 5, 3, ?, ?, ?)`,
		role, now, now, now,
	)
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("last insert id: %v", err)
	}
	return id
}

func TestParseRoleAcceptsAliases(t *testing.T) {
	cases := map[string]workers.Role{
		"coordinator":    workers.RoleCoordinator,
		"Commander":      workers.RoleCoordinator,
		"copywriter":     workers.RoleContent,
		"sales":          workers.RoleChat,
		"follow-up":      workers.RoleFollowUp,
		"follower":       workers.RoleFollowUp,
		"analyst":        workers.RoleAnalyst,
		"lead discovery": workers.RoleLeadDiscovery,
		"hunter":         workers.RoleLeadDiscovery,
	}
	for input, want := range cases {
		got, err := workers.ParseRole(input)
		if err != nil {
			t.Fatalf("ParseRole(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q) = %q, want %q", input, got, want)
		}
	}
	if _, err := workers.ParseRole("janitor"); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown role, got %v", err)
	}
}

func TestSeedAndList(t *testing.T) {
	reg, _ := newRegistry(t)
	list, err := reg.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != len(workers.Roles()) {
		t.Fatalf("expected %d workers, got %d", len(workers.Roles()), len(list))
	}
	for i, role := range workers.Roles() {
		if list[i].Role != role {
			t.Fatalf("expected role %q at %d, got %q", role, i, list[i].Role)
		}
		if list[i].Availability != workers.Available {
			t.Fatalf("expected %s available, got %s", role, list[i].Availability)
		}
	}
}

func TestSetAvailabilityRejectsBoundWorker(t *testing.T) {
	reg, st := newRegistry(t)
	ctx := context.Background()
	taskID := insertProcessingTask(t, st, workers.RoleContent)

	if err := st.WithTx(ctx, func(q store.Querier) error {
		return workers.Bind(ctx, q, workers.RoleContent, taskID)
	}); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	if _, err := reg.SetAvailability(ctx, workers.RoleContent, workers.Offline); !errors.Is(err, workers.ErrWorkerBound) {
		t.Fatalf("expected ErrWorkerBound, got %v", err)
	}
	if _, err := reg.SetAvailability(ctx, workers.RoleContent, workers.Busy); err != nil {
		t.Fatalf("expected busy to be allowed while bound: %v", err)
	}
	w, err := reg.SetAvailability(ctx, workers.RoleChat, workers.Offline)
	if err != nil {
		t.Fatalf("SetAvailability on unbound role failed: %v", err)
	}
	if w.Availability != workers.Offline {
		t.Fatalf("expected offline, got %s", w.Availability)
	}
}

func TestReleaseRebindsToRemainingTask(t *testing.T) {
	reg, st := newRegistry(t)
	ctx := context.Background()
	first := insertProcessingTask(t, st, workers.RoleChat)
	second := insertProcessingTask(t, st, workers.RoleChat)

	err := st.WithTx(ctx, func(q store.Querier) error {
		if err := workers.Bind(ctx, q, workers.RoleChat, first); err != nil {
			return err
		}
		return workers.Bind(ctx, q, workers.RoleChat, second)
	})
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	w, err := reg.Get(ctx, workers.RoleChat)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if w.CurrentTaskID != first || w.Availability != workers.Busy {
		t.Fatalf("expected busy bound to %d, got %+v", first, w)
	}

	if _, err := st.Exec(ctx, `UPDATE tasks SET status = 'completed' WHERE id = ?`, first); err != nil {
		t.Fatalf("complete task: %v", err)
	}
	if err := st.WithTx(ctx, func(q store.Querier) error {
		return workers.Release(ctx, q, workers.RoleChat, first)
	}); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	w, _ = reg.Get(ctx, workers.RoleChat)
	if w.CurrentTaskID != second || w.Availability != workers.Busy {
		t.Fatalf("expected rebinding to %d, got %+v", second, w)
	}

	if _, err := st.Exec(ctx, `UPDATE tasks SET status = 'completed' WHERE id = ?`, second); err != nil {
		t.Fatalf("complete task: %v", err)
	}
	if err := st.WithTx(ctx, func(q store.Querier) error {
		return workers.Release(ctx, q, workers.RoleChat, second)
	}); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	w, _ = reg.Get(ctx, workers.RoleChat)
	if w.Bound() || w.Availability != workers.Available {
		t.Fatalf("expected unbound available worker, got %+v", w)
	}
}

func TestCountersAndDailyReset(t *testing.T) {
	reg, st := newRegistry(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := st.WithTx(ctx, func(q store.Querier) error {
			return workers.RecordCompletion(ctx, q, workers.RoleAnalyst)
		}); err != nil {
			t.Fatalf("RecordCompletion failed: %v", err)
		}
	}
	w, err := reg.ResetDailyCounters(ctx, workers.RoleAnalyst)
	if err != nil {
		t.Fatalf("ResetDailyCounters failed: %v", err)
	}
	if w.CompletedToday != 0 || w.CompletedTotal != 2 {
		t.Fatalf("expected today=0 total=2, got %+v", w)
	}
	if w.DailyResetAt == nil {
		t.Fatal("expected daily reset timestamp")
	}
}
