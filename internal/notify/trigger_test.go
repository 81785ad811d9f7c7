package notify_test

import (
	"context"
	"testing"

	"leadflow/internal/config"
	"leadflow/internal/customer"
	"leadflow/internal/logging"
	"leadflow/internal/notify"
	"leadflow/internal/store"
	"leadflow/internal/testsupport"
)

func setup(t *testing.T) (*store.Store, *notify.Trigger, *notify.Store, int64) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithNotifyKinds("draft_copy"))
	st := testsupport.MustOpenStore(t, cfg)
	now := store.Now()
	res, err := st.Exec(context.Background(),
		`INSERT INTO customers (name, intent_level, created_at, updated_at) VALUES ('Umbrella', 'C', ?, ?)`, now, now)
	if err != nil {
		t.Fatalf("insert customer: %v", err)
	}
	id, _ := res.LastInsertId()
	return st, notify.NewTrigger(cfg.Notifications, logging.NewNop()), notify.NewStore(st), id
}

func crossed(t *testing.T, st *store.Store, trigger *notify.Trigger, customerID int64, prev, next customer.Level) *notify.Notification {
	t.Helper()
	var n *notify.Notification
	err := st.WithTx(context.Background(), func(q store.Querier) error {
		var err error
		n, err = trigger.LevelCrossed(context.Background(), q, customerID, prev, next)
		return err
	})
	if err != nil {
		t.Fatalf("LevelCrossed failed: %v", err)
	}
	return n
}

func TestLevelCrossedFiresOncePerLevel(t *testing.T) {
	st, trigger, notifications, customerID := setup(t)

	first := crossed(t, st, trigger, customerID, customer.LevelB, customer.LevelA)
	if first == nil {
		t.Fatal("expected notification for B->A")
	}
	if first.Payload.PreviousLevel != customer.LevelB || first.Payload.NewLevel != customer.LevelA {
		t.Fatalf("unexpected payload %+v", first.Payload)
	}
	if first.Payload.CustomerID != customerID || first.Payload.Category != notify.CategoryLevelCrossed {
		t.Fatalf("unexpected payload %+v", first.Payload)
	}
	if first.Audience != config.Default().Notifications.Audience {
		t.Fatalf("unexpected audience %q", first.Audience)
	}

	if n := crossed(t, st, trigger, customerID, customer.LevelA, customer.LevelB); n != nil {
		t.Fatalf("expected no notification for downward crossing, got %+v", n)
	}
	if n := crossed(t, st, trigger, customerID, customer.LevelA, customer.LevelA); n != nil {
		t.Fatalf("expected no notification without a crossing, got %+v", n)
	}
	if n := crossed(t, st, trigger, customerID, customer.LevelB, customer.LevelA); n != nil {
		t.Fatalf("expected B->A to be deduplicated, got %+v", n)
	}
	if n := crossed(t, st, trigger, customerID, customer.LevelA, customer.LevelS); n == nil {
		t.Fatal("expected notification for A->S")
	}

	list, err := notifications.List(context.Background(), notify.Filter{CustomerID: customerID})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected two notifications, got %d", len(list))
	}
	if list[0].NewLevel != customer.LevelS {
		t.Fatalf("expected newest first, got %+v", list[0])
	}
}

func TestTaskCompletedOnlyForConfiguredKinds(t *testing.T) {
	st, trigger, notifications, customerID := setup(t)
	ctx := context.Background()
	now := store.Now()
	res, err := st.Exec(ctx,
		`INSERT INTO tasks (kind, role, status, priority, customer_id, created_at, updated_at) VALUES ('draft_copy', 'content', 'completed', 3, ?, ?, ?)`,
		customerID, now, now)
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}
	taskID, _ := res.LastInsertId()

	var fired, skipped *notify.Notification
	err = st.WithTx(ctx, func(q store.Querier) error {
		var err error
		if fired, err = trigger.TaskCompleted(ctx, q, notify.TaskEvent{TaskID: taskID, Kind: "Draft_Copy", Role: "content", CustomerID: customerID}); err != nil {
			return err
		}
		skipped, err = trigger.TaskCompleted(ctx, q, notify.TaskEvent{TaskID: taskID, Kind: "chat_reply", Role: "chat"})
		return err
	})
	if err != nil {
		t.Fatalf("TaskCompleted failed: %v", err)
	}
	if fired == nil || fired.TaskID != taskID || fired.Category != notify.CategoryTaskCompleted {
		t.Fatalf("expected task completion notification, got %+v", fired)
	}
	if skipped != nil {
		t.Fatalf("expected no notification for chat_reply, got %+v", skipped)
	}

	read, err := notifications.MarkRead(ctx, fired.ID)
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if !read.Read {
		t.Fatal("expected notification to be read")
	}
	unread, _ := notifications.List(ctx, notify.Filter{UnreadOnly: true})
	if len(unread) != 0 {
		t.Fatalf("expected no unread notifications, got %d", len(unread))
	}
}
