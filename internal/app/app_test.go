package app_test

import (
	"context"
	"testing"

	"leadflow/internal/app"
	"leadflow/internal/customer"
	"leadflow/internal/dispatch"
	"leadflow/internal/intake"
	"leadflow/internal/ledger"
	"leadflow/internal/notify"
	"leadflow/internal/testsupport"
	"leadflow/internal/workers"
)

func TestOpenWiresSharedStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	a, err := app.Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	roster, err := a.Workers.List(ctx)
	if err != nil {
		t.Fatalf("List workers failed: %v", err)
	}
	if len(roster) != 6 {
		t.Fatalf("expected every role seeded, got %d", len(roster))
	}
	if a.Rules.Version != cfg.Scoring.Version {
		t.Fatalf("expected rules version %q, got %q", cfg.Scoring.Version, a.Rules.Version)
	}
}

func TestInboundSignalsDrivePriorityAndNotifications(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	a, err := app.Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	res, err := a.Intake.Record(ctx, intake.Request{
		Profile:   customer.Profile{ExternalRef: "wa:8613800000000", Name: "Li Wei"},
		Role:      workers.RoleChat,
		Direction: ledger.Inbound,
		Content:   "How much to ship 2 pallets to Hamburg? my email is li@example.com",
		Signals:   []string{"ask_price", "leave_contact", "provide_cargo_info"},
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if res.Customer.IntentScore != 95 || res.Customer.IntentLevel != customer.LevelS {
		t.Fatalf("expected score 95 level S, got %d %s", res.Customer.IntentScore, res.Customer.IntentLevel)
	}

	task, err := a.Dispatcher.Enqueue(ctx, dispatch.EnqueueRequest{
		Kind:       "lead_report",
		Role:       workers.RoleAnalyst,
		CustomerID: res.Customer.ID,
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if task.Priority != cfg.Dispatch.LevelPriority["S"] {
		t.Fatalf("expected S-level priority %d, got %d", cfg.Dispatch.LevelPriority["S"], task.Priority)
	}

	notes, err := a.Notifications.List(ctx, notify.Filter{CustomerID: res.Customer.ID})
	if err != nil {
		t.Fatalf("List notifications failed: %v", err)
	}
	if len(notes) != 1 || notes[0].NewLevel != customer.LevelS {
		t.Fatalf("expected one S-level notification, got %+v", notes)
	}
}
