package intake_test

import (
	"context"
	"errors"
	"testing"

	"leadflow/internal/customer"
	"leadflow/internal/intake"
	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/notify"
	"leadflow/internal/scoring"
	"leadflow/internal/services"
	"leadflow/internal/testsupport"
	"leadflow/internal/workers"
)

func newService(t *testing.T) (*intake.Service, *ledger.Ledger) {
	t.Helper()
	svc, book, _ := newServiceWithCustomers(t)
	return svc, book
}

func newServiceWithCustomers(t *testing.T) (*intake.Service, *ledger.Ledger, *customer.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	engine := scoring.NewEngine(st, scoring.RulesFromConfig(cfg.Scoring), notify.NewTrigger(cfg.Notifications, logger), logger)
	customers := customer.NewStore(st, engine.Rules().Level, logger)
	return intake.New(st, customers, engine, logger), ledger.New(st, logger), customers
}

func TestRecordCreatesCustomerAndScoresInbound(t *testing.T) {
	svc, book := newService(t)
	ctx := context.Background()

	first, err := svc.Record(ctx, intake.Request{
		Profile:   customer.Profile{ExternalRef: "wechat:abc123", Name: "Li Wei", SourceChannel: "wechat"},
		Role:      workers.RoleChat,
		Direction: ledger.Inbound,
		Content:   "What is the price for a 40ft container to Felixstowe?",
		Signals:   []string{"ask_price", "provide_cargo_info"},
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if !first.CreatedCustomer || first.Customer.ExternalRef != "wechat:abc123" {
		t.Fatalf("expected new customer, got %+v", first.Customer)
	}
	if first.Score == nil || first.Score.Delta != 45 || first.Score.NewLevel != customer.LevelB {
		t.Fatalf("unexpected score %+v", first.Score)
	}
	if first.Entry.ScoreDelta != 45 || !first.Entry.Scored() || first.Entry.SessionID == "" {
		t.Fatalf("expected stamped entry with a session, got %+v", first.Entry)
	}
	if first.Customer.IntentScore != 45 || first.Customer.InteractionCount != 1 || first.Customer.LastContactAt == nil {
		t.Fatalf("unexpected customer state %+v", first.Customer)
	}

	reply, err := svc.Record(ctx, intake.Request{
		CustomerID: first.Customer.ID,
		SessionID:  first.Entry.SessionID,
		Role:       workers.RoleChat,
		Direction:  ledger.Outbound,
		Content:    "USD 2,150 all-in, 28 days port to port.",
		Signals:    []string{"ask_price"},
	})
	if err != nil {
		t.Fatalf("Record outbound failed: %v", err)
	}
	if reply.Score != nil || reply.Entry.Scored() {
		t.Fatalf("outbound messages must not be scored, got %+v", reply.Score)
	}
	if reply.Entry.Seq != 2 || reply.Customer.IntentScore != 45 || reply.Customer.InteractionCount != 2 {
		t.Fatalf("unexpected reply state entry=%+v customer=%+v", reply.Entry, reply.Customer)
	}

	again, err := svc.Record(ctx, intake.Request{
		Profile:   customer.Profile{ExternalRef: "wechat:abc123"},
		SessionID: first.Entry.SessionID,
		Role:      workers.RoleChat,
		Direction: ledger.Inbound,
		Content:   "Great, here is my email: li.wei@example.com",
		Signals:   []string{"leave_contact"},
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if again.CreatedCustomer || again.Customer.ID != first.Customer.ID {
		t.Fatalf("expected existing customer reused, got %+v", again.Customer)
	}
	if again.Customer.IntentScore != 95 || again.Customer.IntentLevel != customer.LevelS {
		t.Fatalf("expected 95/S, got %d/%s", again.Customer.IntentScore, again.Customer.IntentLevel)
	}
	if again.Score.Notification == nil {
		t.Fatal("expected level crossing notification")
	}

	history, err := book.History(ctx, first.Customer.ID, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 || history[0].ID != again.Entry.ID {
		t.Fatalf("expected three entries newest first, got %d", len(history))
	}
}

func TestRecordValidatesInput(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Record(ctx, intake.Request{Role: workers.RoleChat, Direction: ledger.Inbound, Content: "hi"}); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input without customer reference, got %v", err)
	}
	if _, err := svc.Record(ctx, intake.Request{CustomerID: 42, Role: workers.RoleChat, Direction: ledger.Inbound, Content: "hi"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown customer, got %v", err)
	}
	if _, err := svc.Record(ctx, intake.Request{
		Profile:   customer.Profile{ExternalRef: "email:x@example.com"},
		Role:      workers.RoleChat,
		Direction: ledger.Inbound,
	}); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty content, got %v", err)
	}
}

func TestRecordScoresDeactivatedCustomers(t *testing.T) {
	svc, book, customers := newServiceWithCustomers(t)
	ctx := context.Background()
	c, err := customers.Create(ctx, customer.Profile{Name: "Dormant Ltd"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if _, err := customers.Deactivate(ctx, c.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	for i := 0; i < 2; i++ {
		res, err := svc.Record(ctx, intake.Request{
			CustomerID: c.ID,
			Role:       workers.RoleChat,
			Direction:  ledger.Inbound,
			Content:    "Still shipping to Rotterdam?",
			Signals:    []string{"ask_transit_time"},
		})
		if err != nil {
			t.Fatalf("Record %d failed: %v", i+1, err)
		}
		if res.Score == nil || !res.Entry.Scored() {
			t.Fatalf("expected entry %d to be scored, got %+v", i+1, res.Entry)
		}
	}

	history, err := book.History(ctx, c.ID, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected two entries, got %d", len(history))
	}
	for _, entry := range history {
		if !entry.Scored() {
			t.Fatalf("expected every entry scored, got %+v", entry)
		}
	}
	got, err := customers.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if got.Active || got.IntentScore != 30 || got.IntentLevel != customer.LevelB {
		t.Fatalf("expected inactive 30/B, got %+v", got)
	}
}

func TestRecordRejectsForeignSessionWithoutWriting(t *testing.T) {
	svc, book, customers := newServiceWithCustomers(t)
	ctx := context.Background()

	first, err := svc.Record(ctx, intake.Request{
		Profile:   customer.Profile{ExternalRef: "web:owner"},
		Role:      workers.RoleChat,
		Direction: ledger.Inbound,
		Content:   "hello",
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	other, err := customers.Create(ctx, customer.Profile{Name: "Intruder"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	_, err = svc.Record(ctx, intake.Request{
		CustomerID: other.ID,
		SessionID:  first.Entry.SessionID,
		Role:       workers.RoleChat,
		Direction:  ledger.Inbound,
		Content:    "joining someone else's chat",
		Signals:    []string{"leave_contact"},
	})
	if !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input for a foreign session, got %v", err)
	}

	session, err := book.Session(ctx, first.Entry.SessionID)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if len(session) != 1 {
		t.Fatalf("expected the rejected message not to be stored, got %d entries", len(session))
	}
	got, err := customers.Get(ctx, other.ID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if got.InteractionCount != 0 || got.IntentScore != 0 {
		t.Fatalf("expected untouched customer, got %+v", got)
	}
}
