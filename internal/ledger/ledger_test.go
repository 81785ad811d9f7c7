package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/services"
	"leadflow/internal/store"
	"leadflow/internal/testsupport"
	"leadflow/internal/workers"
)

func newLedger(t *testing.T) (*ledger.Ledger, *store.Store, int64) {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	now := store.Now()
	res, err := st.Exec(context.Background(),
		`INSERT INTO customers (name, intent_level, created_at, updated_at) VALUES ('Initech', 'C', ?, ?)`, now, now)
	if err != nil {
		t.Fatalf("insert customer: %v", err)
	}
	id, _ := res.LastInsertId()
	return ledger.New(st, logging.NewNop()), st, id
}

func TestAppendAssignsSessionSequence(t *testing.T) {
	l, _, customerID := newLedger(t)
	ctx := context.Background()
	session := ledger.NewSessionID()

	first, err := l.Append(ctx, ledger.AppendRequest{
		CustomerID: customerID,
		SessionID:  session,
		Role:       workers.RoleChat,
		Direction:  ledger.Inbound,
		Content:    "How much to ship a container to Hamburg?",
		Signals:    []string{"Ask_Price", "ask_price", " "},
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if first.Seq != 1 || first.ScoreDelta != 0 || first.Scored() {
		t.Fatalf("unexpected first entry: %+v", first)
	}
	if len(first.Signals) != 1 || first.Signals[0] != "ask_price" {
		t.Fatalf("expected normalized signals, got %v", first.Signals)
	}

	second, err := l.Append(ctx, ledger.AppendRequest{
		CustomerID: customerID,
		SessionID:  session,
		Role:       workers.RoleChat,
		Direction:  ledger.Outbound,
		Content:    "Roughly 2,400 USD.",
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if second.Seq != 2 {
		t.Fatalf("expected seq 2, got %d", second.Seq)
	}

	entries, err := l.Session(ctx, session)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != first.ID || entries[1].ID != second.ID {
		t.Fatalf("expected session order, got %+v", entries)
	}

	history, err := l.History(ctx, customerID, 1)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 || history[0].ID != second.ID {
		t.Fatalf("expected newest entry first, got %+v", history)
	}
}

func TestAppendValidatesShape(t *testing.T) {
	l, _, customerID := newLedger(t)
	valid := ledger.AppendRequest{
		CustomerID: customerID,
		SessionID:  "s-1",
		Role:       workers.RoleChat,
		Direction:  ledger.Inbound,
		Content:    "hello",
	}
	cases := map[string]func(*ledger.AppendRequest){
		"customer":  func(r *ledger.AppendRequest) { r.CustomerID = 0 },
		"session":   func(r *ledger.AppendRequest) { r.SessionID = " " },
		"role":      func(r *ledger.AppendRequest) { r.Role = "janitor" },
		"direction": func(r *ledger.AppendRequest) { r.Direction = "sideways" },
		"content":   func(r *ledger.AppendRequest) { r.Content = "" },
	}
	for name, mutate := range cases {
		req := valid
		mutate(&req)
		if _, err := l.Append(context.Background(), req); !errors.Is(err, services.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", name, err)
		}
	}

	missing := valid
	missing.CustomerID = 999
	if _, err := l.Append(context.Background(), missing); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown customer, got %v", err)
	}
}

func TestStampScoreOnlyOnce(t *testing.T) {
	l, st, customerID := newLedger(t)
	ctx := context.Background()
	entry, err := l.Append(ctx, ledger.AppendRequest{
		CustomerID: customerID,
		SessionID:  "s-2",
		Role:       workers.RoleChat,
		Direction:  ledger.Inbound,
		Content:    "call me",
		Signals:    []string{"leave_contact"},
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	var stamped []bool
	for i := 0; i < 2; i++ {
		err := st.WithTx(ctx, func(q store.Querier) error {
			ok, err := ledger.StampScore(ctx, q, entry.ID, 50+i, time.Now())
			stamped = append(stamped, ok)
			return err
		})
		if err != nil {
			t.Fatalf("StampScore failed: %v", err)
		}
	}
	if !stamped[0] || stamped[1] {
		t.Fatalf("expected only first stamp to apply, got %v", stamped)
	}

	got, err := l.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ScoreDelta != 50 || !got.Scored() {
		t.Fatalf("expected stamped delta 50, got %+v", got)
	}

	scored, err := ledger.ScoredEntries(ctx, st.DB(), customerID)
	if err != nil {
		t.Fatalf("ScoredEntries failed: %v", err)
	}
	if len(scored) != 1 {
		t.Fatalf("expected one scored entry, got %d", len(scored))
	}
}

func TestSessionOwnerIsFirstCustomer(t *testing.T) {
	l, st, customerID := newLedger(t)
	ctx := context.Background()
	now := store.Now()
	res, err := st.Exec(ctx, `INSERT INTO customers (name, intent_level, created_at, updated_at) VALUES ('Other', 'C', ?, ?)`, now, now)
	if err != nil {
		t.Fatalf("insert customer: %v", err)
	}
	other, _ := res.LastInsertId()

	if _, found, err := ledger.SessionOwner(ctx, st.DB(), "shared"); err != nil || found {
		t.Fatalf("expected no owner for an unused session, got found=%v err=%v", found, err)
	}
	req := ledger.AppendRequest{CustomerID: customerID, SessionID: "shared", Role: workers.RoleChat, Direction: ledger.Inbound, Content: "hi"}
	if _, err := l.Append(ctx, req); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	req.CustomerID = other
	second, err := l.Append(ctx, req)
	if err != nil {
		t.Fatalf("expected the ledger to accept any valid append, got %v", err)
	}
	if second.Seq != 2 {
		t.Fatalf("expected seq 2 in the shared session, got %d", second.Seq)
	}
	owner, found, err := ledger.SessionOwner(ctx, st.DB(), "shared")
	if err != nil || !found || owner != customerID {
		t.Fatalf("expected owner %d, got %d found=%v err=%v", customerID, owner, found, err)
	}
}
