package customer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadflow/internal/customer"
	"leadflow/internal/logging"
	"leadflow/internal/services"
	"leadflow/internal/store"
	"leadflow/internal/testsupport"
)

func newStore(t *testing.T) (*customer.Store, *store.Store) {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	leveler := func(score int) customer.Level {
		if score >= 30 {
			return customer.LevelB
		}
		return customer.LevelC
	}
	return customer.NewStore(st, leveler, logging.NewNop()), st
}

func TestCreateStartsAtZero(t *testing.T) {
	customers, _ := newStore(t)
	c, err := customers.Create(context.Background(), customer.Profile{Name: "Acme Freight", SourceChannel: "web"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if c.IntentScore != 0 || c.IntentLevel != customer.LevelC {
		t.Fatalf("expected score 0 level C, got %d %s", c.IntentScore, c.IntentLevel)
	}
	if !c.Active {
		t.Fatal("expected new customer to be active")
	}

	if _, err := customers.Create(context.Background(), customer.Profile{}); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty profile, got %v", err)
	}
}

func TestEnsureIsIdempotentByExternalRef(t *testing.T) {
	customers, _ := newStore(t)
	ctx := context.Background()

	first, created, err := customers.Ensure(ctx, customer.Profile{ExternalRef: "wa:+8613800000000", Name: "Li"})
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if !created {
		t.Fatal("expected first Ensure to create")
	}
	second, created, err := customers.Ensure(ctx, customer.Profile{ExternalRef: " wa:+8613800000000 ", Name: "Someone Else"})
	if err != nil {
		t.Fatalf("second Ensure failed: %v", err)
	}
	if created || second.ID != first.ID || second.Name != "Li" {
		t.Fatalf("expected existing customer, got created=%v %+v", created, second)
	}

	if _, _, err := customers.Ensure(ctx, customer.Profile{Name: "No Ref"}); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input without ref, got %v", err)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	customers, _ := newStore(t)
	if _, err := customers.Get(context.Background(), 404); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := customers.Deactivate(context.Background(), 404); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Deactivate, got %v", err)
	}
}

func TestLifecycleOperations(t *testing.T) {
	customers, st := newStore(t)
	ctx := context.Background()
	c, err := customers.Create(ctx, customer.Profile{Name: "Globex", Owner: "alice"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	c, err = customers.Reassign(ctx, c.ID, "bob")
	if err != nil || c.Owner != "bob" {
		t.Fatalf("Reassign: %v %+v", err, c)
	}

	due := time.Now().Add(time.Hour).UTC()
	c, err = customers.ScheduleFollowUp(ctx, c.ID, due)
	if err != nil || c.NextFollowUpAt == nil {
		t.Fatalf("ScheduleFollowUp: %v %+v", err, c)
	}
	cutoff := due.Add(time.Minute)
	dueList, err := customers.List(ctx, customer.Filter{DueBefore: &cutoff})
	if err != nil || len(dueList) != 1 {
		t.Fatalf("expected one due customer, got %d (%v)", len(dueList), err)
	}

	c, err = customers.RecordFollowUp(ctx, c.ID)
	if err != nil || c.NextFollowUpAt != nil || c.LastFollowUpAt == nil {
		t.Fatalf("RecordFollowUp: %v %+v", err, c)
	}

	if err := st.WithTx(ctx, func(q store.Querier) error {
		return customer.Touch(ctx, q, c.ID, time.Now())
	}); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	c, _ = customers.Get(ctx, c.ID)
	if c.InteractionCount != 1 || c.LastContactAt == nil {
		t.Fatalf("expected touched customer, got %+v", c)
	}

	if _, err := customers.Deactivate(ctx, c.ID); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}
	active, err := customers.List(ctx, customer.Filter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active customers, got %d", len(active))
	}
	all, _ := customers.List(ctx, customer.Filter{Owner: "bob"})
	if len(all) != 1 {
		t.Fatalf("expected deactivated customer to be retained, got %d", len(all))
	}
}

func TestLevelOrdering(t *testing.T) {
	if !customer.LevelA.Above(customer.LevelB) || customer.LevelC.Above(customer.LevelB) {
		t.Fatal("unexpected level ordering")
	}
	if _, err := customer.ParseLevel("x"); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid level error, got %v", err)
	}
	if level, err := customer.ParseLevel(" s "); err != nil || level != customer.LevelS {
		t.Fatalf("ParseLevel(s) = %q, %v", level, err)
	}
}
