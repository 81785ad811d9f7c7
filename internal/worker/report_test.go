package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"leadflow/internal/app"
	"leadflow/internal/customer"
	"leadflow/internal/dispatch"
	"leadflow/internal/intake"
	"leadflow/internal/ledger"
	"leadflow/internal/services"
	"leadflow/internal/testsupport"
	"leadflow/internal/worker"
	"leadflow/internal/workers"
)

func TestLeadReportSummarizesConversation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()
	a, err := app.Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("app.Open: %v", err)
	}
	defer a.Close()

	first, err := a.Intake.Record(ctx, intake.Request{
		Profile:   customer.Profile{ExternalRef: "wa:4915100000", Name: "Jonas", Company: "Nordfracht"},
		Role:      workers.RoleChat,
		Direction: ledger.Inbound,
		Content:   "price for LCL to Ningbo?",
		Signals:   []string{"ask_price"},
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if _, err := a.Intake.Record(ctx, intake.Request{
		CustomerID: first.Customer.ID,
		SessionID:  first.Entry.SessionID,
		Role:       workers.RoleChat,
		Direction:  ledger.Inbound,
		Content:    "and the transit time? also what is the price for FCL",
		Signals:    []string{"ask_transit_time", "ask_price"},
	}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	handler := worker.NewLeadReportHandler(a.Customers, a.Ledger, a.Engine)
	raw, err := handler.Handle(ctx, dispatch.Task{ID: 1, Kind: worker.LeadReportKind, CustomerID: first.Customer.ID})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	var report worker.LeadReport
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Score != 65 || report.Level != customer.LevelA {
		t.Fatalf("expected score 65 level A, got %d %s", report.Score, report.Level)
	}
	if report.SignalCounts["ask_price"] != 2 || report.Sessions != 1 || report.Interactions != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(report.TopSignals) != 2 || report.TopSignals[0] != "ask_price" {
		t.Fatalf("unexpected top signals %v", report.TopSignals)
	}
	if report.ScoreDrift != 0 {
		t.Fatalf("expected no drift, got %d", report.ScoreDrift)
	}
}

func TestLeadReportWithoutCustomerIsPermanent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()
	a, err := app.Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("app.Open: %v", err)
	}
	defer a.Close()

	handler := worker.NewLeadReportHandler(a.Customers, a.Ledger, a.Engine)
	if _, err := handler.Handle(ctx, dispatch.Task{ID: 2, Kind: worker.LeadReportKind}); !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent failure, got %v", err)
	}
	if _, err := handler.Handle(ctx, dispatch.Task{ID: 4, Kind: "market_scan", CustomerID: 1}); !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent failure for unsupported kind, got %v", err)
	}
	if _, err := handler.Handle(ctx, dispatch.Task{ID: 3, Kind: worker.LeadReportKind, CustomerID: 999}); !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent failure for missing customer, got %v", err)
	}
}
