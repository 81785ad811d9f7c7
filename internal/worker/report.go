package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"leadflow/internal/customer"
	"leadflow/internal/dispatch"
	"leadflow/internal/ledger"
	"leadflow/internal/scoring"
	"leadflow/internal/services"
)

// LeadReportKind is the task kind served by the built-in report handler.
const LeadReportKind = "lead_report"

const reportHistoryLimit = 50

// LeadReport is the output of a lead_report task.
type LeadReport struct {
	CustomerID     int64          `json:"customerId"`
	Name           string         `json:"name"`
	Company        string         `json:"company,omitempty"`
	Owner          string         `json:"owner,omitempty"`
	Score          int            `json:"score"`
	Level          customer.Level `json:"level"`
	Interactions   int            `json:"interactions"`
	LastContactAt  *time.Time     `json:"lastContactAt,omitempty"`
	NextFollowUpAt *time.Time     `json:"nextFollowUpAt,omitempty"`
	SignalCounts   map[string]int `json:"signalCounts"`
	TopSignals     []string       `json:"topSignals"`
	Sessions       int            `json:"sessions"`
	ScoreDrift     int            `json:"scoreDrift"`
	GeneratedAt    time.Time      `json:"generatedAt"`
}

type leadReportHandler struct {
	customers *customer.Store
	entries   *ledger.Ledger
	engine    *scoring.Engine
}

// NewLeadReportHandler summarizes a customer's recent conversation and score
// for the analyst role. Tasks of another kind or without a customer fail
// permanently.
func NewLeadReportHandler(customers *customer.Store, entries *ledger.Ledger, engine *scoring.Engine) Handler {
	return &leadReportHandler{customers: customers, entries: entries, engine: engine}
}

func (h *leadReportHandler) Handle(ctx context.Context, task dispatch.Task) (json.RawMessage, error) {
	if task.Kind != LeadReportKind {
		return nil, services.Wrap(services.ErrPermanent, "worker", "lead report",
			fmt.Sprintf("unsupported task kind %q", task.Kind), nil)
	}
	if task.CustomerID <= 0 {
		return nil, services.Wrap(services.ErrPermanent, "worker", "lead report",
			fmt.Sprintf("task %d has no customer", task.ID), nil)
	}
	c, err := h.customers.Get(ctx, task.CustomerID)
	if errors.Is(err, services.ErrNotFound) {
		return nil, services.Wrap(services.ErrPermanent, "worker", "lead report", "customer missing", err)
	}
	if err != nil {
		return nil, err
	}
	history, err := h.entries.History(ctx, c.ID, reportHistoryLimit)
	if err != nil {
		return nil, err
	}
	replay, err := h.engine.Replay(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	report := LeadReport{
		CustomerID:     c.ID,
		Name:           c.Name,
		Company:        c.Company,
		Owner:          c.Owner,
		Score:          c.IntentScore,
		Level:          c.IntentLevel,
		Interactions:   c.InteractionCount,
		LastContactAt:  c.LastContactAt,
		NextFollowUpAt: c.NextFollowUpAt,
		SignalCounts:   make(map[string]int),
		ScoreDrift:     replay.Drift,
		GeneratedAt:    time.Now().UTC(),
	}
	sessions := make(map[string]struct{})
	for _, entry := range history {
		sessions[entry.SessionID] = struct{}{}
		for _, signal := range entry.Signals {
			report.SignalCounts[signal]++
		}
	}
	report.Sessions = len(sessions)
	report.TopSignals = topSignals(report.SignalCounts, 3)

	return json.Marshal(report)
}

// topSignals orders by count then name and keeps the first n.
func topSignals(counts map[string]int, n int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}
