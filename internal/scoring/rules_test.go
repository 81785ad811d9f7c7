package scoring_test

import (
	"context"
	"testing"

	"leadflow/internal/config"
	"leadflow/internal/customer"
	"leadflow/internal/scoring"
	"leadflow/internal/testsupport"
)

func TestLevelForBoundaries(t *testing.T) {
	thresholds := config.Default().Scoring.Thresholds
	cases := []struct {
		score int
		want  customer.Level
	}{
		{-40, customer.LevelC},
		{0, customer.LevelC},
		{29, customer.LevelC},
		{30, customer.LevelB},
		{59, customer.LevelB},
		{60, customer.LevelA},
		{79, customer.LevelA},
		{80, customer.LevelS},
		{125, customer.LevelS},
	}
	for _, tc := range cases {
		if got := scoring.LevelFor(tc.score, thresholds); got != tc.want {
			t.Fatalf("LevelFor(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestEvaluateSeparatesUnknownSignals(t *testing.T) {
	rules := scoring.RulesFromConfig(config.Default().Scoring)
	delta, applied, unknown := rules.Evaluate([]string{"ask_price", "wants_discount", "just_asking"})
	if delta != 15 {
		t.Fatalf("expected delta 15, got %d", delta)
	}
	if len(applied) != 2 || applied[0] != "ask_price" || applied[1] != "just_asking" {
		t.Fatalf("unexpected applied signals %v", applied)
	}
	if len(unknown) != 1 || unknown[0] != "wants_discount" {
		t.Fatalf("unexpected unknown signals %v", unknown)
	}
}

func TestRulesSnapshotIsIndependentOfConfig(t *testing.T) {
	cfg := config.Default().Scoring
	rules := scoring.RulesFromConfig(cfg)
	cfg.Signals["ask_price"] = 99
	if rules.Signals["ask_price"] != 25 {
		t.Fatalf("expected snapshot to keep 25, got %d", rules.Signals["ask_price"])
	}
	if extra := rules.Unrecognized(); len(extra) != 0 {
		t.Fatalf("expected builtin table to be fully recognized, got %v", extra)
	}
}

func TestRecordRulesOncePerVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	rules := scoring.RulesFromConfig(cfg.Scoring)

	created, err := scoring.RecordRules(ctx, st, rules, "builtin")
	if err != nil || !created {
		t.Fatalf("expected first record to be written, created=%v err=%v", created, err)
	}
	created, err = scoring.RecordRules(ctx, st, rules, "builtin")
	if err != nil || created {
		t.Fatalf("expected identical rules to be ignored, created=%v err=%v", created, err)
	}

	rules.Signals = map[string]int{"ask_price": 30}
	if created, err = scoring.RecordRules(ctx, st, rules, "file"); err != nil || !created {
		t.Fatalf("expected changed table to be recorded, created=%v err=%v", created, err)
	}

	records, err := scoring.RuleRecords(ctx, st)
	if err != nil {
		t.Fatalf("RuleRecords failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected two records, got %d", len(records))
	}
	if records[0].Source != "file" || records[0].Rules.Signals["ask_price"] != 30 {
		t.Fatalf("unexpected newest record %+v", records[0])
	}
}
