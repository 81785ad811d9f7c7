package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"leadflow/internal/config"
	"leadflow/internal/customer"
	"leadflow/internal/store"
)

// Rules is one immutable snapshot of the signal table and level thresholds.
// A snapshot never changes after it is built; reloading configuration yields
// a new one.
type Rules struct {
	Version    string            `json:"version"`
	Signals    map[string]int    `json:"signals"`
	Thresholds config.Thresholds `json:"thresholds"`
}

// RulesFromConfig copies the scoring section into a snapshot.
func RulesFromConfig(cfg config.Scoring) Rules {
	signals := make(map[string]int, len(cfg.Signals))
	for key, delta := range cfg.Signals {
		signals[key] = delta
	}
	return Rules{Version: cfg.Version, Signals: signals, Thresholds: cfg.Thresholds}
}

// LevelFor maps a score to its level: S at or above t.S, A at or above t.A,
// B at or above t.B, C below.
func LevelFor(score int, t config.Thresholds) customer.Level {
	switch {
	case score >= t.S:
		return customer.LevelS
	case score >= t.A:
		return customer.LevelA
	case score >= t.B:
		return customer.LevelB
	default:
		return customer.LevelC
	}
}

// Level applies the snapshot's thresholds.
func (r Rules) Level(score int) customer.Level {
	return LevelFor(score, r.Thresholds)
}

// Evaluate sums the deltas of a normalized signal set. Signals missing from
// the table are returned separately and contribute zero.
func (r Rules) Evaluate(signals []string) (delta int, applied, unknown []string) {
	for _, signal := range signals {
		value, ok := r.Signals[signal]
		if !ok {
			unknown = append(unknown, signal)
			continue
		}
		delta += value
		applied = append(applied, signal)
	}
	return delta, applied, unknown
}

// Vocabulary lists configured signal keys in sorted order.
func (r Rules) Vocabulary() []string {
	keys := make([]string, 0, len(r.Signals))
	for key := range r.Signals {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Unrecognized returns table keys outside the builtin vocabulary.
func (r Rules) Unrecognized() []string {
	builtin := config.DefaultSignals()
	var out []string
	for _, key := range r.Vocabulary() {
		if _, ok := builtin[key]; !ok {
			out = append(out, key)
		}
	}
	return out
}

// RuleRecord is a persisted rule snapshot.
type RuleRecord struct {
	ID       int64     `json:"id"`
	Version  string    `json:"version"`
	Source   string    `json:"source"`
	Rules    Rules     `json:"rules"`
	LoadedAt time.Time `json:"loadedAt"`
}

// RecordRules persists the snapshot once per distinct (version, table) pair.
// It reports whether a new record was written.
func RecordRules(ctx context.Context, st *store.Store, rules Rules, source string) (bool, error) {
	data, err := json.Marshal(rules)
	if err != nil {
		return false, fmt.Errorf("encode scoring rules: %w", err)
	}
	res, err := st.Exec(ctx,
		`INSERT OR IGNORE INTO config_records (version, source, rules, loaded_at) VALUES (?, ?, ?, ?)`,
		rules.Version, source, string(data), store.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("record scoring rules: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// RuleRecords lists persisted rule snapshots, newest first.
func RuleRecords(ctx context.Context, st *store.Store) ([]RuleRecord, error) {
	rows, err := st.DB().QueryContext(ctx,
		`SELECT id, version, source, rules, loaded_at FROM config_records ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query rule records: %w", err)
	}
	defer rows.Close()

	var out []RuleRecord
	for rows.Next() {
		var (
			record    RuleRecord
			rulesRaw  string
			loadedRaw string
		)
		if err := rows.Scan(&record.ID, &record.Version, &record.Source, &rulesRaw, &loadedRaw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(rulesRaw), &record.Rules); err != nil {
			return nil, fmt.Errorf("decode rule record %d: %w", record.ID, err)
		}
		if loaded, err := store.ParseTime(loadedRaw); err == nil {
			record.LoadedAt = loaded
		}
		out = append(out, record)
	}
	return out, rows.Err()
}
