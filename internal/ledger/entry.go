package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"leadflow/internal/services"
	"leadflow/internal/store"
	"leadflow/internal/workers"
)

// Direction records who sent a message.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// ParseDirection validates a direction name.
func ParseDirection(value string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(value))); d {
	case Inbound, Outbound:
		return d, nil
	default:
		return "", services.Invalid("ledger", "parse direction", fmt.Sprintf("unknown direction %q", value))
	}
}

// Entry is one recorded message. ScoreDelta stays zero until the scoring
// engine stamps it.
type Entry struct {
	ID         int64        `json:"id"`
	CustomerID int64        `json:"customerId"`
	SessionID  string       `json:"sessionId"`
	Seq        int          `json:"seq"`
	Role       workers.Role `json:"role"`
	Direction  Direction    `json:"direction"`
	Content    string       `json:"content"`
	Signals    []string     `json:"signals"`
	ScoreDelta int          `json:"scoreDelta"`
	ScoredAt   *time.Time   `json:"scoredAt,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// Scored reports whether the scoring engine has processed the entry.
func (e Entry) Scored() bool {
	return e.ScoredAt != nil
}

const entryColumns = "id, customer_id, session_id, seq, role, direction, content, signals, score_delta, scored_at, created_at"

func scanEntry(scanner store.Scanner) (*Entry, error) {
	var (
		e          Entry
		role       string
		direction  string
		signalsRaw string
		scoredRaw  sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(
		&e.ID,
		&e.CustomerID,
		&e.SessionID,
		&e.Seq,
		&role,
		&direction,
		&e.Content,
		&signalsRaw,
		&e.ScoreDelta,
		&scoredRaw,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	e.Role = workers.Role(role)
	e.Direction = Direction(direction)
	if signalsRaw != "" {
		if err := json.Unmarshal([]byte(signalsRaw), &e.Signals); err != nil {
			return nil, fmt.Errorf("decode signals for entry %d: %w", e.ID, err)
		}
	}
	if e.Signals == nil {
		e.Signals = []string{}
	}
	e.ScoredAt = store.ParseNullableTime(scoredRaw.String, scoredRaw.Valid)
	if created, err := store.ParseTime(createdRaw); err == nil {
		e.CreatedAt = created
	}
	return &e, nil
}

// NormalizeSignals lowercases, trims and dedupes signal keys, keeping first-seen order.
func NormalizeSignals(signals []string) []string {
	out := make([]string, 0, len(signals))
	seen := make(map[string]struct{}, len(signals))
	for _, signal := range signals {
		key := strings.ToLower(strings.TrimSpace(signal))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
