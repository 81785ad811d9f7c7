package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"leadflow/internal/logging"
	"leadflow/internal/services"
	"leadflow/internal/store"
	"leadflow/internal/workers"
)

// AppendRequest describes one message to record.
type AppendRequest struct {
	CustomerID int64
	SessionID  string
	Role       workers.Role
	Direction  Direction
	Content    string
	Signals    []string
}

// Ledger is the append-only conversation record.
type Ledger struct {
	db     *store.Store
	logger *slog.Logger
}

// New constructs a ledger backed by st.
func New(st *store.Store, logger *slog.Logger) *Ledger {
	return &Ledger{db: st, logger: logging.NewComponentLogger(logger, "ledger")}
}

// NewSessionID returns a fresh conversation session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

func (r AppendRequest) validate() error {
	switch {
	case r.CustomerID <= 0:
		return services.Invalid("ledger", "append", "customer id required")
	case strings.TrimSpace(r.SessionID) == "":
		return services.Invalid("ledger", "append", "session id required")
	case !r.Role.Valid():
		return services.Invalid("ledger", "append", fmt.Sprintf("unknown role %q", r.Role))
	case r.Direction != Inbound && r.Direction != Outbound:
		return services.Invalid("ledger", "append", fmt.Sprintf("unknown direction %q", r.Direction))
	case strings.TrimSpace(r.Content) == "":
		return services.Invalid("ledger", "append", "content required")
	}
	return nil
}

// Append records a message and returns it with a zero score delta.
func (l *Ledger) Append(ctx context.Context, req AppendRequest) (*Entry, error) {
	var entry *Entry
	err := l.db.WithTx(ctx, func(q store.Querier) error {
		var err error
		entry, err = AppendTx(ctx, q, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.logger.Debug("conversation entry recorded",
		logging.CustomerID(entry.CustomerID),
		logging.SessionID(entry.SessionID),
		logging.Int("seq", entry.Seq),
		logging.String("direction", string(entry.Direction)),
	)
	return entry, nil
}

// AppendTx is Append within the caller's transaction. Sequence numbers are
// assigned per session, so writers of one session are totally ordered.
func AppendTx(ctx context.Context, q store.Querier, req AppendRequest) (*Entry, error) {
	req.SessionID = strings.TrimSpace(req.SessionID)
	if err := req.validate(); err != nil {
		return nil, err
	}

	var exists int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM customers WHERE id = ?`, req.CustomerID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check customer: %w", err)
	}
	if exists == 0 {
		return nil, services.Wrap(services.ErrNotFound, "ledger", "append", fmt.Sprintf("customer %d", req.CustomerID), nil)
	}

	var lastSeq int
	if err := q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM conversation_entries WHERE session_id = ?`,
		req.SessionID,
	).Scan(&lastSeq); err != nil {
		return nil, fmt.Errorf("read session sequence: %w", err)
	}

	signals, err := json.Marshal(NormalizeSignals(req.Signals))
	if err != nil {
		return nil, fmt.Errorf("encode signals: %w", err)
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO conversation_entries (customer_id, session_id, seq, role, direction, content, signals, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.CustomerID, req.SessionID, lastSeq+1, req.Role, req.Direction, req.Content, string(signals), store.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("entry id: %w", err)
	}
	return Load(ctx, q, id)
}

// Load reads one entry within q.
func Load(ctx context.Context, q store.Querier, id int64) (*Entry, error) {
	row := q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM conversation_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "ledger", "load", fmt.Sprintf("entry %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load entry %d: %w", id, err)
	}
	return entry, nil
}

// SessionOwner reports the customer whose first entry opened sessionID. ok is
// false for a session with no entries yet.
func SessionOwner(ctx context.Context, q store.Querier, sessionID string) (customerID int64, ok bool, err error) {
	err = q.QueryRowContext(ctx,
		`SELECT customer_id FROM conversation_entries WHERE session_id = ? ORDER BY seq LIMIT 1`,
		strings.TrimSpace(sessionID),
	).Scan(&customerID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("read session owner: %w", err)
	}
	return customerID, true, nil
}

// Get returns one entry.
func (l *Ledger) Get(ctx context.Context, id int64) (*Entry, error) {
	return Load(ctx, l.db.DB(), id)
}

// History returns a customer's entries newest first. limit <= 0 returns all.
func (l *Ledger) History(ctx context.Context, customerID int64, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM conversation_entries WHERE customer_id = ? ORDER BY id DESC`
	args := []any{customerID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return l.query(ctx, query, args...)
}

// Session returns a session's entries in sequence order.
func (l *Ledger) Session(ctx context.Context, sessionID string) ([]Entry, error) {
	return l.query(ctx,
		`SELECT `+entryColumns+` FROM conversation_entries WHERE session_id = ? ORDER BY seq`,
		strings.TrimSpace(sessionID))
}

// ScoredEntries returns a customer's scored entries in the order they were scored.
func ScoredEntries(ctx context.Context, q store.Querier, customerID int64) ([]Entry, error) {
	return queryEntries(ctx, q,
		`SELECT `+entryColumns+` FROM conversation_entries
         WHERE customer_id = ? AND scored_at IS NOT NULL ORDER BY scored_at, id`,
		customerID)
}

// StampScore records the delta applied for an entry. It only succeeds once per
// entry; the boolean is false when the entry was already scored.
func StampScore(ctx context.Context, q store.Querier, id int64, delta int, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE conversation_entries SET score_delta = ?, scored_at = ? WHERE id = ? AND scored_at IS NULL`,
		delta, store.FormatTime(at), id,
	)
	if err != nil {
		return false, fmt.Errorf("stamp score for entry %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (l *Ledger) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	return queryEntries(ctx, l.db.DB(), query, args...)
}

func queryEntries(ctx context.Context, q store.Querier, query string, args ...any) ([]Entry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversation entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}
