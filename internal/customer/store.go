package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"leadflow/internal/logging"
	"leadflow/internal/services"
	"leadflow/internal/store"
)

// Leveler maps an intent score to its level.
type Leveler func(score int) Level

// Store persists customer records. Customers are never deleted.
type Store struct {
	db     *store.Store
	level  Leveler
	logger *slog.Logger
}

// NewStore constructs a customer store. level decides the initial level of a
// new customer at score zero.
func NewStore(db *store.Store, level Leveler, logger *slog.Logger) *Store {
	return &Store{db: db, level: level, logger: logging.NewComponentLogger(logger, "customer")}
}

// Filter narrows List results. Zero values match everything. DueBefore selects
// customers with a follow-up scheduled at or before the instant.
type Filter struct {
	Level      Level
	Owner      string
	ActiveOnly bool
	DueBefore  *time.Time
	Limit      int
}

func normalizeProfile(p Profile) Profile {
	p.ExternalRef = strings.TrimSpace(p.ExternalRef)
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Email = strings.TrimSpace(p.Email)
	p.Company = strings.TrimSpace(p.Company)
	p.SourceChannel = strings.TrimSpace(p.SourceChannel)
	p.Owner = strings.TrimSpace(p.Owner)
	return p
}

// Create inserts a new customer at score zero.
func (s *Store) Create(ctx context.Context, profile Profile) (*Customer, error) {
	var created *Customer
	err := s.db.WithTx(ctx, func(q store.Querier) error {
		var err error
		created, err = s.create(ctx, q, normalizeProfile(profile))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("customer created", logging.CustomerID(created.ID), logging.String("source_channel", created.SourceChannel))
	return created, nil
}

func (s *Store) create(ctx context.Context, q store.Querier, p Profile) (*Customer, error) {
	if p.Name == "" && p.ExternalRef == "" {
		return nil, services.Invalid("customer", "create", "name or external reference required")
	}
	now := store.Now()
	res, err := q.ExecContext(ctx,
		`INSERT INTO customers (external_ref, name, phone, email, company, source_channel, owner,
             intent_score, intent_level, active, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, 1, ?, ?)`,
		store.NullableString(p.ExternalRef),
		p.Name,
		store.NullableString(p.Phone),
		store.NullableString(p.Email),
		store.NullableString(p.Company),
		store.NullableString(p.SourceChannel),
		store.NullableString(p.Owner),
		s.level(0),
		now,
		now,
	)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return nil, services.Invalid("customer", "create", fmt.Sprintf("external reference %q already exists", p.ExternalRef))
		}
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("customer id: %w", err)
	}
	return Load(ctx, q, id)
}

// Ensure returns the customer with the profile's external reference, creating
// it on first contact. The boolean reports whether a new record was created.
func (s *Store) Ensure(ctx context.Context, profile Profile) (*Customer, bool, error) {
	var (
		result  *Customer
		created bool
	)
	err := s.db.WithTx(ctx, func(q store.Querier) error {
		var err error
		result, created, err = s.EnsureTx(ctx, q, profile)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info("customer created on first contact",
			logging.CustomerID(result.ID),
			logging.String("external_ref", result.ExternalRef),
		)
	}
	return result, created, nil
}

// EnsureTx is Ensure within the caller's transaction.
func (s *Store) EnsureTx(ctx context.Context, q store.Querier, profile Profile) (*Customer, bool, error) {
	p := normalizeProfile(profile)
	if p.ExternalRef == "" {
		return nil, false, services.Invalid("customer", "ensure", "external reference required")
	}
	existing, err := findByRef(ctx, q, p.ExternalRef)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	created, err := s.create(ctx, q, p)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// Load reads a customer within q. Missing customers yield ErrNotFound.
func Load(ctx context.Context, q store.Querier, id int64) (*Customer, error) {
	row := q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "customer", "load", fmt.Sprintf("customer %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load customer %d: %w", id, err)
	}
	return c, nil
}

func findByRef(ctx context.Context, q store.Querier, ref string) (*Customer, error) {
	row := q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE external_ref = ?`, ref)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find customer by ref: %w", err)
	}
	return c, nil
}

// Get returns a customer by id.
func (s *Store) Get(ctx context.Context, id int64) (*Customer, error) {
	return Load(ctx, s.db.DB(), id)
}

// FindByRef returns the customer with the given external reference, or nil.
func (s *Store) FindByRef(ctx context.Context, ref string) (*Customer, error) {
	return findByRef(ctx, s.db.DB(), strings.TrimSpace(ref))
}

// List returns customers ordered by descending intent score, then id.
func (s *Store) List(ctx context.Context, filter Filter) ([]Customer, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Level != "" {
		clauses = append(clauses, "intent_level = ?")
		args = append(args, filter.Level)
	}
	if owner := strings.TrimSpace(filter.Owner); owner != "" {
		clauses = append(clauses, "owner = ?")
		args = append(args, owner)
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "active = 1")
	}
	if filter.DueBefore != nil {
		clauses = append(clauses, "next_follow_up_at IS NOT NULL AND next_follow_up_at <= ?")
		args = append(args, store.FormatTime(*filter.DueBefore))
	}
	query := `SELECT ` + customerColumns + ` FROM customers`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY intent_score DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Reassign changes the owning sales representative.
func (s *Store) Reassign(ctx context.Context, id int64, owner string) (*Customer, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, services.Invalid("customer", "reassign", "owner required")
	}
	c, err := s.update(ctx, id, "reassign", `UPDATE customers SET owner = ?, updated_at = ? WHERE id = ?`, owner, store.Now(), id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("customer reassigned", logging.CustomerID(id), logging.String("owner", owner))
	return c, nil
}

// Deactivate clears the active flag. The record and its history are kept.
func (s *Store) Deactivate(ctx context.Context, id int64) (*Customer, error) {
	c, err := s.update(ctx, id, "deactivate", `UPDATE customers SET active = 0, updated_at = ? WHERE id = ?`, store.Now(), id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("customer deactivated", logging.CustomerID(id))
	return c, nil
}

// ScheduleFollowUp sets the next follow-up time.
func (s *Store) ScheduleFollowUp(ctx context.Context, id int64, at time.Time) (*Customer, error) {
	if at.IsZero() {
		return nil, services.Invalid("customer", "schedule follow-up", "follow-up time required")
	}
	return s.update(ctx, id, "schedule follow-up",
		`UPDATE customers SET next_follow_up_at = ?, updated_at = ? WHERE id = ?`,
		store.FormatTime(at), store.Now(), id)
}

// RecordFollowUp stamps a completed follow-up and clears the scheduled one.
func (s *Store) RecordFollowUp(ctx context.Context, id int64) (*Customer, error) {
	now := store.Now()
	return s.update(ctx, id, "record follow-up",
		`UPDATE customers SET last_follow_up_at = ?, next_follow_up_at = NULL, updated_at = ? WHERE id = ?`,
		now, now, id)
}

// Touch counts an interaction and moves the last-contact timestamp forward.
func Touch(ctx context.Context, q store.Querier, id int64, at time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE customers
         SET interaction_count = interaction_count + 1,
             last_contact_at = CASE WHEN last_contact_at IS NULL OR last_contact_at < ? THEN ? ELSE last_contact_at END,
             updated_at = ?
         WHERE id = ?`,
		store.FormatTime(at), store.FormatTime(at), store.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("touch customer %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "customer", "touch", fmt.Sprintf("customer %d", id), nil)
	}
	return nil
}

func (s *Store) update(ctx context.Context, id int64, op, query string, args ...any) (*Customer, error) {
	var updated *Customer
	err := s.db.WithTx(ctx, func(q store.Querier) error {
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%s customer %d: %w", op, id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return services.Wrap(services.ErrNotFound, "customer", op, fmt.Sprintf("customer %d", id), nil)
		}
		updated, err = Load(ctx, q, id)
		return err
	})
	return updated, err
}
