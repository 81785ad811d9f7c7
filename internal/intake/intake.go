package intake

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"leadflow/internal/customer"
	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/scoring"
	"leadflow/internal/services"
	"leadflow/internal/store"
	"leadflow/internal/workers"
)

// Request is one exchanged message. CustomerID selects an existing customer;
// without it the Profile's external reference finds or creates one. An empty
// SessionID starts a new session.
type Request struct {
	CustomerID int64
	Profile    customer.Profile
	SessionID  string
	Role       workers.Role
	Direction  ledger.Direction
	Content    string
	Signals    []string
}

// Result reports what Record did. Score is nil for outbound messages, which
// are recorded but never scored.
type Result struct {
	Customer        *customer.Customer `json:"customer"`
	CreatedCustomer bool               `json:"createdCustomer"`
	Entry           *ledger.Entry      `json:"entry"`
	Score           *scoring.Result    `json:"score,omitempty"`
}

// Service runs the inbound path: customer lookup, ledger append, interaction
// bookkeeping and scoring.
type Service struct {
	db        *store.Store
	customers *customer.Store
	engine    *scoring.Engine
	logger    *slog.Logger
}

// New wires the intake pipeline.
func New(st *store.Store, customers *customer.Store, engine *scoring.Engine, logger *slog.Logger) *Service {
	return &Service{
		db:        st,
		customers: customers,
		engine:    engine,
		logger:    logging.NewComponentLogger(logger, "intake"),
	}
}

// Record appends the message and, for inbound messages, scores its signals.
// A session stays with the customer that opened it; continuing another
// customer's session is rejected before anything is written. The append and
// the interaction counter commit together; scoring runs in its own transaction
// and can be retried with scoring.Engine.ScoreEntry.
func (s *Service) Record(ctx context.Context, req Request) (*Result, error) {
	result := &Result{}
	var err error
	if req.CustomerID > 0 {
		result.Customer, err = s.customers.Get(ctx, req.CustomerID)
	} else {
		result.Customer, result.CreatedCustomer, err = s.customers.Ensure(ctx, req.Profile)
	}
	if err != nil {
		return nil, err
	}
	ctx = services.WithCustomerID(ctx, result.Customer.ID)

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = ledger.NewSessionID()
	}
	appendReq := ledger.AppendRequest{
		CustomerID: result.Customer.ID,
		SessionID:  sessionID,
		Role:       req.Role,
		Direction:  req.Direction,
		Content:    req.Content,
		Signals:    req.Signals,
	}
	err = s.db.WithTx(ctx, func(q store.Querier) error {
		owner, found, err := ledger.SessionOwner(ctx, q, sessionID)
		if err != nil {
			return err
		}
		if found && owner != result.Customer.ID {
			return services.Invalid("intake", "record", fmt.Sprintf("session %s belongs to customer %d", sessionID, owner))
		}
		entry, err := ledger.AppendTx(ctx, q, appendReq)
		if err != nil {
			return err
		}
		result.Entry = entry
		return customer.Touch(ctx, q, entry.CustomerID, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	logger := logging.WithContext(ctx, s.logger)
	if result.Entry.Direction == ledger.Inbound {
		score, err := s.engine.ScoreEntry(ctx, result.Entry.ID)
		if err != nil {
			logging.WarnWithContext(logger, "message recorded but not scored", "scoring_failed",
				logging.EntryID(result.Entry.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "rerun scoring for the entry"),
				logging.String(logging.FieldImpact, "intent score lags the ledger"),
			)
			return nil, err
		}
		result.Score = &score
		if result.Entry, err = ledger.Load(ctx, s.db.DB(), result.Entry.ID); err != nil {
			return nil, err
		}
	}
	if result.Customer, err = s.customers.Get(ctx, result.Customer.ID); err != nil {
		return nil, err
	}

	logger.Info("message recorded",
		logging.EntryID(result.Entry.ID),
		logging.SessionID(result.Entry.SessionID),
		logging.String("direction", string(result.Entry.Direction)),
		logging.Int("signals", len(result.Entry.Signals)),
		logging.Int("score", result.Customer.IntentScore),
	)
	return result, nil
}
