// Package app wires the leadflow components over one shared store. Both the
// CLI and the daemon build their services through Open.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"leadflow/internal/config"
	"leadflow/internal/customer"
	"leadflow/internal/dispatch"
	"leadflow/internal/intake"
	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/notify"
	"leadflow/internal/scoring"
	"leadflow/internal/store"
	"leadflow/internal/workers"
)

// App holds the constructed services. Fields are safe for concurrent use.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Store         *store.Store
	Rules         scoring.Rules
	Customers     *customer.Store
	Ledger        *ledger.Ledger
	Trigger       *notify.Trigger
	Notifications *notify.Store
	Engine        *scoring.Engine
	Dispatcher    *dispatch.Dispatcher
	Workers       *workers.Registry
	Intake        *intake.Service
}

// Open opens the database named by cfg and builds every service on top of it.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a, err := build(ctx, cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return a, nil
}

// New builds the services over an already open store. The caller keeps
// ownership of st.
func New(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (*App, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("config and store are required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return build(ctx, cfg, st, logger)
}

func build(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (*App, error) {
	rules := scoring.RulesFromConfig(cfg.Scoring)
	registry := workers.NewRegistry(st, logger)
	if err := registry.Seed(ctx); err != nil {
		return nil, fmt.Errorf("seed worker registry: %w", err)
	}

	trigger := notify.NewTrigger(cfg.Notifications, logger)
	customers := customer.NewStore(st, rules.Level, logger)
	engine := scoring.NewEngine(st, rules, trigger, logger)

	return &App{
		Config:        cfg,
		Logger:        logger,
		Store:         st,
		Rules:         rules,
		Customers:     customers,
		Ledger:        ledger.New(st, logger),
		Trigger:       trigger,
		Notifications: notify.NewStore(st),
		Engine:        engine,
		Dispatcher:    dispatch.New(st, cfg.Dispatch, trigger, logger),
		Workers:       registry,
		Intake:        intake.New(st, customers, engine, logger),
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	return a.Store.Close()
}
