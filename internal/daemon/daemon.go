package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"leadflow/internal/app"
	"leadflow/internal/config"
	"leadflow/internal/dispatch"
	"leadflow/internal/logging"
	"leadflow/internal/notify"
	"leadflow/internal/preflight"
	"leadflow/internal/scoring"
	"leadflow/internal/worker"
)

const (
	lockFileName = "leadflowd.lock"
	pidFileName  = "leadflowd.pid"
	logFileName  = "leadflowd.log"
)

// Daemon runs the background loops and enforces single-instance execution.
type Daemon struct {
	app    *app.App
	sink   notify.Sink
	relay  *notify.Relay
	runner *worker.Runner
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan error
}

// Status represents daemon runtime information.
type Status struct {
	Running              bool                    `json:"running"`
	LockFilePath         string                  `json:"lockFilePath"`
	DatabasePath         string                  `json:"databasePath"`
	RulesVersion         string                  `json:"rulesVersion"`
	Sink                 string                  `json:"sink"`
	Tasks                map[dispatch.Status]int `json:"tasks"`
	PendingNotifications int                     `json:"pendingNotifications"`
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithRunner runs r alongside the daemon loops. Without it the daemon only
// reclaims and relays, and workers run elsewhere.
func WithRunner(r *worker.Runner) Option {
	return func(d *Daemon) {
		d.runner = r
	}
}

// LockPath returns the lock file guarding cfg's data directory.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, lockFileName)
}

// PIDPath returns the file where the daemon process records its pid.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, pidFileName)
}

// LogPath returns the pointer to the current run's log file.
func LogPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, logFileName)
}

// IsRunning reports whether another process holds the daemon lock for cfg.
func IsRunning(cfg *config.Config) (bool, error) {
	probe := flock.New(LockPath(cfg))
	ok, err := probe.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe daemon lock: %w", err)
	}
	if !ok {
		return true, nil
	}
	return false, probe.Unlock()
}

// New constructs a daemon over a, delivering notifications through sink.
func New(a *app.App, sink notify.Sink, opts ...Option) (*Daemon, error) {
	if a == nil || sink == nil {
		return nil, errors.New("daemon requires services and a notification sink")
	}
	logger := logging.NewComponentLogger(a.Logger, "daemon")
	lockPath := LockPath(a.Config)
	d := &Daemon{
		app:      a,
		sink:     sink,
		relay:    notify.NewRelay(a.Notifications, sink, a.Config.Notifications, a.Logger),
		logger:   logger,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the daemon lock, runs the startup checks, and launches the
// background loops.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another leadflow daemon instance is already running")
	}

	if err := d.prepare(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return d.reclaimLoop(groupCtx) })
	group.Go(func() error { return d.relay.Run(groupCtx, d.app.Config.RelayInterval()) })
	if d.runner != nil {
		group.Go(func() error { return d.runner.Run(groupCtx) })
	}
	d.cancel = cancel
	d.done = make(chan error, 1)
	go func() { d.done <- group.Wait() }()

	d.running.Store(true)
	d.logger.Info("leadflow daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("sink", d.sink.Name()),
		logging.Bool("runner", d.runner != nil),
	)
	return nil
}

// Stop stops the background loops and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.cancel()
	if err := <-d.done; err != nil {
		d.logger.Warn("background loop exited with error", logging.Error(err))
	}
	d.cancel = nil
	d.done = nil
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("leadflow daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}

// Close stops the daemon and releases the sink. The caller owns the services.
func (d *Daemon) Close() error {
	d.Stop()
	return d.sink.Close()
}

// ReclaimOnce fails processing tasks whose last heartbeat is older than the
// claim timeout.
func (d *Daemon) ReclaimOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-d.app.Config.ClaimTimeout())
	return d.app.Dispatcher.ReclaimStale(ctx, cutoff)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	status := Status{
		Running:      d.running.Load(),
		LockFilePath: d.lockPath,
		DatabasePath: d.app.Store.Path(),
		RulesVersion: d.app.Rules.Version,
		Sink:         d.sink.Name(),
	}
	tasks, err := d.app.Dispatcher.Stats(ctx)
	if err != nil {
		return status, err
	}
	status.Tasks = tasks
	pending, err := d.app.Notifications.Undelivered(ctx)
	if err != nil {
		return status, err
	}
	status.PendingNotifications = pending
	return status, nil
}

func (d *Daemon) prepare(ctx context.Context) error {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.app.Config, d.app.Store)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run `leadflow status` for the full report"),
			logging.String(logging.FieldImpact, "affected features may not work until fixed"),
		)
	}

	recorded, err := scoring.RecordRules(ctx, d.app.Store, d.app.Rules, "daemon")
	if err != nil {
		return err
	}
	if recorded {
		d.logger.Info("scoring rules recorded",
			logging.String(logging.FieldEventType, "rules_recorded"),
			logging.RulesVersion(d.app.Rules.Version),
			logging.Int("signals", len(d.app.Rules.Signals)),
		)
	}
	if _, err := d.app.Engine.Relevel(ctx); err != nil {
		return fmt.Errorf("recompute levels: %w", err)
	}
	if _, err := d.ReclaimOnce(ctx); err != nil {
		return fmt.Errorf("reclaim stale tasks: %w", err)
	}
	return nil
}

func (d *Daemon) reclaimLoop(ctx context.Context) error {
	interval := d.app.Config.ReclaimInterval()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if _, err := d.ReclaimOnce(ctx); err != nil && ctx.Err() == nil {
			logging.ErrorWithContext(d.logger, "stale claim sweep failed", "reclaim_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
		}
	}
}
