// Package daemonrun hosts the leadflow daemon process: signal handling, log
// files, and service construction around daemon.Daemon.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"leadflow/internal/app"
	"leadflow/internal/config"
	"leadflow/internal/daemon"
	"leadflow/internal/logging"
	"leadflow/internal/notify"
	"leadflow/internal/worker"
	"leadflow/internal/workers"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Analyst runs the built-in lead_report handler in-process.
	Analyst bool
}

// Run starts the leadflow daemon and blocks until SIGINT/SIGTERM or ctx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("leadflowd-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(daemon.LogPath(cfg), logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update leadflowd.log link: %v\n", err)
	}

	pidPath := daemon.PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	services, err := app.Open(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("open services", logging.Error(err))
		return err
	}
	defer services.Close()

	sink, err := notify.NewSink(cfg.Notifications, logger)
	if err != nil {
		return fmt.Errorf("build notification sink: %w", err)
	}

	var daemonOpts []daemon.Option
	if opts.Analyst {
		runner, err := newAnalystRunner(services, cfg, logger)
		if err != nil {
			_ = sink.Close()
			return err
		}
		daemonOpts = append(daemonOpts, daemon.WithRunner(runner))
	}

	d, err := daemon.New(services, sink, daemonOpts...)
	if err != nil {
		_ = sink.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("database", cfg.DatabasePath()),
		logging.RulesVersion(services.Rules.Version),
		logging.String("sink", cfg.Notifications.Sink),
		logging.Strings("notify_kinds", cfg.Notifications.NotifyKinds),
		logging.Duration("claim_timeout", cfg.ClaimTimeout()),
		logging.Bool("analyst", opts.Analyst),
	)

	if err := d.Run(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration and database access"),
			logging.String(logging.FieldImpact, "stale claims will not be reclaimed and notifications will not be delivered"),
		)
		return err
	}
	logger.Info("leadflow daemon shutting down")
	return nil
}

func newAnalystRunner(services *app.App, cfg *config.Config, logger *slog.Logger) (*worker.Runner, error) {
	runner := worker.NewRunner(services.Dispatcher, worker.Options{
		PollInterval: cfg.PollInterval(),
		Logger:       logger,
	})
	handler := worker.NewLeadReportHandler(services.Customers, services.Ledger, services.Engine)
	if err := runner.Register(workers.RoleAnalyst, handler); err != nil {
		return nil, err
	}
	return runner, nil
}

func ensureCurrentLogPointer(current, target string) error {
	if current == "" || target == "" {
		return nil
	}
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
