package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"leadflow/internal/app"
	"leadflow/internal/daemon"
	"leadflow/internal/dispatch"
	"leadflow/internal/preflight"
	"leadflow/internal/workers"
)

type statusSnapshot struct {
	DaemonRunning        bool                    `json:"daemonRunning"`
	DatabasePath         string                  `json:"databasePath"`
	RulesVersion         string                  `json:"rulesVersion"`
	Checks               []preflight.Result      `json:"checks"`
	Tasks                map[dispatch.Status]int `json:"tasks"`
	Workers              []workers.Worker        `json:"workers"`
	PendingNotifications int                     `json:"pendingNotifications"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system, queue and worker status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				running, err := daemon.IsRunning(a.Config)
				if err != nil {
					return err
				}
				snapshot := statusSnapshot{
					DaemonRunning: running,
					DatabasePath:  a.Store.Path(),
					RulesVersion:  a.Rules.Version,
					Checks:        preflight.RunAll(cmd.Context(), a.Config, a.Store),
				}
				if snapshot.Tasks, err = a.Dispatcher.Stats(cmd.Context()); err != nil {
					return err
				}
				if snapshot.Workers, err = a.Workers.List(cmd.Context()); err != nil {
					return err
				}
				if snapshot.PendingNotifications, err = a.Notifications.Undelivered(cmd.Context()); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, snapshot)
				}
				renderStatus(cmd, snapshot)
				return nil
			})
		},
	}
}

func renderStatus(cmd *cobra.Command, s statusSnapshot) {
	w := newStatusWriter(cmd.OutOrStdout())

	w.section("System Status")
	if s.DaemonRunning {
		w.line("Daemon", statusOK, "Running")
	} else {
		w.line("Daemon", statusWarn, "Not running (stale claims are not reclaimed)")
	}
	w.line("Scoring rules", statusInfo, s.RulesVersion)
	for _, check := range s.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		w.line(check.Name, kind, check.Detail)
	}
	pending := statusOK
	if s.PendingNotifications > 0 {
		pending = statusWarn
	}
	w.line("Undelivered alerts", pending, strconv.Itoa(s.PendingNotifications))

	w.section("Queue Status")
	w.raw(renderStatusCounts(s.Tasks))

	w.section("Workers")
	for _, worker := range s.Workers {
		kind := statusOK
		switch worker.Availability {
		case workers.Busy:
			kind = statusInfo
		case workers.Offline:
			kind = statusWarn
		}
		detail := fmt.Sprintf("%s, %d today", displayName(string(worker.Availability)), worker.CompletedToday)
		if worker.Bound() {
			detail += fmt.Sprintf(", task #%d", worker.CurrentTaskID)
		}
		w.line(displayName(string(worker.Role)), kind, detail)
	}
}
