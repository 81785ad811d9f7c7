package preflight

import (
	"context"

	"leadflow/internal/config"
	"leadflow/internal/store"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// st may be nil when the database has not been opened yet.
func RunAll(ctx context.Context, cfg *config.Config, st *store.Store) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if st != nil {
		results = append(results, CheckDatabase(ctx, st))
	}

	switch cfg.Notifications.Sink {
	case "ntfy":
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic, cfg.RequestTimeout()))
	case "kafka":
		results = append(results, CheckKafka(ctx, cfg.Notifications.KafkaBrokers, cfg.RequestTimeout()))
	default:
		results = append(results, Result{Name: "Notification sink", Passed: true, Detail: "log (no external delivery)"})
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
