package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDaemonStatusWhenStopped(t *testing.T) {
	configPath := writeTestConfig(t)

	out := mustRunCLI(t, configPath, "daemon", "status")
	requireContains(t, out, "Daemon is not running")

	out = mustRunCLI(t, configPath, "daemon", "stop")
	requireContains(t, out, "Daemon is not running")
}

func TestDaemonLogsPrintsTail(t *testing.T) {
	configPath := writeTestConfig(t)
	logDir := filepath.Join(filepath.Dir(configPath), "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	content := "stale claims reclaimed\ntask failed event_type=task_failed\nnotification delivered\n"
	if err := os.WriteFile(filepath.Join(logDir, "leadflowd.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out := mustRunCLI(t, configPath, "daemon", "logs", "-n", "2")
	if strings.Contains(out, "stale claims") {
		t.Fatalf("expected only the last two lines, got:\n%s", out)
	}
	requireContains(t, out, "task failed", "notification delivered")

	out = mustRunCLI(t, configPath, "daemon", "logs", "--grep", "task_failed")
	if strings.TrimSpace(out) != "task failed event_type=task_failed" {
		t.Fatalf("unexpected filtered output:\n%s", out)
	}
}

func TestStatusCommandReportsChecks(t *testing.T) {
	configPath := writeTestConfig(t)

	out := mustRunCLI(t, configPath, "status")
	requireContains(t, out, "System Status", "Daemon", "Not running", "Database", "Queue Status", "Workers", "Lead Discovery")
}
