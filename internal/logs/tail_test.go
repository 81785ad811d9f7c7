package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"leadflow/internal/logs"
)

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestLastReturnsTrailingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leadflowd.log")
	writeLog(t, path, "a\nb\nc\n")

	lines, offset, err := logs.NewReader(path).Last(2)
	if err != nil {
		t.Fatalf("Last returned error: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}
}

func TestLastOnMissingFile(t *testing.T) {
	lines, offset, err := logs.NewReader(filepath.Join(t.TempDir(), "absent.log")).Last(10)
	if err != nil || len(lines) != 0 || offset != 0 {
		t.Fatalf("expected empty result, got %v %d %v", lines, offset, err)
	}
}

func TestFromLeavesPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leadflowd.log")
	writeLog(t, path, "one\ntw")
	reader := logs.NewReader(path)

	lines, offset, err := reader.From(0)
	if err != nil {
		t.Fatalf("From returned error: %v", err)
	}
	if len(lines) != 1 || lines[0] != "one" || offset != 4 {
		t.Fatalf("unexpected read: %#v offset %d", lines, offset)
	}

	appendLog(t, path, "o\n")
	lines, _, err = reader.From(offset)
	if err != nil {
		t.Fatalf("From returned error: %v", err)
	}
	if len(lines) != 1 || lines[0] != "two" {
		t.Fatalf("expected completed line, got %#v", lines)
	}
}

func TestFromRestartsAfterTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leadflowd.log")
	writeLog(t, path, "old run line one\nold run line two\n")
	reader := logs.NewReader(path)
	_, offset, err := reader.Last(1)
	if err != nil {
		t.Fatalf("Last returned error: %v", err)
	}

	writeLog(t, path, "new\n")
	lines, _, err := reader.From(offset)
	if err != nil {
		t.Fatalf("From returned error: %v", err)
	}
	if len(lines) != 1 || lines[0] != "new" {
		t.Fatalf("expected new run from the start, got %#v", lines)
	}
}

func TestMatchFiltersLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leadflowd.log")
	writeLog(t, path, "task claimed\ntask_failed id=1\nnotification delivered\ntask_failed id=2\n")

	lines, _, err := logs.NewReader(path, logs.WithMatch("task_failed")).Last(10)
	if err != nil {
		t.Fatalf("Last returned error: %v", err)
	}
	if len(lines) != 2 || lines[1] != "task_failed id=2" {
		t.Fatalf("unexpected filtered lines: %#v", lines)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leadflowd.log")
	writeLog(t, path, "start\n")
	reader := logs.NewReader(path, logs.WithPollInterval(10*time.Millisecond))
	_, offset, err := reader.Last(1)
	if err != nil {
		t.Fatalf("Last returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan error, 1)
	go func() {
		done <- reader.Follow(ctx, offset, func(line string) error {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
			return nil
		})
	}()

	appendLog(t, path, "later\n")
	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("follow did not emit the appended line")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow returned error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if got[0] != "later" {
		t.Fatalf("unexpected followed lines: %#v", got)
	}
}
