package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestStatusWriterPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	w := newStatusWriter(&buf)
	w.section("System Status")
	w.line("Database", statusOK, "/tmp/leadflow.db")
	w.section("Workers")
	w.line("Chat", statusWarn, "")

	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no ANSI codes for a non-terminal writer, got %q", out)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	want := []string{
		"== System Status ==",
		"-------------------",
		"  Database:              [OK] /tmp/leadflow.db",
		"",
		"== Workers ==",
		"-------------",
		"  Chat:                  [WARN]",
	}
	if len(lines) != len(want) {
		t.Fatalf("unexpected line count %d:\n%s", len(lines), out)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: got %q want %q", i, lines[i], want[i])
		}
	}
}

func TestRenderTableFooterAndPadding(t *testing.T) {
	out := renderTable([]string{"Status", "Count"}, [][]string{{"pending"}}, []columnAlignment{alignLeft, alignRight}, "Total", "3")
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("expected trailing newline")
	}
	if !strings.Contains(out, "pending") || !strings.Contains(strings.ToUpper(out), "TOTAL") {
		t.Fatalf("unexpected table:\n%s", out)
	}
}
