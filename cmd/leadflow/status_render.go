package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"

	statusLabelWidth = 22
)

var statusStyles = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

// statusWriter prints the sectioned report of `leadflow status`. Color is
// used only when out is a terminal.
type statusWriter struct {
	out      io.Writer
	colorize bool
	sections int
}

func newStatusWriter(out io.Writer) *statusWriter {
	return &statusWriter{out: out, colorize: isTerminal(out)}
}

func (w *statusWriter) section(title string) {
	if w.sections > 0 {
		fmt.Fprintln(w.out)
	}
	w.sections++
	heading := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	w.print(ansiBlue, heading)
	w.print(ansiBlue, strings.Repeat("-", len(heading)))
}

func (w *statusWriter) line(label string, kind statusKind, message string) {
	style := statusStyles[kind]
	body := fmt.Sprintf("  %-*s [%s]", statusLabelWidth, label+":", style.label)
	if message != "" {
		body += " " + message
	}
	w.print(style.color, body)
}

func (w *statusWriter) raw(s string) {
	fmt.Fprint(w.out, s)
}

func (w *statusWriter) print(color, s string) {
	if w.colorize && color != "" {
		s = color + s + ansiReset
	}
	fmt.Fprintln(w.out, s)
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
