package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const ansiReset = "\x1b[0m"

type levelStyle struct {
	floor slog.Level
	label string
	ansi  string
}

// Ordered from most to least severe; the first floor at or below the record
// level wins.
var levelStyles = []levelStyle{
	{slog.LevelError, "ERROR", "\x1b[31m"},
	{slog.LevelWarn, "WARN", "\x1b[33m"},
	{slog.LevelInfo, "INFO", "\x1b[36m"},
}

var debugStyle = levelStyle{label: "DEBUG", ansi: "\x1b[90m"}

func styleFor(level slog.Level) levelStyle {
	for _, style := range levelStyles {
		if level >= style.floor {
			return style
		}
	}
	return debugStyle
}

// consoleHandler writes one human-oriented line per record:
//
//	2026-03-01 10:00:00 INFO [dispatch] Content · Task #12 – task claimed priority=3
//
// Debug records put each attribute on its own indented line instead.
type consoleHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Leveler
	preset fieldSet
	groups []string
	source bool
	color  bool
}

func newConsoleHandler(w io.Writer, level slog.Leveler, source, color bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, out: w, level: level, source: source, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := h.preset.clone()
	record.Attrs(func(attr slog.Attr) bool {
		fields.add(h.groups, attr)
		return true
	})
	subj, rest := fields.splitSubject()

	when := record.Time
	if when.IsZero() {
		when = time.Now()
	}
	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}

	var buf bytes.Buffer
	style := styleFor(record.Level)
	fmt.Fprintf(&buf, "%s %s", consoleTime(when), h.paint(style.ansi, style.label))
	if subj.component != "" {
		fmt.Fprintf(&buf, " [%s]", subj.component)
	}
	if header := subj.String(); header != "" {
		buf.WriteString(" " + header)
	}
	buf.WriteString(" – " + message)
	if src := record.Source(); h.source && src != nil {
		fmt.Fprintf(&buf, " [%s:%d]", filepath.Base(src.File), src.Line)
	}

	if record.Level < slog.LevelInfo {
		buf.WriteByte('\n')
		for _, f := range rest {
			fmt.Fprintf(&buf, "    %s: %s\n", f.key, quotedText(f.value))
		}
	} else {
		for _, f := range rest {
			buf.WriteString(" " + h.paint(debugStyle.ansi, f.key+"=") + quotedText(f.value))
		}
		buf.WriteByte('\n')
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) paint(code, text string) string {
	if !h.color {
		return text
	}
	return code + text + ansiReset
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = h.preset.clone()
	for _, attr := range attrs {
		next.preset.add(h.groups, attr)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

type field struct {
	key   string
	value slog.Value
}

// fieldSet is an insertion-ordered set of flattened attributes. A repeated key
// keeps its first position and takes the latest value.
type fieldSet struct {
	fields []field
	index  map[string]int
}

func (s fieldSet) clone() fieldSet {
	out := fieldSet{fields: append([]field(nil), s.fields...), index: make(map[string]int, len(s.index))}
	for key, pos := range s.index {
		out.index[key] = pos
	}
	return out
}

func (s *fieldSet) add(groups []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	value := attr.Value.Resolve()
	path := groups
	if attr.Key != "" {
		path = append(append([]string(nil), groups...), attr.Key)
	}
	if value.Kind() == slog.KindGroup {
		for _, member := range value.Group() {
			s.add(path, member)
		}
		return
	}
	key := strings.Join(path, ".")
	if key == "" {
		return
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if pos, ok := s.index[key]; ok {
		s.fields[pos].value = value
		return
	}
	s.index[key] = len(s.fields)
	s.fields = append(s.fields, field{key: key, value: value})
}

// splitSubject pulls the header keys out and returns the remaining fields in
// order.
func (s fieldSet) splitSubject() (subject, []field) {
	var subj subject
	rest := make([]field, 0, len(s.fields))
	for _, f := range s.fields {
		switch f.key {
		case FieldComponent:
			subj.component = plainText(f.value)
		case FieldRole:
			subj.role = plainText(f.value)
		case FieldTaskID:
			subj.taskID = plainText(f.value)
		case FieldCustomerID:
			subj.customerID = plainText(f.value)
		default:
			rest = append(rest, f)
		}
	}
	return subj, rest
}

type subject struct {
	component  string
	role       string
	taskID     string
	customerID string
}

// String renders "Role · Task #12 · Customer #4" with empty parts skipped.
func (s subject) String() string {
	var parts []string
	if role := strings.TrimSpace(s.role); role != "" {
		parts = append(parts, strings.ToUpper(role[:1])+strings.ToLower(role[1:]))
	}
	if s.taskID != "" {
		parts = append(parts, "Task #"+s.taskID)
	}
	if s.customerID != "" {
		parts = append(parts, "Customer #"+s.customerID)
	}
	return strings.Join(parts, " · ")
}
