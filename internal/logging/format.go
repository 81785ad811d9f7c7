package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const consoleTimeLayout = "2006-01-02 15:04:05"

func consoleTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(time.Local).Format(consoleTimeLayout)
}

// plainText renders a value without quoting. Subject fields in the console
// header use it.
func plainText(v slog.Value) string {
	return valueText(v.Resolve())
}

// quotedText renders a value for key=value output, quoting anything that would
// not survive a whitespace split.
func quotedText(v slog.Value) string {
	v = v.Resolve()
	text := valueText(v)
	switch v.Kind() {
	case slog.KindBool, slog.KindInt64, slog.KindUint64, slog.KindFloat64, slog.KindDuration, slog.KindTime:
		return text
	}
	if v.Kind() == slog.KindAny {
		if _, isJSON := v.Any().(json.RawMessage); isJSON {
			return text
		}
	}
	if ambiguous(text) {
		return strconv.Quote(text)
	}
	return text
}

func valueText(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return consoleTime(v.Time())
	case slog.KindAny:
		return anyText(v.Any())
	}
	return v.String()
}

func anyText(value any) string {
	switch typed := value.(type) {
	case nil:
		return "<nil>"
	case error:
		return typed.Error()
	case []string:
		// Signal lists read better as a,b,c than Go's [a b c].
		return strings.Join(typed, ",")
	case json.RawMessage:
		var compact bytes.Buffer
		if err := json.Compact(&compact, typed); err != nil {
			return string(typed)
		}
		return compact.String()
	case fmt.Stringer:
		return typed.String()
	}
	return fmt.Sprint(value)
}

func ambiguous(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsFunc(s, func(r rune) bool {
		return r <= ' ' || r == '=' || r == '"'
	})
}
