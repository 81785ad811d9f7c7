package logging

import (
	"log/slog"
	"time"
)

// Structured keys shared by every component. The console handler lifts the
// subject keys (component, role, task, customer) into the line header.
const (
	FieldComponent     = "component"
	FieldTaskID        = "task_id"
	FieldCustomerID    = "customer_id"
	FieldRole          = "role"
	FieldCorrelationID = "correlation_id"

	FieldNotificationID = "notification_id"
	FieldEntryID        = "entry_id"
	FieldSessionID      = "session_id"
	FieldRulesVersion   = "rules_version"

	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the consequence of a warning for the operator.
	FieldImpact = "impact"
	// FieldErrorKind carries services.Kind for failures.
	FieldErrorKind = "error_kind"
)

type Attr = slog.Attr

func String(key, value string) Attr { return slog.String(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

// Strings keeps the slice intact so JSON output gets an array; the console
// handler joins it with commas.
func Strings(key string, values []string) Attr { return slog.Any(key, values) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func TaskID(id int64) Attr { return slog.Int64(FieldTaskID, id) }

func CustomerID(id int64) Attr { return slog.Int64(FieldCustomerID, id) }

func Role(role string) Attr { return slog.String(FieldRole, role) }

func NotificationID(id int64) Attr { return slog.Int64(FieldNotificationID, id) }

func EntryID(id int64) Attr { return slog.Int64(FieldEntryID, id) }

func SessionID(id string) Attr { return slog.String(FieldSessionID, id) }

func RulesVersion(version string) Attr { return slog.String(FieldRulesVersion, version) }

// Args converts attrs to the variadic form slog.Logger methods take.
func Args(attrs ...Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags logger with a component name. A nil logger yields a
// discarding one.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(slog.String(FieldComponent, component))
}
