package logging

import (
	"context"
	"log/slog"

	"leadflow/internal/services"
)

// ContextFields collects the task, customer, role and correlation identifiers
// stored on ctx by the services package.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	if id, ok := services.TaskIDFromContext(ctx); ok {
		fields = append(fields, TaskID(id))
	}
	if id, ok := services.CustomerIDFromContext(ctx); ok {
		fields = append(fields, CustomerID(id))
	}
	if role, ok := services.RoleFromContext(ctx); ok {
		fields = append(fields, Role(role))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns logger extended with ContextFields(ctx).
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
