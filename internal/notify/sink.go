package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"leadflow/internal/config"
	"leadflow/internal/logging"
)

// Sink hands notifications to an external delivery channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
	Close() error
}

// NewSink builds the sink selected by notifications.sink.
func NewSink(cfg config.Notifications, logger *slog.Logger) (Sink, error) {
	switch cfg.Sink {
	case "", "log":
		return NewLogSink(logger), nil
	case "ntfy":
		timeout := time.Duration(cfg.RequestTimeout) * time.Second
		return NewNtfySink(cfg.NtfyTopic, timeout), nil
	case "kafka":
		return NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return nil, fmt.Errorf("notifications.sink: unsupported value %q", cfg.Sink)
	}
}

type logSink struct {
	logger *slog.Logger
}

// NewLogSink writes notifications to the structured log. It is the default
// when no external channel is configured.
func NewLogSink(logger *slog.Logger) Sink {
	return &logSink{logger: logging.NewComponentLogger(logger, "notify-sink")}
}

func (s *logSink) Name() string { return "log" }

func (s *logSink) Deliver(_ context.Context, n Notification) error {
	attrs := []logging.Attr{
		logging.NotificationID(n.ID),
		logging.String("audience", n.Audience),
		logging.String("category", string(n.Category)),
	}
	if n.CustomerID > 0 {
		attrs = append(attrs, logging.CustomerID(n.CustomerID))
	}
	if n.TaskID > 0 {
		attrs = append(attrs, logging.TaskID(n.TaskID))
	}
	if n.NewLevel != "" {
		attrs = append(attrs,
			logging.String("previous_level", string(n.PreviousLevel)),
			logging.String("new_level", string(n.NewLevel)),
		)
	}
	s.logger.Info("notification", logging.Args(attrs...)...)
	return nil
}

func (s *logSink) Close() error { return nil }
