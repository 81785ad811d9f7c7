package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"leadflow/internal/config"
	"leadflow/internal/logging"
)

// Relay drains undelivered notifications to a sink at a bounded rate.
type Relay struct {
	store   *Store
	sink    Sink
	limiter *rate.Limiter
	batch   int
	logger  *slog.Logger
}

// NewRelay builds a relay paced by notifications.relay_rate (per second).
func NewRelay(st *Store, sink Sink, cfg config.Notifications, logger *slog.Logger) *Relay {
	perSecond := cfg.RelayRate
	if perSecond <= 0 {
		perSecond = 5
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	batch := cfg.RelayBatch
	if batch <= 0 {
		batch = 50
	}
	return &Relay{
		store:   st,
		sink:    sink,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		batch:   batch,
		logger:  logging.NewComponentLogger(logger, "notify-relay"),
	}
}

// Drain delivers at most one batch. Delivery failures are recorded on the
// notification and do not stop the batch.
func (r *Relay) Drain(ctx context.Context) (delivered, failed int, err error) {
	pending, err := r.store.Pending(ctx, r.batch)
	if err != nil {
		return 0, 0, err
	}
	for _, n := range pending {
		if err := r.limiter.Wait(ctx); err != nil {
			return delivered, failed, err
		}
		if deliverErr := r.sink.Deliver(ctx, n); deliverErr != nil {
			failed++
			logging.WarnWithContext(r.logger, "notification delivery failed", "notification_delivery_failed",
				logging.NotificationID(n.ID),
				logging.String("sink", r.sink.Name()),
				logging.Int("attempt", n.DeliveryAttempts+1),
				logging.Error(deliverErr),
				logging.String(logging.FieldErrorHint, "check the sink endpoint and credentials"),
				logging.String(logging.FieldImpact, "notification will be retried on the next relay pass"),
			)
			if markErr := r.store.MarkDeliveryFailed(ctx, n.ID, deliverErr); markErr != nil {
				return delivered, failed, markErr
			}
			continue
		}
		if err := r.store.MarkDelivered(ctx, n.ID); err != nil {
			return delivered, failed, err
		}
		delivered++
	}
	if delivered > 0 || failed > 0 {
		r.logger.Info("notification relay pass",
			logging.String("sink", r.sink.Name()),
			logging.Int("delivered", delivered),
			logging.Int("failed", failed),
		)
	}
	return delivered, failed, nil
}

// Run drains every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, _, err := r.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
			logging.ErrorWithContext(r.logger, "notification relay failed", "notification_relay_failed", logging.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
