package services

import (
	"context"
	"time"

	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"github.com/rs/zerolog"
)

// OutboxWorker turns stored outbox events into notifications.
type OutboxWorker struct {
	Outbox        repository.OutboxRepository
	Notifications *NotificationService
	Interval      time.Duration
	BatchSize     int
	MaxAttempts   int
	Now           func() time.Time
	Log           zerolog.Logger
}

func NewOutboxWorker(outbox repository.OutboxRepository, notifications *NotificationService, interval time.Duration, batchSize, maxAttempts int, log zerolog.Logger) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &OutboxWorker{
		Outbox:        outbox,
		Notifications: notifications,
		Interval:      interval,
		BatchSize:     batchSize,
		MaxAttempts:   maxAttempts,
		Now:           time.Now,
		Log:           log,
	}
}

// Run polls until ctx is canceled.
func (w *OutboxWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	w.Log.Info().Dur("interval", w.Interval).Msg("outbox worker started")
	for {
		if _, err := w.DeliverPending(ctx); err != nil && ctx.Err() == nil {
			w.Log.Error().Err(err).Msg("outbox poll failed")
		}
		select {
		case <-ctx.Done():
			w.Log.Info().Msg("outbox worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// DeliverPending handles one batch and returns how many events were delivered.
func (w *OutboxWorker) DeliverPending(ctx context.Context) (int, error) {
	events, err := w.Outbox.FindPending(ctx, w.MaxAttempts, w.BatchSize)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for i := range events {
		ev := &events[i]
		if err := w.deliver(ctx, ev); err != nil {
			w.Log.Warn().Err(err).
				Str("event", ev.ID.Hex()).
				Int("attempt", ev.Attempts+1).
				Msg("outbox delivery failed")
			if markErr := w.Outbox.MarkFailed(ctx, ev.ID, err.Error()); markErr != nil {
				return delivered, markErr
			}
			if ev.Attempts+1 >= w.MaxAttempts {
				w.Log.Error().Str("event", ev.ID.Hex()).Str("recipient", ev.Recipient).Msg("outbox event abandoned")
			}
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (w *OutboxWorker) deliver(ctx context.Context, ev *models.OutboxEvent) error {
	n := &models.Notification{
		ID:         ev.ID,
		Title:      ev.Title,
		Message:    ev.Message,
		Link:       ev.Link,
		CreatedAt:  ev.CreatedAt,
		Recipients: []string{ev.Recipient},
		ReadBy:     []string{},
	}
	if err := w.Notifications.Deliver(ctx, n); err != nil {
		return err
	}
	return w.Outbox.MarkDelivered(ctx, ev.ID, w.Now().UTC())
}
