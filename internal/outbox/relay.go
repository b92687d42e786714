package outbox

import (
	"context"
	"fmt"
	"time"

	"ordersaga/internal/platform/observability"
	"ordersaga/internal/tracing"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Publisher interface {
	PublishPayload(ctx context.Context, topic, key string, payload []byte, extra ...kafkago.Header) error
}

// Relay drains the outbox in insertion order. A record is marked sent only
// after the broker acknowledged it, so a crash in between re-sends it.
type Relay struct {
	store     Store
	publisher Publisher
	logger    observability.Logger
	interval  time.Duration
	batchSize int
}

// NewRelay returns a Relay that polls store every interval and publishes up
// to batchSize records per pass.
func NewRelay(store Store, publisher Publisher, logger observability.Logger, interval time.Duration, batchSize int) *Relay {
	return &Relay{
		store:     store,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start polls until ctx is done.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("Outbox relay started", zap.Duration("interval", r.interval))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopped")
			return nil
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("❌ Outbox flush failed", zap.Error(err))
			}
		}
	}
}

// Flush publishes one batch of pending records and returns how many were
// sent. It stops at the first failure so later events of the same order
// never overtake an earlier one.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	records, err := r.store.FetchPending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch pending: %w", err)
	}

	sent := 0
	for _, rec := range records {
		msgCtx := tracing.FromCarrier(ctx, rec.Headers)
		if err := r.publisher.PublishPayload(msgCtx, rec.Topic, rec.Key, rec.Payload); err != nil {
			return sent, fmt.Errorf("relay %s (outbox id %d): %w", rec.EventID, rec.ID, err)
		}
		if err := r.store.MarkSent(ctx, rec.ID); err != nil {
			return sent, fmt.Errorf("mark sent %d: %w", rec.ID, err)
		}
		sent++
	}
	if sent > 0 {
		r.logger.Debug("Outbox batch relayed", zap.Int("count", sent))
	}
	return sent, nil
}
