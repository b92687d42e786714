// Package outbox stores outbound saga events in the same Postgres
// transaction as the state change that produced them, and relays them to
// Kafka afterwards.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"ordersaga/internal/events"
	"ordersaga/internal/tracing"

	"github.com/google/uuid"
)

type Record struct {
	ID        int64             `json:"id"`
	EventID   string            `json:"event_id"`
	Topic     string            `json:"topic"`
	Key       string            `json:"key"`
	Payload   json.RawMessage   `json:"payload"`
	Headers   map[string]string `json:"headers"`
	CreatedAt time.Time         `json:"created_at"`
	SentAt    *time.Time        `json:"sent_at"`
}

// NewRecord encodes evt and captures the correlation id and trace context of
// ctx so the relay can publish it as part of the same causal chain.
func NewRecord(ctx context.Context, evt events.Event) (Record, error) {
	payload, err := events.Encode(evt)
	if err != nil {
		return Record{}, err
	}
	return Record{
		EventID:   uuid.NewString(),
		Topic:     evt.Topic(),
		Key:       evt.Key(),
		Payload:   payload,
		Headers:   tracing.Carrier(ctx),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NewRecords is NewRecord over a batch.
func NewRecords(ctx context.Context, out []events.Event) ([]Record, error) {
	records := make([]Record, 0, len(out))
	for _, evt := range out {
		rec, err := NewRecord(ctx, evt)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Store is the relay's view of the outbox table.
type Store interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id int64) error
}
