package kafka

import (
	"context"
	"fmt"
	"time"

	"ordersaga/internal/events"
	"ordersaga/internal/platform/metrics"
	"ordersaga/internal/platform/observability"
	"ordersaga/internal/tracing"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher turns saga events into Kafka messages keyed by entity id and
// stamped with the correlation id of ctx.
type Publisher struct {
	producer Producer
	logger   observability.Logger
	metrics  *metrics.MessagingMetrics
}

func NewPublisher(producer Producer, logger observability.Logger, m *metrics.MessagingMetrics) *Publisher {
	return &Publisher{producer: producer, logger: logger, metrics: m}
}

// Publish encodes and writes evt. Failures are logged with the payload and
// returned so the caller can retry.
func (p *Publisher) Publish(ctx context.Context, evt events.Event) error {
	payload, err := events.Encode(evt)
	if err != nil {
		tracing.Logger(ctx, p.logger).Error("❌ Failed to serialize event",
			zap.Error(err),
			zap.String("topic", evt.Topic()),
			zap.String("key", evt.Key()),
		)
		return err
	}
	return p.PublishPayload(ctx, evt.Topic(), evt.Key(), payload)
}

// PublishPayload writes an already encoded payload. Headers in extra are sent
// as is, except the correlation header which always reflects ctx.
func (p *Publisher) PublishPayload(ctx context.Context, topic, key string, payload []byte, extra ...kafkago.Header) error {
	msg := kafkago.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   payload,
		Headers: tracing.Inject(ctx, extra),
		Time:    time.Now().UTC(),
	}

	logger := tracing.Logger(ctx, p.logger)
	if err := p.producer.WriteMessage(ctx, msg); err != nil {
		p.count(topic, metrics.OutcomeFailed)
		logger.Error("❌ Failed to publish event",
			zap.Error(err),
			zap.String("topic", topic),
			zap.String("key", key),
			zap.ByteString("payload", payload),
		)
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	p.count(topic, metrics.OutcomeOK)
	logger.Info("📤 Event published",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.ByteString("payload", payload),
	)
	return nil
}

func (p *Publisher) count(topic, outcome string) {
	if p.metrics != nil {
		p.metrics.Produced.WithLabelValues(topic, outcome).Inc()
	}
}

// Close releases the underlying producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
