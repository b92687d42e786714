package kafka

import (
	"ordersaga/internal/config"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// NewProducer builds a writer that routes by message key, so every event of
// one entity lands on the same partition, and injects trace headers.
// The topic is set per message.
func NewProducer(cfg *config.Config, tp trace.TracerProvider) (Producer, error) {
	baseWriter := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           config.BatchTimeout,
		BatchSize:              config.BatchSize,
		AllowAutoTopicCreation: cfg.CreateTopics,
	}

	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return otelkafka.NewWriter(baseWriter,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(
			[]attribute.KeyValue{
				semconv.MessagingSystemKafka,
				attribute.String("messaging.kafka.client_id", cfg.ServiceName),
			},
		),
	)
}

// NewConsumer joins the service's consumer group on topics. The group id is
// the service name.
func NewConsumer(cfg *config.Config, topics ...string) Consumer {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		GroupID:        cfg.ServiceName,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		StartOffset:    kafkago.FirstOffset,
		CommitInterval: 0,
	})
}
