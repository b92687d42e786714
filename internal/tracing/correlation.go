// Package tracing carries the correlation id of a saga across hops.
//
// The id travels in context.Context inside a process and in the
// X-Correlation-Id Kafka header between processes. It is assigned once by
// the first hop of a causal chain and never regenerated while present.
package tracing

import (
	"context"

	"ordersaga/internal/config"
	"ordersaga/internal/platform/observability"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type correlationKey struct{}

// ConversationIDKey is the semantic-convention attribute for correlation ids.
const ConversationIDKey = attribute.Key("messaging.message.conversation_id")

// NewCorrelationID mints a fresh correlation id.
func NewCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID returns a copy of ctx carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id carried by ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// EnsureCorrelationID returns ctx unchanged when it already carries an id,
// otherwise a copy carrying a new one. It is meant for chain origins.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := CorrelationID(ctx); id != "" {
		return ctx, id
	}
	id := NewCorrelationID()
	return WithCorrelationID(ctx, id), id
}

// Extract restores the trace context and correlation id from Kafka headers.
// When no correlation header is present a new id is minted and minted is
// true; the chain origin is lost, which callers log as a tracing gap.
func Extract(ctx context.Context, headers []kafkago.Header) (_ context.Context, id string, minted bool) {
	carrier := propagation.MapCarrier{}
	for _, header := range headers {
		carrier[string(header.Key)] = string(header.Value)
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	if id = carrier[config.CorrelationHeader]; id == "" {
		id = NewCorrelationID()
		minted = true
	}
	return WithCorrelationID(ctx, id), id, minted
}

// Inject appends the correlation header for ctx to headers. Trace headers
// are added by the instrumented Kafka writer.
func Inject(ctx context.Context, headers []kafkago.Header) []kafkago.Header {
	id := CorrelationID(ctx)
	if id == "" {
		return headers
	}
	out := make([]kafkago.Header, 0, len(headers)+1)
	for _, h := range headers {
		if h.Key != config.CorrelationHeader {
			out = append(out, h)
		}
	}
	return append(out, kafkago.Header{Key: config.CorrelationHeader, Value: []byte(id)})
}

// Carrier serializes the correlation id and trace context of ctx so they can
// be stored alongside a deferred message (the outbox) and restored later.
func Carrier(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if id := CorrelationID(ctx); id != "" {
		carrier[config.CorrelationHeader] = id
	}
	return carrier
}

// FromCarrier is the inverse of Carrier.
func FromCarrier(ctx context.Context, carrier map[string]string) context.Context {
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(carrier))
	if id := carrier[config.CorrelationHeader]; id != "" {
		ctx = WithCorrelationID(ctx, id)
	}
	return ctx
}

// Fields returns the zap fields that tie a log line to its saga and trace.
func Fields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if id := CorrelationID(ctx); id != "" {
		fields = append(fields, zap.String("correlation_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	return fields
}

// Logger scopes logger to the saga carried by ctx.
func Logger(ctx context.Context, logger observability.Logger) *zap.Logger {
	return logger.With(Fields(ctx)...)
}

// Attributes returns span attributes for the correlation id of ctx.
func Attributes(ctx context.Context) []attribute.KeyValue {
	if id := CorrelationID(ctx); id != "" {
		return []attribute.KeyValue{ConversationIDKey.String(id)}
	}
	return nil
}
