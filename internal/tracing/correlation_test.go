package tracing

import (
	"context"
	"testing"

	"ordersaga/internal/config"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestExtract_PropagatesExistingID(t *testing.T) {
	headers := []kafkago.Header{{Key: config.CorrelationHeader, Value: []byte("corr-1")}}

	ctx, id, minted := Extract(context.Background(), headers)

	assert.Equal(t, "corr-1", id)
	assert.False(t, minted)
	assert.Equal(t, "corr-1", CorrelationID(ctx))
}

func TestExtract_MintsWhenMissing(t *testing.T) {
	ctx, id, minted := Extract(context.Background(), nil)

	assert.True(t, minted)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, CorrelationID(ctx))
}

func TestExtract_RestoresTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	headers := []kafkago.Header{
		{Key: "traceparent", Value: []byte("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")},
		{Key: config.CorrelationHeader, Value: []byte("corr-2")},
	}

	ctx, _, _ := Extract(context.Background(), headers)

	sc := trace.SpanContextFromContext(ctx)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", sc.TraceID().String())
	fields := Fields(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, "corr-2", fields[0].String)
}

func TestInject_ReplacesStaleHeader(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "corr-3")
	headers := []kafkago.Header{
		{Key: config.CorrelationHeader, Value: []byte("old")},
		{Key: "traceparent", Value: []byte("x")},
	}

	out := Inject(ctx, headers)

	require.Len(t, out, 2)
	assert.Equal(t, "traceparent", out[0].Key)
	assert.Equal(t, "corr-3", string(out[1].Value))
}

func TestInject_NoIDLeavesHeaders(t *testing.T) {
	out := Inject(context.Background(), nil)

	assert.Empty(t, out)
}

func TestEnsureCorrelationID(t *testing.T) {
	ctx, id := EnsureCorrelationID(context.Background())
	require.NotEmpty(t, id)

	again, same := EnsureCorrelationID(ctx)

	assert.Equal(t, id, same)
	assert.Equal(t, id, CorrelationID(again))
}

func TestCarrierRoundTrip(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "corr-4")

	restored := FromCarrier(context.Background(), Carrier(ctx))

	assert.Equal(t, "corr-4", CorrelationID(restored))
}
