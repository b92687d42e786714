package kafka

import (
	"context"
	"errors"
	"hash/fnv"
	"io"
	"sync"
	"time"

	"ordersaga/internal/config"
	"ordersaga/internal/events"
	"ordersaga/internal/platform/metrics"
	"ordersaga/internal/platform/observability"
	"ordersaga/internal/tracing"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Handler processes one decoded saga event. Implementations must be
// idempotent: a message can be delivered, or retried, more than once.
type Handler interface {
	HandleEvent(ctx context.Context, evt events.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, evt events.Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt events.Event) error {
	return f(ctx, evt)
}

type DispatcherConfig struct {
	Workers      int
	QueueSize    int
	MaxRetries   int
	RetryBackoff time.Duration
}

// DispatcherConfigFrom derives dispatcher settings from the service config.
func DispatcherConfigFrom(cfg *config.Config) DispatcherConfig {
	return DispatcherConfig{
		Workers:      cfg.Workers,
		QueueSize:    config.WorkerQueueSize,
		MaxRetries:   cfg.HandlerMaxRetries,
		RetryBackoff: 100 * time.Millisecond,
	}
}

// Dispatcher reads a consumer group and fans messages out to a fixed pool of
// workers. A message is routed by its key, so all events of one entity are
// handled in order by one worker while different entities run in parallel.
type Dispatcher struct {
	consumer Consumer
	handler  Handler
	logger   observability.Logger
	tracer   observability.Tracer
	metrics  *metrics.MessagingMetrics
	cfg      DispatcherConfig
	tracker  *offsetTracker
}

func NewDispatcher(
	consumer Consumer,
	handler Handler,
	logger observability.Logger,
	tracer observability.Tracer,
	m *metrics.MessagingMetrics,
	cfg DispatcherConfig,
) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = config.WorkerQueueSize
	}
	return &Dispatcher{
		consumer: consumer,
		handler:  handler,
		logger:   logger,
		tracer:   tracer,
		metrics:  m,
		cfg:      cfg,
		tracker:  newOffsetTracker(),
	}
}

// Start runs until ctx is done or the consumer is closed. Messages still
// queued at shutdown are not committed and will be redelivered.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("Kafka consumer started. Waiting for messages...", zap.Int("workers", d.cfg.Workers))

	commits := make(chan kafkago.Message, d.cfg.Workers*d.cfg.QueueSize)
	committerDone := make(chan struct{})
	go func() {
		defer close(committerDone)
		d.commitLoop(ctx, commits)
	}()

	queues := make([]chan kafkago.Message, d.cfg.Workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafkago.Message, d.cfg.QueueSize)
		wg.Add(1)
		go func(queue <-chan kafkago.Message) {
			defer wg.Done()
			for msg := range queue {
				if ctx.Err() == nil && d.process(ctx, msg) {
					commits <- msg
				}
				d.inFlight(-1)
			}
		}(queues[i])
	}

	d.fetchLoop(ctx, queues)

	for _, queue := range queues {
		close(queue)
	}
	wg.Wait()
	close(commits)
	<-committerDone

	d.logger.Info("Consumer service finished. Shutting down...")
	return nil
}

func (d *Dispatcher) fetchLoop(ctx context.Context, queues []chan kafkago.Message) {
	for {
		msg, err := d.consumer.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				d.logger.Info("Context done, exiting Kafka read loop.", zap.Error(err))
				return
			}
			if errors.Is(err, io.EOF) {
				d.logger.Info("Consumer closed, exiting Kafka read loop.")
				return
			}
			d.logger.Error("❌ Error reading from Kafka", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if !d.tracker.Track(msg) {
			d.logger.Warn("🔁 Redelivered offset, handling again without tracking",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
		}
		d.inFlight(1)
		select {
		case queues[d.route(msg)] <- msg:
		case <-ctx.Done():
			d.inFlight(-1)
			return
		}
	}
}

func (d *Dispatcher) commitLoop(ctx context.Context, commits <-chan kafkago.Message) {
	// Commits issued during shutdown must still reach the broker.
	commitCtx := context.WithoutCancel(ctx)
	for msg := range commits {
		next, ok := d.tracker.Done(msg)
		if !ok {
			continue
		}
		if err := d.consumer.CommitMessages(commitCtx, next); err != nil {
			d.logger.Error("❌ Failed to commit offset",
				zap.Error(err),
				zap.String("topic", next.Topic),
				zap.Int("partition", next.Partition),
				zap.Int64("offset", next.Offset),
			)
		}
	}
}

func (d *Dispatcher) route(msg kafkago.Message) int {
	if len(msg.Key) == 0 {
		return msg.Partition % d.cfg.Workers
	}
	h := fnv.New32a()
	_, _ = h.Write(msg.Key)
	return int(h.Sum32() % uint32(d.cfg.Workers))
}

// process handles one message and reports whether its offset may be
// committed. Only a shutdown in the middle of handling withholds the commit.
func (d *Dispatcher) process(ctx context.Context, msg kafkago.Message) bool {
	start := time.Now()
	msgCtx, _, minted := tracing.Extract(ctx, msg.Headers)

	msgCtx, span := d.tracer.Start(msgCtx, msg.Topic+" process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(append([]attribute.KeyValue{
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationNameKey.String(msg.Topic),
			attribute.String("messaging.kafka.message.key", string(msg.Key)),
			attribute.Int("messaging.kafka.destination.partition", msg.Partition),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
		}, tracing.Attributes(msgCtx)...)...),
	)
	defer span.End()

	logger := tracing.Logger(msgCtx, d.logger)
	if minted {
		logger.Warn("⚠️ Tracing gap: message arrived without a correlation id, minted a new one",
			zap.String("topic", msg.Topic),
			zap.ByteString("key", msg.Key),
		)
	}
	logger.Info("📨 Raw Kafka message received",
		zap.String("topic", msg.Topic),
		zap.ByteString("key", msg.Key),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.ByteString("payload", msg.Value),
	)

	evt, err := events.Decode(msg.Topic, msg.Value)
	if err != nil {
		logger.Error("❌ Undecodable message, skipping",
			zap.Error(err),
			zap.String("topic", msg.Topic),
			zap.ByteString("raw_value", msg.Value),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		d.observe(msg.Topic, metrics.OutcomeFailed, start)
		return true
	}

	attempts := 0
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.cfg.RetryBackoff
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(max(d.cfg.MaxRetries, 0))), ctx)

	err = backoff.RetryNotify(func() error {
		attempts++
		return d.handler.HandleEvent(msgCtx, evt)
	}, retry, func(err error, wait time.Duration) {
		logger.Warn("🔁 Handler failed, retrying",
			zap.Error(err),
			zap.String("topic", msg.Topic),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", wait),
		)
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			logger.Info("Handling interrupted by shutdown, message will be redelivered",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
			)
			return false
		}
		logger.Error("❌ Dropping message after exhausting retries",
			zap.Error(err),
			zap.String("topic", msg.Topic),
			zap.ByteString("key", msg.Key),
			zap.ByteString("payload", msg.Value),
			zap.Int("attempts", attempts),
		)
		d.observe(msg.Topic, metrics.OutcomeFailed, start)
		return true
	}

	outcome := metrics.OutcomeOK
	if attempts > 1 {
		outcome = metrics.OutcomeRetried
	}
	d.observe(msg.Topic, outcome, start)
	return true
}

func (d *Dispatcher) observe(topic, outcome string, start time.Time) {
	if d.metrics == nil {
		return
	}
	d.metrics.Consumed.WithLabelValues(topic, outcome).Inc()
	d.metrics.HandleTime.WithLabelValues(topic).Observe(float64(time.Since(start).Milliseconds()))
}

func (d *Dispatcher) inFlight(delta float64) {
	if d.metrics != nil {
		d.metrics.InFlight.Add(delta)
	}
}
