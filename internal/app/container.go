package app

import (
	"context"
	"fmt"
	"sync"

	"ordersaga/internal/config"
	"ordersaga/internal/platform/kafka"
	"ordersaga/internal/platform/metrics"
	"ordersaga/internal/platform/observability"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Container holds expensive-to-create singleton resources and dependencies
type Container struct {
	config       *config.Config
	logger       *zap.Logger
	tracer       observability.Tracer
	meter        metric.Meter
	registry     *prometheus.Registry
	messaging    *metrics.MessagingMetrics
	publisher    *kafka.Publisher
	otelShutdown observability.ShutdownFunc
	closers      []func()
	shutdownOnce sync.Once
}

// NewContainer creates and initializes all infrastructure components
func NewContainer(ctx context.Context, service string) (*Container, error) {
	cfg, err := config.LoadConfig(service)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	c := &Container{config: cfg}

	if err := c.setupLogger(); err != nil {
		return nil, err
	}

	if err := c.setupObservability(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// setupLogger installs a console logger used until OTel is ready.
func (c *Container) setupLogger() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	c.logger = logger
	return nil
}

// setupObservability configures OpenTelemetry, the metrics registry and the
// Kafka producer.
func (c *Container) setupObservability(ctx context.Context) error {
	tp, shutdown, err := observability.SetupSDK(ctx, c.config)
	if err != nil {
		c.logger.Error("Failed to setup OpenTelemetry", zap.Error(err))
	}
	c.otelShutdown = shutdown

	c.logger = observability.NewLogger(c.config.ServiceName, c.config.OtelEnabled())
	c.logger.Info("Logger re-initialized", zap.Bool("otel", c.config.OtelEnabled()))

	c.tracer = otel.Tracer(c.config.ServiceName)
	c.meter = otel.Meter(c.config.ServiceName)

	c.registry = metrics.NewRegistry()
	c.messaging = metrics.NewMessagingMetrics(c.registry, c.config.ServiceName)

	// A nil *TracerProvider must not reach the writer as a non-nil interface.
	var provider trace.TracerProvider = otel.GetTracerProvider()
	if tp != nil {
		provider = tp
	}
	producer, err := kafka.NewProducer(c.config, provider)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	c.publisher = kafka.NewPublisher(producer, c.logger, c.messaging)
	return nil
}

// NewDispatcher joins the service's consumer group on topics and routes
// what it reads to handler. The consumer is closed on shutdown.
func (c *Container) NewDispatcher(handler kafka.Handler, topics ...string) *kafka.Dispatcher {
	consumer := kafka.NewConsumer(c.config, topics...)
	c.OnShutdown(func() {
		if err := consumer.Close(); err != nil {
			c.logger.Error("Failed to close message consumer", zap.Error(err))
		}
	})
	c.logger.Info("Subscribing", zap.Strings("topics", topics))
	return kafka.NewDispatcher(consumer, handler, c.logger, c.tracer, c.messaging, kafka.DispatcherConfigFrom(c.config))
}

// OnShutdown registers fn to run, last registered first, during Shutdown.
func (c *Container) OnShutdown(fn func()) {
	c.closers = append(c.closers, fn)
}

// Shutdown gracefully shuts down all infrastructure components. Only the
// first call has an effect.
func (c *Container) Shutdown(ctx context.Context) {
	c.shutdownOnce.Do(func() { c.shutdown(ctx) })
}

func (c *Container) shutdown(ctx context.Context) {
	c.logger.Info("Shutting down infrastructure...")

	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}

	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			c.logger.Error("Failed to close message producer", zap.Error(err))
		}
	}

	if c.otelShutdown != nil {
		if err := c.otelShutdown(ctx); err != nil {
			c.logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}

	c.logger.Info("Infrastructure shutdown complete")
	_ = c.logger.Sync()
}

// Getters for accessing infrastructure components
func (c *Container) Config() *config.Config         { return c.config }
func (c *Container) Logger() observability.Logger   { return c.logger }
func (c *Container) Tracer() observability.Tracer   { return c.tracer }
func (c *Container) Meter() metric.Meter            { return c.meter }
func (c *Container) Registry() *prometheus.Registry { return c.registry }
func (c *Container) Publisher() *kafka.Publisher    { return c.publisher }
