package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ordersaga/internal/events"
	"ordersaga/internal/platform/observability"
	"ordersaga/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Topics the coordinator consumes.
var Topics = []string{
	events.TopicOrderRequested,
	events.TopicInventoryReserved,
	events.TopicInventoryRejected,
	events.TopicPaymentCompleted,
	events.TopicPaymentFailed,
}

// Coordinator drives an order through the saga. It never calls another
// service; every step reacts to an event and answers with events written to
// the outbox in the same transaction as the status change.
type Coordinator struct {
	repo        Repository
	logger      observability.Logger
	tracer      observability.Tracer
	transitions metric.Int64Counter
	now         func() time.Time
}

func NewCoordinator(repo Repository, logger observability.Logger, tracer observability.Tracer, meter metric.Meter) (*Coordinator, error) {
	transitions, err := meter.Int64Counter("saga.order.transitions",
		metric.WithDescription("Order status transitions applied by the coordinator"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("transitions counter: %w", err)
	}
	return &Coordinator{
		repo:        repo,
		logger:      logger,
		tracer:      tracer,
		transitions: transitions,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// HandleEvent routes a consumed event to its handler.
func (c *Coordinator) HandleEvent(ctx context.Context, evt events.Event) error {
	switch e := evt.(type) {
	case events.OrderRequested:
		return c.OnOrderRequested(ctx, e)
	case events.InventoryReserved:
		return c.OnInventoryReserved(ctx, e)
	case events.InventoryRejected:
		return c.OnInventoryRejected(ctx, e)
	case events.PaymentCompleted:
		return c.OnPaymentCompleted(ctx, e)
	case events.PaymentFailed:
		return c.OnPaymentFailed(ctx, e)
	default:
		tracing.Logger(ctx, c.logger).Debug("Ignoring event", zap.String("topic", evt.Topic()))
		return nil
	}
}

// OnOrderRequested creates the order exactly once. Duplicate commands and
// commands without an order id are discarded.
func (c *Coordinator) OnOrderRequested(ctx context.Context, cmd events.OrderRequested) error {
	ctx, span := c.tracer.Start(ctx, "Coordinator.OnOrderRequested", trace.WithAttributes(tracing.Attributes(ctx)...))
	defer span.End()
	logger := tracing.Logger(ctx, c.logger)

	// Ids are assigned where the command is issued. Minting one here would
	// turn every redelivery into a new order.
	if cmd.OrderID == "" {
		logger.Warn("⚠️ OrderRequested without order id discarded", zap.String("user_id", cmd.UserID))
		return nil
	}
	span.SetAttributes(attribute.String("order.id", cmd.OrderID))

	o := NewOrder(cmd, c.now())
	if !cmd.TotalAmount.IsZero() && !cmd.TotalAmount.Equal(o.TotalAmount) {
		logger.Warn("⚠️ Requested total does not match items, using computed total",
			zap.String("order_id", o.ID),
			zap.String("requested_total", cmd.TotalAmount.String()),
			zap.String("computed_total", o.TotalAmount.String()),
		)
	}

	err := c.repo.Create(ctx, o, o.Created())
	if errors.Is(err, ErrOrderExists) {
		logger.Info("🔁 Duplicate OrderRequested discarded", zap.String("order_id", o.ID))
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return fmt.Errorf("create order %s: %w", o.ID, err)
	}

	c.count(ctx, o.Status)
	logger.Info("✅ Order created",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.String("total_amount", o.TotalAmount.String()),
		zap.Int("items", len(o.Items)),
	)
	return nil
}

// OnInventoryReserved moves the order on and asks for payment.
func (c *Coordinator) OnInventoryReserved(ctx context.Context, evt events.InventoryReserved) error {
	return c.advance(ctx, evt.OrderID, events.StatusInventoryReserved, "", func(o *Order) []events.Event {
		return []events.Event{o.PaymentRequested()}
	})
}

func (c *Coordinator) OnInventoryRejected(ctx context.Context, evt events.InventoryRejected) error {
	return c.advance(ctx, evt.OrderID, events.StatusInventoryRejected, evt.Reason, nil)
}

// OnPaymentCompleted finalizes the order. The payment status is kept as the
// reason so read models can show it.
func (c *Coordinator) OnPaymentCompleted(ctx context.Context, evt events.PaymentCompleted) error {
	return c.advance(ctx, evt.OrderID, events.StatusPaymentCompleted, evt.Status, nil)
}

func (c *Coordinator) OnPaymentFailed(ctx context.Context, evt events.PaymentFailed) error {
	return c.advance(ctx, evt.OrderID, events.StatusPaymentFailed, evt.Reason, nil)
}

// advance applies one transition and stores it with an OrderStatusChanged
// plus whatever follow-up events the step emits. Unknown orders, repeated
// outcomes and out-of-order outcomes leave the order untouched.
func (c *Coordinator) advance(
	ctx context.Context,
	orderID string,
	to events.OrderStatus,
	reason string,
	followUp func(*Order) []events.Event,
) error {
	ctx, span := c.tracer.Start(ctx, "Coordinator.advance", trace.WithAttributes(append(
		tracing.Attributes(ctx),
		attribute.String("order.id", orderID),
		attribute.String("order.status", string(to)),
	)...))
	defer span.End()
	logger := tracing.Logger(ctx, c.logger).With(zap.String("order_id", orderID), zap.String("status", string(to)))

	o, err := c.repo.Get(ctx, orderID)
	if errors.Is(err, ErrOrderNotFound) {
		logger.Debug("Outcome for unknown order skipped")
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load order %s: %w", orderID, err)
	}

	if o.Status == to {
		logger.Info("🔁 Order already in status, duplicate outcome ignored")
		return nil
	}

	from := o.Status
	if err := o.Transition(to, reason, c.now()); err != nil {
		logger.Warn("⚠️ Stale outcome discarded", zap.String("current_status", string(from)), zap.Error(err))
		return nil
	}

	out := []events.Event{o.StatusChanged()}
	if followUp != nil {
		out = append(out, followUp(o)...)
	}

	err = c.repo.Update(ctx, o, from, out...)
	if errors.Is(err, ErrInvalidTransition) {
		logger.Warn("⚠️ Order changed concurrently, outcome discarded", zap.Error(err))
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return fmt.Errorf("update order %s: %w", orderID, err)
	}

	c.count(ctx, to)
	fields := []zap.Field{zap.String("previous_status", string(from))}
	if reason != "" {
		fields = append(fields, zap.String("reason", reason))
	}
	logger.Info("✅ Order status changed", fields...)
	return nil
}

func (c *Coordinator) count(ctx context.Context, status events.OrderStatus) {
	c.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}
