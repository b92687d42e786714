package inventory

import (
	"context"
	"fmt"

	"ordersaga/internal/events"
	"ordersaga/internal/platform/observability"
	"ordersaga/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Topics the engine consumes.
var Topics = []string{
	events.TopicProductUpserted,
	events.TopicOrderCreated,
	events.TopicPaymentCompleted,
	events.TopicPaymentFailed,
}

type Publisher interface {
	Publish(ctx context.Context, evt events.Event) error
}

// Engine owns the stock counters and reservation records.
type Engine struct {
	ledger       Ledger
	publisher    Publisher
	logger       observability.Logger
	tracer       observability.Tracer
	reservations metric.Int64Counter
}

// NewEngine returns an Engine over ledger. It fails only when its metric
// instruments cannot be created.
func NewEngine(ledger Ledger, publisher Publisher, logger observability.Logger, tracer observability.Tracer, meter metric.Meter) (*Engine, error) {
	reservations, err := meter.Int64Counter("saga.inventory.reservations",
		metric.WithDescription("Reservation decisions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("reservations counter: %w", err)
	}
	return &Engine{
		ledger:       ledger,
		publisher:    publisher,
		logger:       logger,
		tracer:       tracer,
		reservations: reservations,
	}, nil
}

func (e *Engine) HandleEvent(ctx context.Context, evt events.Event) error {
	switch ev := evt.(type) {
	case events.ProductUpserted:
		return e.ApplyCatalogUpdate(ctx, ev.ProductID, ev.Stock)
	case events.OrderCreated:
		_, err := e.ReserveForOrder(ctx, ev.OrderID, ev.Items)
		return err
	case events.PaymentFailed:
		return e.Compensate(ctx, ev.OrderID, true)
	case events.PaymentCompleted:
		return e.Compensate(ctx, ev.OrderID, false)
	default:
		tracing.Logger(ctx, e.logger).Debug("Ignoring event", zap.String("topic", evt.Topic()))
		return nil
	}
}

// ApplyCatalogUpdate overwrites the counter. Negative stock is stored as 0.
func (e *Engine) ApplyCatalogUpdate(ctx context.Context, productID string, stock int) error {
	logger := tracing.Logger(ctx, e.logger).With(zap.String("product_id", productID))
	if stock < 0 {
		logger.Warn("⚠️ Negative stock in catalog update, storing 0", zap.Int("stock", stock))
		stock = 0
	}
	if err := e.ledger.SetStock(ctx, productID, stock); err != nil {
		return fmt.Errorf("set stock %s: %w", productID, err)
	}
	logger.Info("📦 Stock level set", zap.Int("stock", stock))
	return nil
}

// ReserveForOrder decides the whole order at once: either every line is
// reserved or nothing is touched and the first short product is reported.
// A redelivered order gets its recorded decision re-emitted.
func (e *Engine) ReserveForOrder(ctx context.Context, orderID string, items []events.OrderItem) (events.Event, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.ReserveForOrder", trace.WithAttributes(append(
		tracing.Attributes(ctx),
		attribute.String("order.id", orderID),
		attribute.Int("order.items", len(items)),
	)...))
	defer span.End()
	logger := tracing.Logger(ctx, e.logger).With(zap.String("order_id", orderID))

	lines, invalid, ok := aggregate(items)

	var outcome events.Event
	switch {
	case !ok:
		outcome = events.InventoryRejected{OrderID: orderID, Reason: "Invalid quantity for product " + invalid}
		e.count(ctx, "invalid")
	default:
		decision, err := e.ledger.Reserve(ctx, orderID, lines)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if decision.Duplicate {
			logger.Info("🔁 Order already decided, re-emitting recorded outcome", zap.Bool("reserved", decision.Reserved))
		}
		if decision.Reserved {
			outcome = events.InventoryReserved{OrderID: orderID}
		} else {
			outcome = events.InventoryRejected{OrderID: orderID, Reason: "Insufficient stock for product " + decision.ProductID}
		}
		if !decision.Duplicate {
			e.count(ctx, outcomeLabel(decision))
		}
	}

	switch ev := outcome.(type) {
	case events.InventoryReserved:
		logger.Info("✅ Inventory reserved", zap.Int("lines", len(lines)))
	case events.InventoryRejected:
		logger.Info("🚫 Inventory rejected", zap.String("reason", ev.Reason))
	}

	if err := e.publisher.Publish(ctx, outcome); err != nil {
		span.RecordError(err)
		return outcome, err
	}
	return outcome, nil
}

// Compensate releases the reservation of orderID, returning the reserved
// quantities to stock when restore is set. Calling it again is a no-op.
func (e *Engine) Compensate(ctx context.Context, orderID string, restore bool) error {
	ctx, span := e.tracer.Start(ctx, "Engine.Compensate", trace.WithAttributes(append(
		tracing.Attributes(ctx),
		attribute.String("order.id", orderID),
		attribute.Bool("inventory.restore", restore),
	)...))
	defer span.End()
	logger := tracing.Logger(ctx, e.logger).With(zap.String("order_id", orderID))

	released, err := e.ledger.Release(ctx, orderID, restore)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if released == nil {
		logger.Debug("No reservation to release")
		return nil
	}

	if restore {
		e.count(ctx, "compensated")
		logger.Info("↩️ Inventory compensation completed", zap.Any("restored_items", released))
	} else {
		logger.Info("🧹 Reservation consumed", zap.Any("items", released))
	}
	return nil
}

func (e *Engine) Stock(ctx context.Context, productID string) (int, error) {
	return e.ledger.Stock(ctx, productID)
}

func (e *Engine) Reservation(ctx context.Context, orderID string) (map[string]int, error) {
	return e.ledger.Reservation(ctx, orderID)
}

func (e *Engine) count(ctx context.Context, outcome string) {
	e.reservations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func outcomeLabel(o Outcome) string {
	if o.Reserved {
		return "reserved"
	}
	return "rejected"
}

// aggregate sums repeated products, keeping first-seen order. It fails on
// the first product with a non-positive quantity.
func aggregate(items []events.OrderItem) (lines []Line, invalid string, ok bool) {
	index := make(map[string]int, len(items))
	lines = make([]Line, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, item.ProductID, false
		}
		if i, ok := index[item.ProductID]; ok {
			lines[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(lines)
		lines = append(lines, Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines, "", true
}
