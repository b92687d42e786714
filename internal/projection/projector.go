// Package projection materializes saga events into query views. It only
// reads the bus and never publishes.
package projection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ordersaga/internal/events"
	"ordersaga/internal/platform/observability"
	"ordersaga/internal/tracing"

	"go.uber.org/zap"
)

// Topics the projector consumes.
var Topics = []string{
	events.TopicProductUpserted,
	events.TopicUserUpserted,
	events.TopicOrderCreated,
	events.TopicOrderStatusChanged,
	events.TopicInventoryRejected,
	events.TopicPaymentCompleted,
}

type Projector struct {
	store  Store
	logger observability.Logger
	now    func() time.Time
}

// NewProjector returns a Projector writing into store.
func NewProjector(store Store, logger observability.Logger) *Projector {
	return &Projector{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (p *Projector) HandleEvent(ctx context.Context, evt events.Event) error {
	switch e := evt.(type) {
	case events.ProductUpserted:
		if err := p.store.UpsertProduct(ctx, productView(e, p.now())); err != nil {
			return fmt.Errorf("upsert product view %s: %w", e.ProductID, err)
		}
		tracing.Logger(ctx, p.logger).Info("🗂️ Product view updated", zap.String("product_id", e.ProductID))
		return nil
	case events.UserUpserted:
		if err := p.store.UpsertUser(ctx, userView(e, p.now())); err != nil {
			return fmt.Errorf("upsert user view %s: %w", e.UserID, err)
		}
		tracing.Logger(ctx, p.logger).Info("🗂️ User view updated", zap.String("user_id", e.UserID))
		return nil
	case events.OrderCreated:
		if err := p.store.SaveOrder(ctx, orderView(e, p.now())); err != nil {
			return fmt.Errorf("save order view %s: %w", e.OrderID, err)
		}
		tracing.Logger(ctx, p.logger).Info("🗂️ Order view saved", zap.String("order_id", e.OrderID))
		return nil
	case events.OrderStatusChanged:
		return p.applyStatus(ctx, e.OrderID, e.Status, e.Reason)
	case events.InventoryRejected:
		return p.applyStatus(ctx, e.OrderID, events.StatusInventoryRejected, e.Reason)
	case events.PaymentCompleted:
		return p.applyStatus(ctx, e.OrderID, events.StatusPaymentCompleted, e.Status)
	default:
		return nil
	}
}

// applyStatus moves a view forward. The same outcome reaches the projector
// twice (the outcome event and the coordinator's status change), and topics
// are not ordered against each other, so anything that is not a forward move
// is ignored. A status that arrives before its order.created leaves a stub.
func (p *Projector) applyStatus(ctx context.Context, orderID string, to events.OrderStatus, reason string) error {
	logger := tracing.Logger(ctx, p.logger).With(zap.String("order_id", orderID), zap.String("status", string(to)))

	view, err := p.store.GetOrder(ctx, orderID)
	if errors.Is(err, ErrViewNotFound) {
		inserted, stubErr := p.store.InsertOrderStub(ctx, statusStub(orderID, to, reason, p.now()))
		if stubErr != nil {
			return fmt.Errorf("insert order view stub %s: %w", orderID, stubErr)
		}
		if inserted {
			logger.Info("🗂️ Order view stub created ahead of order.created")
			return nil
		}
		view, err = p.store.GetOrder(ctx, orderID)
	}
	if err != nil {
		return fmt.Errorf("load order view %s: %w", orderID, err)
	}

	if !view.Status.Precedes(to) {
		logger.Debug("Status update is not a forward move, skipped", zap.String("current_status", string(view.Status)))
		return nil
	}

	updated, err := p.store.SetOrderStatus(ctx, orderID, view.Status, to, reason, p.now())
	if err != nil {
		return fmt.Errorf("update order view %s: %w", orderID, err)
	}
	if !updated {
		logger.Debug("Order view changed concurrently, status update skipped")
		return nil
	}
	logger.Info("🗂️ Order view status updated", zap.String("previous_status", string(view.Status)))
	return nil
}
