package payment

import (
	"context"

	"ordersaga/internal/events"
	"ordersaga/internal/platform/observability"
	"ordersaga/internal/tracing"

	"go.uber.org/zap"
)

// Topics the payment step consumes.
var Topics = []string{events.TopicPaymentRequested}

type Publisher interface {
	Publish(ctx context.Context, evt events.Event) error
}

// Handler turns payment requests into payment outcomes.
type Handler struct {
	authorizer Authorizer
	publisher  Publisher
	logger     observability.Logger
}

// NewHandler returns a Handler that publishes each decision of authorizer.
func NewHandler(authorizer Authorizer, publisher Publisher, logger observability.Logger) *Handler {
	return &Handler{
		authorizer: authorizer,
		publisher:  publisher,
		logger:     logger,
	}
}

func (h *Handler) HandleEvent(ctx context.Context, evt events.Event) error {
	req, ok := evt.(events.PaymentRequested)
	if !ok {
		tracing.Logger(ctx, h.logger).Debug("Ignoring event", zap.String("topic", evt.Topic()))
		return nil
	}
	return h.publisher.Publish(ctx, h.authorizer.Authorize(ctx, req.OrderID, req.UserID, req.Amount))
}
