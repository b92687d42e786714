package catalog

import (
	"context"
	"fmt"
	"time"

	"ordersaga/internal/events"
	"ordersaga/internal/platform/observability"
	"ordersaga/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Topics the catalog consumes.
var Topics = []string{events.TopicProductUpsertCmd}

type Publisher interface {
	Publish(ctx context.Context, evt events.Event) error
}

// Handler applies product upsert commands. The product is stored before it
// is announced, so a failed publish is retried by redelivery of the command.
type Handler struct {
	repo      Repository
	publisher Publisher
	logger    observability.Logger
	tracer    observability.Tracer
	now       func() time.Time
}

// NewHandler returns a Handler that stores products in repo and announces
// them through publisher.
func NewHandler(repo Repository, publisher Publisher, logger observability.Logger, tracer observability.Tracer) *Handler {
	return &Handler{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		tracer:    tracer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) HandleEvent(ctx context.Context, evt events.Event) error {
	cmd, ok := evt.(events.ProductUpsertCommand)
	if !ok {
		tracing.Logger(ctx, h.logger).Debug("Ignoring event", zap.String("topic", evt.Topic()))
		return nil
	}
	return h.Upsert(ctx, cmd)
}

// Upsert stores the product and publishes ProductUpserted. Invalid commands
// are logged and dropped since no retry can fix them.
func (h *Handler) Upsert(ctx context.Context, cmd events.ProductUpsertCommand) error {
	ctx, span := h.tracer.Start(ctx, "Catalog.Upsert", trace.WithAttributes(tracing.Attributes(ctx)...))
	defer span.End()
	span.SetAttributes(attribute.String("product.id", cmd.ProductID))
	logger := tracing.Logger(ctx, h.logger).With(zap.String("product_id", cmd.ProductID))

	p, err := NewProduct(cmd, h.now())
	if err != nil {
		logger.Warn("⚠️ Product upsert discarded", zap.Error(err))
		return nil
	}

	if err := h.repo.Upsert(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return fmt.Errorf("store product %s: %w", p.ID, err)
	}
	if err := h.publisher.Publish(ctx, p.Upserted()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return fmt.Errorf("announce product %s: %w", p.ID, err)
	}

	logger.Info("📦 Product stored",
		zap.String("name", p.Name),
		zap.String("price", p.Price.String()),
		zap.Int("stock", p.Stock),
	)
	return nil
}
