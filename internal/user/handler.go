package user

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

// Topics the user directory consumes.
var Topics = []string{events.TopicUserUpsertCmd}

type Publisher interface {
	Publish(ctx context.Context, evt events.Event) error
}

type Handler struct {
	repo      Repository
	publisher Publisher
	logger    observability.Logger
	tracer    observability.Tracer
	now       func() time.Time
}

// NewHandler returns a Handler that stores users in repo and announces them
// through publisher.
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
	cmd, ok := evt.(events.UserUpsertCommand)
	if !ok {
		tracing.Logger(ctx, h.logger).Debug("Ignoring event", zap.String("topic", evt.Topic()))
		return nil
	}
	return h.Upsert(ctx, cmd)
}

// Upsert stores the user, then publishes UserUpserted.
func (h *Handler) Upsert(ctx context.Context, cmd events.UserUpsertCommand) error {
	ctx, span := h.tracer.Start(ctx, "User.Upsert", trace.WithAttributes(tracing.Attributes(ctx)...))
	defer span.End()
	span.SetAttributes(attribute.String("user.id", cmd.UserID))
	logger := tracing.Logger(ctx, h.logger).With(zap.String("user_id", cmd.UserID))

	u, err := NewUser(cmd, h.now())
	if err != nil {
		logger.Warn("⚠️ User upsert discarded", zap.Error(err))
		return nil
	}

	if err := h.repo.Upsert(ctx, u); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return fmt.Errorf("store user %s: %w", u.ID, err)
	}
	if err := h.publisher.Publish(ctx, u.Upserted()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return fmt.Errorf("announce user %s: %w", u.ID, err)
	}

	logger.Info("👤 User stored")
	return nil
}
