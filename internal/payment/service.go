package payment

import (
	"context"

	"ordersaga/internal/events"
	"ordersaga/internal/platform/observability"
	"ordersaga/internal/tracing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	StatusApproved      = "APPROVED"
	ReasonInvalidAmount = "Invalid payment amount"
)

// Authorizer decides a payment request. There is no payment network behind
// it: the decision depends only on the sign of the amount.
type Authorizer interface {
	Authorize(ctx context.Context, orderID, userID string, amount decimal.Decimal) events.Event
}

type DefaultAuthorizer struct {
	logger observability.Logger
	tracer observability.Tracer
}

func NewAuthorizer(logger observability.Logger, tracer observability.Tracer) Authorizer {
	return &DefaultAuthorizer{
		logger: logger,
		tracer: tracer,
	}
}

// Authorize returns PaymentFailed for a non-positive amount and
// PaymentCompleted with a fresh payment id otherwise.
func (a *DefaultAuthorizer) Authorize(ctx context.Context, orderID, userID string, amount decimal.Decimal) events.Event {
	ctx, span := a.tracer.Start(ctx, "payment_authorize")
	defer span.End()
	logger := tracing.Logger(ctx, a.logger)

	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("payment.amount", amount.String()),
	)

	if !amount.IsPositive() {
		span.SetAttributes(attribute.String("payment.status", "FAILED"))
		span.SetStatus(codes.Ok, "payment declined")
		logger.Info("💳 Payment declined",
			zap.String("order_id", orderID),
			zap.String("amount", amount.String()),
		)
		return events.PaymentFailed{OrderID: orderID, Reason: ReasonInvalidAmount}
	}

	paymentID := uuid.NewString()
	span.SetAttributes(
		attribute.String("payment.id", paymentID),
		attribute.String("payment.status", StatusApproved),
	)
	span.SetStatus(codes.Ok, "payment approved")
	logger.Info("💳 Payment approved",
		zap.String("order_id", orderID),
		zap.String("user_id", userID),
		zap.String("payment_id", paymentID),
	)
	return events.PaymentCompleted{OrderID: orderID, PaymentID: paymentID, Status: StatusApproved}
}
