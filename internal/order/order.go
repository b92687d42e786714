package order

import (
	"errors"
	"fmt"
	"time"

	"ordersaga/internal/events"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderExists       = errors.New("order already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Order is owned by the coordinator. Items and TotalAmount are fixed at
// creation; Status only moves forward along the transition graph.
type Order struct {
	ID          string             `json:"id"`
	UserID      string             `json:"userId"`
	Items       []events.OrderItem `json:"items"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	Status      events.OrderStatus `json:"status"`
	Reason      string             `json:"reason,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// NewOrder builds a CREATED order from the command. The total is computed
// from the items; the command's own total is not trusted.
func NewOrder(cmd events.OrderRequested, now time.Time) *Order {
	items := make([]events.OrderItem, len(cmd.Items))
	copy(items, cmd.Items)

	o := &Order{
		ID:          cmd.OrderID,
		UserID:      cmd.UserID,
		Items:       items,
		TotalAmount: events.Total(items),
		Status:      events.StatusRequested,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// REQUESTED -> CREATED is always legal.
	_ = o.Transition(events.StatusCreated, "", now)
	return o
}

// Transition moves the order to next, recording reason.
func (o *Order) Transition(next events.OrderStatus, reason string, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	o.Status = next
	o.Reason = reason
	o.UpdatedAt = now
	return nil
}

func (o *Order) Created() events.OrderCreated {
	return events.OrderCreated{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Items:       o.Items,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
	}
}

func (o *Order) StatusChanged() events.OrderStatusChanged {
	return events.OrderStatusChanged{
		OrderID: o.ID,
		Status:  o.Status,
		Reason:  o.Reason,
	}
}

func (o *Order) PaymentRequested() events.PaymentRequested {
	return events.PaymentRequested{
		OrderID: o.ID,
		UserID:  o.UserID,
		Amount:  o.TotalAmount,
	}
}
