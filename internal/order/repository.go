package order

import (
	"context"

	"ordersaga/internal/events"
)

// Repository persists orders together with the events their change emits.
// Implementations write the order and its outbound events atomically.
type Repository interface {
	// Create inserts a new order, or returns ErrOrderExists.
	Create(ctx context.Context, o *Order, out ...events.Event) error

	// Update stores o if its persisted status is still from, otherwise it
	// returns ErrInvalidTransition.
	Update(ctx context.Context, o *Order, from events.OrderStatus, out ...events.Event) error

	// Get returns the order or ErrOrderNotFound.
	Get(ctx context.Context, orderID string) (*Order, error)
}
