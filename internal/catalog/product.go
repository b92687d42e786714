// Package catalog owns products. It stores upsert commands in Postgres and
// announces every stored product so inventory and read models can follow.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ordersaga/internal/events"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product")
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// NewProduct validates an upsert command. Stock is the absolute level to
// set, not a delta.
func NewProduct(cmd events.ProductUpsertCommand, now time.Time) (*Product, error) {
	switch {
	case cmd.ProductID == "":
		return nil, fmt.Errorf("%w: missing product id", ErrInvalidProduct)
	case cmd.Stock < 0:
		return nil, fmt.Errorf("%w: negative stock %d for product %s", ErrInvalidProduct, cmd.Stock, cmd.ProductID)
	case cmd.Price.IsNegative():
		return nil, fmt.Errorf("%w: negative price %s for product %s", ErrInvalidProduct, cmd.Price, cmd.ProductID)
	}
	return &Product{
		ID:          cmd.ProductID,
		Name:        cmd.Name,
		Description: cmd.Description,
		Price:       cmd.Price,
		Stock:       cmd.Stock,
		UpdatedAt:   now,
	}, nil
}

// Upserted is the event announcing p.
func (p *Product) Upserted() events.ProductUpserted {
	return events.ProductUpserted{
		ProductID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
	}
}

type Repository interface {
	// Upsert creates or replaces the product. Last write wins.
	Upsert(ctx context.Context, p *Product) error

	// Get returns the product or ErrProductNotFound.
	Get(ctx context.Context, productID string) (*Product, error)
}
