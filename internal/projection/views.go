package projection

import (
	"errors"
	"time"

	"ordersaga/internal/events"
)

var ErrViewNotFound = errors.New("view not found")

// ProductView mirrors the catalog. Money is kept as decimal strings so no
// precision is lost in the document store.
type ProductView struct {
	ID          string    `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description" json:"description"`
	Price       string    `bson:"price" json:"price"`
	Stock       int       `bson:"stock" json:"stock"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

type UserView struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email" json:"email"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

type ItemView struct {
	ProductID string `bson:"productId" json:"productId"`
	Quantity  int    `bson:"quantity" json:"quantity"`
	UnitPrice string `bson:"unitPrice" json:"unitPrice"`
}

type OrderView struct {
	ID          string             `bson:"_id" json:"id"`
	UserID      string             `bson:"userId" json:"userId"`
	Items       []ItemView         `bson:"items" json:"items"`
	TotalAmount string             `bson:"totalAmount" json:"totalAmount"`
	Status      events.OrderStatus `bson:"status" json:"status"`
	Reason      string             `bson:"reason,omitempty" json:"reason,omitempty"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func productView(e events.ProductUpserted, now time.Time) ProductView {
	return ProductView{
		ID:          e.ProductID,
		Name:        e.Name,
		Description: e.Description,
		Price:       e.Price.String(),
		Stock:       e.Stock,
		UpdatedAt:   now,
	}
}

func userView(e events.UserUpserted, now time.Time) UserView {
	return UserView{
		ID:        e.UserID,
		Name:      e.Name,
		Email:     e.Email,
		UpdatedAt: now,
	}
}

// statusStub stands in for an order whose order.created has not been
// projected yet. SaveOrder fills in the rest and keeps the stub's status.
func statusStub(orderID string, status events.OrderStatus, reason string, now time.Time) OrderView {
	return OrderView{
		ID:        orderID,
		Items:     []ItemView{},
		Status:    status,
		Reason:    reason,
		UpdatedAt: now,
	}
}

func orderView(e events.OrderCreated, now time.Time) OrderView {
	items := make([]ItemView, 0, len(e.Items))
	for _, item := range e.Items {
		items = append(items, ItemView{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
		})
	}
	return OrderView{
		ID:          e.OrderID,
		UserID:      e.UserID,
		Items:       items,
		TotalAmount: e.TotalAmount.String(),
		Status:      e.Status,
		UpdatedAt:   now,
	}
}
