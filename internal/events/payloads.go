package events

import "github.com/shopspring/decimal"

// Event is a saga message payload. Topic names the message type and Key is
// the partition key (the id of the entity the message is about).
type Event interface {
	Topic() string
	Key() string
}

// OrderItem is one immutable line of an order.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Subtotal returns quantity * unit price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Total sums the subtotals of items.
func Total(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// OrderRequested is the client command that starts a saga.
type OrderRequested struct {
	OrderID     string          `json:"orderId"`
	UserID      string          `json:"userId"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

func (OrderRequested) Topic() string { return TopicOrderRequested }
func (e OrderRequested) Key() string { return e.OrderID }

// OrderCreated is emitted once the coordinator has persisted a new order.
type OrderCreated struct {
	OrderID     string          `json:"orderId"`
	UserID      string          `json:"userId"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      OrderStatus     `json:"status"`
}

func (OrderCreated) Topic() string { return TopicOrderCreated }
func (e OrderCreated) Key() string { return e.OrderID }

// InventoryReserved reports that stock for every item of an order is held.
type InventoryReserved struct {
	OrderID string `json:"orderId"`
}

func (InventoryReserved) Topic() string { return TopicInventoryReserved }
func (e InventoryReserved) Key() string { return e.OrderID }

// InventoryRejected reports that an order could not be reserved.
type InventoryRejected struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

func (InventoryRejected) Topic() string { return TopicInventoryRejected }
func (e InventoryRejected) Key() string { return e.OrderID }

// PaymentRequested asks the payment step to charge an order.
type PaymentRequested struct {
	OrderID string          `json:"orderId"`
	UserID  string          `json:"userId"`
	Amount  decimal.Decimal `json:"amount"`
}

func (PaymentRequested) Topic() string { return TopicPaymentRequested }
func (e PaymentRequested) Key() string { return e.OrderID }

// PaymentCompleted reports an approved payment.
type PaymentCompleted struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
}

func (PaymentCompleted) Topic() string { return TopicPaymentCompleted }
func (e PaymentCompleted) Key() string { return e.OrderID }

// PaymentFailed reports a denied payment.
type PaymentFailed struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

func (PaymentFailed) Topic() string { return TopicPaymentFailed }
func (e PaymentFailed) Key() string { return e.OrderID }

// OrderStatusChanged mirrors every coordinator transition for read models.
type OrderStatusChanged struct {
	OrderID string      `json:"orderId"`
	Status  OrderStatus `json:"status"`
	Reason  string      `json:"reason,omitempty"`
}

func (OrderStatusChanged) Topic() string { return TopicOrderStatusChanged }
func (e OrderStatusChanged) Key() string { return e.OrderID }

// ProductUpsertCommand asks the catalog to create or replace a product.
type ProductUpsertCommand struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

func (ProductUpsertCommand) Topic() string { return TopicProductUpsertCmd }
func (e ProductUpsertCommand) Key() string { return e.ProductID }

// ProductUpserted is published by the catalog whenever a product changes.
type ProductUpserted struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

func (ProductUpserted) Topic() string { return TopicProductUpserted }
func (e ProductUpserted) Key() string { return e.ProductID }

// UserUpsertCommand asks the user directory to create or replace a user.
type UserUpsertCommand struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

func (UserUpsertCommand) Topic() string { return TopicUserUpsertCmd }
func (e UserUpsertCommand) Key() string { return e.UserID }

// UserUpserted is published once a user has been stored.
type UserUpserted struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

func (UserUpserted) Topic() string { return TopicUserUpserted }
func (e UserUpserted) Key() string { return e.UserID }
