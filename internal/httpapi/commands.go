package httpapi

import (
	"context"
	"net/http"

	"ordersaga/internal/events"
	"ordersaga/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Publisher sends a command onto the bus.
type Publisher interface {
	Publish(ctx context.Context, evt events.Event) error
}

type orderItemRequest struct {
	ProductID string          `json:"productId" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type placeOrderRequest struct {
	UserID string             `json:"userId" binding:"required"`
	Items  []orderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type upsertProductRequest struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" binding:"gte=0"`
}

type upsertUserRequest struct {
	UserID string `json:"userId"`
	Name   string `json:"name" binding:"required"`
	Email  string `json:"email" binding:"required,email"`
}

// RegisterOrderCommands accepts new orders. The order id is minted here so
// every redelivery of the command carries the same id.
func RegisterOrderCommands(r gin.IRouter, publisher Publisher) {
	r.POST("/orders", func(c *gin.Context) {
		var req placeOrderRequest
		if !bind(c, &req) {
			return
		}
		items := make([]events.OrderItem, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, events.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}
		cmd := events.OrderRequested{
			OrderID:     uuid.NewString(),
			UserID:      req.UserID,
			Items:       items,
			TotalAmount: events.Total(items),
		}
		accept(c, publisher, cmd, gin.H{"orderId": cmd.OrderID})
	})
}

// RegisterProductCommands accepts product upserts. A missing product id is
// minted.
func RegisterProductCommands(r gin.IRouter, publisher Publisher) {
	r.POST("/products", func(c *gin.Context) {
		var req upsertProductRequest
		if !bind(c, &req) {
			return
		}
		if req.Price.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price must not be negative"})
			return
		}
		if req.ProductID == "" {
			req.ProductID = uuid.NewString()
		}
		cmd := events.ProductUpsertCommand{
			ProductID:   req.ProductID,
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			Stock:       req.Stock,
		}
		accept(c, publisher, cmd, gin.H{"productId": cmd.ProductID})
	})
}

// RegisterUserCommands accepts user upserts. A missing user id is minted.
func RegisterUserCommands(r gin.IRouter, publisher Publisher) {
	r.POST("/users", func(c *gin.Context) {
		var req upsertUserRequest
		if !bind(c, &req) {
			return
		}
		if req.UserID == "" {
			req.UserID = uuid.NewString()
		}
		cmd := events.UserUpsertCommand{UserID: req.UserID, Name: req.Name, Email: req.Email}
		accept(c, publisher, cmd, gin.H{"userId": cmd.UserID})
	})
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// accept publishes cmd and answers 202 with body plus the correlation id the
// saga will carry.
func accept(c *gin.Context, publisher Publisher, cmd events.Event, body gin.H) {
	ctx := c.Request.Context()
	if err := publisher.Publish(ctx, cmd); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "command not accepted"})
		return
	}
	body["correlationId"] = tracing.CorrelationID(ctx)
	c.JSON(http.StatusAccepted, body)
}
