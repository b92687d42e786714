package httpapi

import (
	"context"
	"errors"
	"net/http"

	"ordersaga/internal/catalog"
	"ordersaga/internal/order"
	"ordersaga/internal/projection"
	"ordersaga/internal/user"

	"github.com/gin-gonic/gin"
)

// RegisterViews exposes the projector's read models.
func RegisterViews(r gin.IRouter, reader projection.Reader) {
	r.GET("/orders/:id", func(c *gin.Context) {
		view, err := reader.GetOrder(c.Request.Context(), c.Param("id"))
		respond(c, view, err)
	})
	r.GET("/users/:id/orders", func(c *gin.Context) {
		views, err := reader.OrdersByUser(c.Request.Context(), c.Param("id"))
		respond(c, views, err)
	})
	r.GET("/products/:id", func(c *gin.Context) {
		view, err := reader.GetProduct(c.Request.Context(), c.Param("id"))
		respond(c, view, err)
	})
	r.GET("/users/:id", func(c *gin.Context) {
		view, err := reader.GetUser(c.Request.Context(), c.Param("id"))
		respond(c, view, err)
	})
}

type ProductGetter interface {
	Get(ctx context.Context, productID string) (*catalog.Product, error)
}

// RegisterProducts exposes the catalog's stored products.
func RegisterProducts(r gin.IRouter, products ProductGetter) {
	r.GET("/products/:id", func(c *gin.Context) {
		p, err := products.Get(c.Request.Context(), c.Param("id"))
		respond(c, p, err)
	})
}

type UserGetter interface {
	Get(ctx context.Context, userID string) (*user.User, error)
}

// RegisterUsers exposes the user directory.
func RegisterUsers(r gin.IRouter, users UserGetter) {
	r.GET("/users/:id", func(c *gin.Context) {
		u, err := users.Get(c.Request.Context(), c.Param("id"))
		respond(c, u, err)
	})
}

// OrderGetter is the part of order.Repository the order service exposes.
type OrderGetter interface {
	Get(ctx context.Context, orderID string) (*order.Order, error)
}

type orderResponse struct {
	ID          string                `json:"id"`
	UserID      string                `json:"userId"`
	Status      string                `json:"status"`
	Reason      string                `json:"reason,omitempty"`
	TotalAmount string                `json:"totalAmount"`
	Items       []projection.ItemView `json:"items"`
}

// RegisterOrders exposes the coordinator's authoritative order state.
func RegisterOrders(r gin.IRouter, orders OrderGetter) {
	r.GET("/orders/:id", func(c *gin.Context) {
		o, err := orders.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respond(c, nil, err)
			return
		}
		items := make([]projection.ItemView, 0, len(o.Items))
		for _, item := range o.Items {
			items = append(items, projection.ItemView{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice.String(),
			})
		}
		c.JSON(http.StatusOK, orderResponse{
			ID:          o.ID,
			UserID:      o.UserID,
			Status:      string(o.Status),
			Reason:      o.Reason,
			TotalAmount: o.TotalAmount.String(),
			Items:       items,
		})
	})
}

func respond(c *gin.Context, body any, err error) {
	switch {
	case errors.Is(err, projection.ErrViewNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, user.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusOK, body)
	}
}
