package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ordersaga/internal/catalog"
	"ordersaga/internal/config"
	"ordersaga/internal/events"
	"ordersaga/internal/order"
	"ordersaga/internal/platform/metrics"
	"ordersaga/internal/projection"
	"ordersaga/internal/sagatest"
	"ordersaga/internal/tracing"
	"ordersaga/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter() *gin.Engine {
	return NewRouter("test-service", metrics.NewRegistry(), zap.NewNop())
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	// Arrange
	r := newTestRouter()

	// Act
	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"test-service"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(config.CorrelationHeader))
}

func TestRouter_Metrics(t *testing.T) {
	r := newTestRouter()

	w := serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestCorrelation_HonorsIncomingHeader(t *testing.T) {
	r := newTestRouter()
	var seen string
	r.GET("/probe", func(c *gin.Context) {
		seen = tracing.CorrelationID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(config.CorrelationHeader, "corr-http")

	w := serve(r, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "corr-http", seen)
	assert.Equal(t, "corr-http", w.Header().Get(config.CorrelationHeader))
}

func TestCorrelation_MintsWhenMissing(t *testing.T) {
	r := newTestRouter()
	var seen string
	r.GET("/probe", func(c *gin.Context) {
		seen = tracing.CorrelationID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/probe", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(config.CorrelationHeader))
}

func TestViews(t *testing.T) {
	store := sagatest.NewViewStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertProduct(ctx, projection.ProductView{ID: "P1", Name: "Lamp", Price: "12", Stock: 4}))
	require.NoError(t, store.UpsertUser(ctx, projection.UserView{ID: "user-1", Name: "Ada", Email: "ada@example.com"}))
	require.NoError(t, store.SaveOrder(ctx, projection.OrderView{
		ID:          "order-1",
		UserID:      "user-1",
		TotalAmount: "24",
		Status:      events.StatusInventoryReserved,
		UpdatedAt:   time.Now(),
	}))
	r := newTestRouter()
	RegisterViews(r, store)

	tests := []struct {
		name string
		path string
		code int
		want string
	}{
		{name: "order", path: "/orders/order-1", code: http.StatusOK, want: `"status":"INVENTORY_RESERVED"`},
		{name: "missing order", path: "/orders/nope", code: http.StatusNotFound, want: "view not found"},
		{name: "orders by user", path: "/users/user-1/orders", code: http.StatusOK, want: `"id":"order-1"`},
		{name: "no orders for user", path: "/users/user-2/orders", code: http.StatusOK, want: `[]`},
		{name: "product", path: "/products/P1", code: http.StatusOK, want: `"stock":4`},
		{name: "missing product", path: "/products/P2", code: http.StatusNotFound, want: "view not found"},
		{name: "user", path: "/users/user-1", code: http.StatusOK, want: `"email":"ada@example.com"`},
		{name: "missing user", path: "/users/user-2", code: http.StatusNotFound, want: "view not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestOrders(t *testing.T) {
	store := sagatest.NewOrderStore()
	o := order.NewOrder(events.OrderRequested{
		OrderID: "order-1",
		UserID:  "user-1",
		Items:   []events.OrderItem{{ProductID: "P1", Quantity: 2, UnitPrice: decimal.RequireFromString("1.25")}},
	}, time.Now())
	require.NoError(t, store.Create(context.Background(), o))
	r := newTestRouter()
	RegisterOrders(r, store)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/orders/order-1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "CREATED", body.Status)
	assert.Equal(t, "2.5", body.TotalAmount)
	assert.Len(t, body.Items, 1)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/orders/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductsAndUsers(t *testing.T) {
	ctx := context.Background()
	products := sagatest.NewCatalogStore()
	require.NoError(t, products.Upsert(ctx, &catalog.Product{ID: "P1", Name: "Lamp", Price: decimal.NewFromInt(12), Stock: 4}))
	users := sagatest.NewUserStore()
	require.NoError(t, users.Upsert(ctx, &user.User{ID: "user-1", Name: "Ada", Email: "ada@example.com"}))
	r := newTestRouter()
	RegisterProducts(r, products)
	RegisterUsers(r, users)

	tests := []struct {
		path string
		code int
		want string
	}{
		{path: "/products/P1", code: http.StatusOK, want: `"price":"12"`},
		{path: "/products/P2", code: http.StatusNotFound, want: "product not found"},
		{path: "/users/user-1", code: http.StatusOK, want: `"name":"Ada"`},
		{path: "/users/user-2", code: http.StatusNotFound, want: "user not found"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := serve(r, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}
