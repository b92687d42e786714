package projection

import (
	"context"
	"os"
	"testing"
	"time"

	"ordersaga/internal/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func newTestMongoStore(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	db := client.Database("projection_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	store := NewMongoStore(db)
	require.NoError(t, store.EnsureIndexes(ctx))
	return store
}

func TestMongoStore_OrderViewRoundTrip(t *testing.T) {
	// Arrange
	store := newTestMongoStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	view := OrderView{
		ID:          "order-1",
		UserID:      "user-1",
		Items:       []ItemView{{ProductID: "P1", Quantity: 1, UnitPrice: "3.5"}},
		TotalAmount: "3.5",
		Status:      events.StatusCreated,
		UpdatedAt:   now,
	}

	// Act
	require.NoError(t, store.SaveOrder(ctx, view))
	moved, err := store.SetOrderStatus(ctx, "order-1", events.StatusCreated, events.StatusInventoryReserved, "", now)
	require.NoError(t, err)
	stale, err := store.SetOrderStatus(ctx, "order-1", events.StatusCreated, events.StatusInventoryRejected, "late", now)
	require.NoError(t, err)
	require.NoError(t, store.SaveOrder(ctx, view))

	// Assert
	assert.True(t, moved)
	assert.False(t, stale)
	got, err := store.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, events.StatusInventoryReserved, got.Status)
	assert.Equal(t, view.Items, got.Items)

	byUser, err := store.OrdersByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, byUser, 1)
}

func TestMongoStore_ProductUpsertAndMissing(t *testing.T) {
	store := newTestMongoStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertProduct(ctx, ProductView{ID: "P1", Name: "Mouse", Price: "9.99", Stock: 3}))
	require.NoError(t, store.UpsertProduct(ctx, ProductView{ID: "P1", Name: "Mouse", Price: "8.99", Stock: 5}))

	got, err := store.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "8.99", got.Price)
	assert.Equal(t, 5, got.Stock)

	_, err = store.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, ErrViewNotFound)
	_, err = store.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, ErrViewNotFound)
}

func TestMongoStore_StubThenSaveOrder(t *testing.T) {
	// Arrange
	store := newTestMongoStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	// Act
	inserted, err := store.InsertOrderStub(ctx, statusStub("order-1", events.StatusPaymentFailed, "Invalid payment amount", now))
	require.NoError(t, err)
	again, err := store.InsertOrderStub(ctx, statusStub("order-1", events.StatusInventoryReserved, "", now))
	require.NoError(t, err)
	require.NoError(t, store.SaveOrder(ctx, OrderView{
		ID:          "order-1",
		UserID:      "user-1",
		Items:       []ItemView{{ProductID: "P1", Quantity: 1, UnitPrice: "0"}},
		TotalAmount: "0",
		Status:      events.StatusCreated,
		UpdatedAt:   now,
	}))

	// Assert
	assert.True(t, inserted)
	assert.False(t, again)
	got, err := store.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, events.StatusPaymentFailed, got.Status)
	assert.Equal(t, "Invalid payment amount", got.Reason)
	assert.Equal(t, "user-1", got.UserID)
}

func TestMongoStore_UserUpsert(t *testing.T) {
	store := newTestMongoStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertUser(ctx, UserView{ID: "user-1", Name: "Ada", Email: "ada@example.com"}))

	got, err := store.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)
	_, err = store.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrViewNotFound)
}
