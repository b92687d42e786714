package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"ordersaga/internal/events"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, o *Order, out ...events.Event) error {
	args := m.Called(ctx, o, out)
	return args.Error(0)
}

func (m *MockRepository) Update(ctx context.Context, o *Order, from events.OrderStatus, out ...events.Event) error {
	args := m.Called(ctx, o, from, out)
	return args.Error(0)
}

func (m *MockRepository) Get(ctx context.Context, orderID string) (*Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(*Order)
	return o, args.Error(1)
}

func newTestCoordinator(t *testing.T, repo Repository) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(repo, zap.NewNop(), noop.NewTracerProvider().Tracer("test"), metricnoop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return c
}

func orderIn(status events.OrderStatus) *Order {
	o := NewOrder(events.OrderRequested{
		OrderID: "order-1",
		UserID:  "user-1",
		Items:   []events.OrderItem{{ProductID: "P1", Quantity: 3, UnitPrice: decimal.NewFromInt(5)}},
	}, time.Now())
	o.Status = status
	return o
}

func TestCoordinator_OnOrderRequested_CreatesAndEmitsOrderCreated(t *testing.T) {
	// Arrange
	repo := new(MockRepository)
	var emitted []events.Event
	repo.On("Create", mock.Anything, mock.AnythingOfType("*order.Order"), mock.Anything).
		Run(func(args mock.Arguments) { emitted = args.Get(2).([]events.Event) }).
		Return(nil)
	c := newTestCoordinator(t, repo)

	// Act
	err := c.HandleEvent(context.Background(), events.OrderRequested{
		OrderID: "order-1",
		UserID:  "user-1",
		Items:   []events.OrderItem{{ProductID: "P1", Quantity: 3, UnitPrice: decimal.NewFromInt(5)}},
	})

	// Assert
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	created, ok := emitted[0].(events.OrderCreated)
	require.True(t, ok)
	assert.Equal(t, events.StatusCreated, created.Status)
	assert.True(t, decimal.NewFromInt(15).Equal(created.TotalAmount))
	repo.AssertExpectations(t)
}

func TestCoordinator_OnOrderRequested_DuplicateIsDiscarded(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(ErrOrderExists)
	c := newTestCoordinator(t, repo)

	err := c.OnOrderRequested(context.Background(), events.OrderRequested{OrderID: "order-1"})

	assert.NoError(t, err)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_OnOrderRequested_DiscardsCommandWithoutID(t *testing.T) {
	// Arrange
	repo := new(MockRepository)
	c := newTestCoordinator(t, repo)
	cmd := events.OrderRequested{
		UserID: "user-1",
		Items:  []events.OrderItem{{ProductID: "P1", Quantity: 1, UnitPrice: decimal.NewFromInt(5)}},
	}

	// Act
	for i := 0; i < 3; i++ {
		require.NoError(t, c.OnOrderRequested(context.Background(), cmd))
	}

	// Assert
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_OnOrderRequested_StoreErrorIsReturned(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection refused"))
	c := newTestCoordinator(t, repo)

	err := c.OnOrderRequested(context.Background(), events.OrderRequested{OrderID: "order-1"})

	assert.ErrorContains(t, err, "connection refused")
}

func TestCoordinator_OnInventoryReserved_RequestsPayment(t *testing.T) {
	// Arrange
	repo := new(MockRepository)
	repo.On("Get", mock.Anything, "order-1").Return(orderIn(events.StatusCreated), nil)
	var (
		stored  *Order
		emitted []events.Event
	)
	repo.On("Update", mock.Anything, mock.Anything, events.StatusCreated, mock.Anything).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*Order)
			emitted = args.Get(3).([]events.Event)
		}).
		Return(nil)
	c := newTestCoordinator(t, repo)

	// Act
	err := c.HandleEvent(context.Background(), events.InventoryReserved{OrderID: "order-1"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, events.StatusInventoryReserved, stored.Status)
	require.Len(t, emitted, 2)
	assert.Equal(t, events.OrderStatusChanged{OrderID: "order-1", Status: events.StatusInventoryReserved}, emitted[0])
	payment, ok := emitted[1].(events.PaymentRequested)
	require.True(t, ok)
	assert.Equal(t, "user-1", payment.UserID)
	assert.True(t, decimal.NewFromInt(15).Equal(payment.Amount))
}

func TestCoordinator_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		from       events.OrderStatus
		event      events.Event
		wantStatus events.OrderStatus
		wantReason string
	}{
		{
			name:       "inventory rejected",
			from:       events.StatusCreated,
			event:      events.InventoryRejected{OrderID: "order-1", Reason: "Insufficient stock for product P1"},
			wantStatus: events.StatusInventoryRejected,
			wantReason: "Insufficient stock for product P1",
		},
		{
			name:       "payment completed",
			from:       events.StatusInventoryReserved,
			event:      events.PaymentCompleted{OrderID: "order-1", PaymentID: "pay-1", Status: "APPROVED"},
			wantStatus: events.StatusPaymentCompleted,
			wantReason: "APPROVED",
		},
		{
			name:       "payment failed",
			from:       events.StatusInventoryReserved,
			event:      events.PaymentFailed{OrderID: "order-1", Reason: "Invalid payment amount"},
			wantStatus: events.StatusPaymentFailed,
			wantReason: "Invalid payment amount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			repo.On("Get", mock.Anything, "order-1").Return(orderIn(tt.from), nil)
			var emitted []events.Event
			repo.On("Update", mock.Anything, mock.Anything, tt.from, mock.Anything).
				Run(func(args mock.Arguments) { emitted = args.Get(3).([]events.Event) }).
				Return(nil)
			c := newTestCoordinator(t, repo)

			err := c.HandleEvent(context.Background(), tt.event)

			require.NoError(t, err)
			require.Len(t, emitted, 1)
			assert.Equal(t, events.OrderStatusChanged{OrderID: "order-1", Status: tt.wantStatus, Reason: tt.wantReason}, emitted[0])
		})
	}
}

func TestCoordinator_UnknownOrderIsSkipped(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Get", mock.Anything, "ghost").Return(nil, ErrOrderNotFound)
	c := newTestCoordinator(t, repo)

	err := c.HandleEvent(context.Background(), events.PaymentFailed{OrderID: "ghost", Reason: "Invalid payment amount"})

	assert.NoError(t, err)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_StaleOutcomeLeavesOrderUntouched(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Get", mock.Anything, "order-1").Return(orderIn(events.StatusPaymentCompleted), nil)
	c := newTestCoordinator(t, repo)

	err := c.HandleEvent(context.Background(), events.InventoryRejected{OrderID: "order-1", Reason: "late"})

	assert.NoError(t, err)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_RepeatedOutcomeIsIgnored(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Get", mock.Anything, "order-1").Return(orderIn(events.StatusInventoryReserved), nil)
	c := newTestCoordinator(t, repo)

	err := c.HandleEvent(context.Background(), events.InventoryReserved{OrderID: "order-1"})

	assert.NoError(t, err)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_ConcurrentChangeIsDiscarded(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Get", mock.Anything, "order-1").Return(orderIn(events.StatusCreated), nil)
	repo.On("Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(ErrInvalidTransition)
	c := newTestCoordinator(t, repo)

	err := c.HandleEvent(context.Background(), events.InventoryReserved{OrderID: "order-1"})

	assert.NoError(t, err)
}

func TestCoordinator_LoadErrorIsReturnedForRetry(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Get", mock.Anything, "order-1").Return(nil, errors.New("timeout"))
	c := newTestCoordinator(t, repo)

	err := c.HandleEvent(context.Background(), events.InventoryReserved{OrderID: "order-1"})

	assert.ErrorContains(t, err, "timeout")
}
