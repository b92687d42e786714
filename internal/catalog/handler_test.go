package catalog

import (
	"context"
	"errors"
	"testing"

	"ordersaga/internal/events"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Upsert(ctx context.Context, p *Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockRepository) Get(ctx context.Context, productID string) (*Product, error) {
	args := m.Called(ctx, productID)
	p, _ := args.Get(0).(*Product)
	return p, args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, evt events.Event) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func newTestHandler(repo Repository, pub Publisher) *Handler {
	return NewHandler(repo, pub, zap.NewNop(), noop.NewTracerProvider().Tracer("test"))
}

func TestHandler_Upsert_StoresThenAnnounces(t *testing.T) {
	// Arrange
	repo := new(MockRepository)
	pub := new(MockPublisher)
	var order []string
	repo.On("Upsert", mock.Anything, mock.AnythingOfType("*catalog.Product")).
		Run(func(mock.Arguments) { order = append(order, "store") }).
		Return(nil)
	pub.On("Publish", mock.Anything, mock.AnythingOfType("events.ProductUpserted")).
		Run(func(mock.Arguments) { order = append(order, "publish") }).
		Return(nil)
	h := newTestHandler(repo, pub)

	// Act
	err := h.HandleEvent(context.Background(), events.ProductUpsertCommand{
		ProductID: "P1",
		Name:      "Mug",
		Price:     decimal.RequireFromString("4.20"),
		Stock:     7,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"store", "publish"}, order)
	announced := pub.Calls[0].Arguments.Get(1).(events.ProductUpserted)
	assert.Equal(t, "P1", announced.ProductID)
	assert.Equal(t, 7, announced.Stock)
	assert.True(t, decimal.RequireFromString("4.2").Equal(announced.Price))
}

func TestHandler_Upsert_InvalidCommandsAreDropped(t *testing.T) {
	tests := []struct {
		name string
		cmd  events.ProductUpsertCommand
	}{
		{"missing id", events.ProductUpsertCommand{Name: "Mug", Stock: 1}},
		{"negative stock", events.ProductUpsertCommand{ProductID: "P1", Stock: -1}},
		{"negative price", events.ProductUpsertCommand{ProductID: "P1", Price: decimal.NewFromInt(-2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			pub := new(MockPublisher)
			h := newTestHandler(repo, pub)

			err := h.Upsert(context.Background(), tt.cmd)

			require.NoError(t, err)
			repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
			pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		})
	}
}

func TestHandler_Upsert_StoreErrorSkipsAnnouncement(t *testing.T) {
	repo := new(MockRepository)
	pub := new(MockPublisher)
	repo.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
	h := newTestHandler(repo, pub)

	err := h.Upsert(context.Background(), events.ProductUpsertCommand{ProductID: "P1", Stock: 1})

	assert.ErrorContains(t, err, "connection refused")
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestHandler_Upsert_PublishErrorIsReturned(t *testing.T) {
	repo := new(MockRepository)
	pub := new(MockPublisher)
	repo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))
	h := newTestHandler(repo, pub)

	err := h.Upsert(context.Background(), events.ProductUpsertCommand{ProductID: "P1", Stock: 1})

	assert.ErrorContains(t, err, "broker unavailable")
}

func TestHandler_IgnoresOtherEvents(t *testing.T) {
	h := newTestHandler(new(MockRepository), new(MockPublisher))

	assert.NoError(t, h.HandleEvent(context.Background(), events.PaymentFailed{OrderID: "order-1"}))
}
