package user

import (
	"context"
	"errors"
	"testing"

	"ordersaga/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Upsert(ctx context.Context, u *User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockRepository) Get(ctx context.Context, userID string) (*User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*User)
	return u, args.Error(1)
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

func TestHandler_Upsert_StoresAndAnnounces(t *testing.T) {
	// Arrange
	repo := new(MockRepository)
	pub := new(MockPublisher)
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(u *User) bool { return u.Email == "ada@example.com" })).Return(nil)
	pub.On("Publish", mock.Anything, events.UserUpserted{UserID: "user-1", Name: "Ada", Email: "ada@example.com"}).Return(nil)
	h := newTestHandler(repo, pub)

	// Act
	err := h.HandleEvent(context.Background(), events.UserUpsertCommand{UserID: "user-1", Name: "Ada", Email: "ada@example.com"})

	// Assert
	require.NoError(t, err)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestHandler_Upsert_MissingIDIsDropped(t *testing.T) {
	repo := new(MockRepository)
	pub := new(MockPublisher)
	h := newTestHandler(repo, pub)

	err := h.Upsert(context.Background(), events.UserUpsertCommand{Name: "Ada"})

	require.NoError(t, err)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestHandler_Upsert_StoreErrorIsReturned(t *testing.T) {
	repo := new(MockRepository)
	pub := new(MockPublisher)
	repo.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
	h := newTestHandler(repo, pub)

	err := h.Upsert(context.Background(), events.UserUpsertCommand{UserID: "user-1"})

	assert.ErrorContains(t, err, "connection refused")
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
