package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusRequested, StatusCreated, true},
		{StatusCreated, StatusInventoryReserved, true},
		{StatusCreated, StatusInventoryRejected, true},
		{StatusInventoryReserved, StatusPaymentCompleted, true},
		{StatusInventoryReserved, StatusPaymentFailed, true},
		{StatusCreated, StatusPaymentCompleted, false},
		{StatusInventoryReserved, StatusCreated, false},
		{StatusInventoryRejected, StatusInventoryReserved, false},
		{StatusPaymentFailed, StatusPaymentCompleted, false},
		{StatusPaymentCompleted, StatusPaymentCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusInventoryRejected.IsTerminal())
	assert.True(t, StatusPaymentCompleted.IsTerminal())
	assert.True(t, StatusPaymentFailed.IsTerminal())
	assert.False(t, StatusCreated.IsTerminal())
	assert.False(t, StatusInventoryReserved.IsTerminal())
	assert.False(t, OrderStatus("SHIPPED").IsTerminal())
}

func TestOrderStatus_Precedes(t *testing.T) {
	assert.True(t, StatusCreated.Precedes(StatusPaymentFailed))
	assert.True(t, StatusRequested.Precedes(StatusInventoryRejected))
	assert.False(t, StatusInventoryRejected.Precedes(StatusPaymentCompleted))
	assert.False(t, StatusPaymentCompleted.Precedes(StatusInventoryReserved))
	assert.False(t, StatusCreated.Precedes(StatusCreated))
	assert.False(t, OrderStatus("").Precedes(StatusCreated))
}
