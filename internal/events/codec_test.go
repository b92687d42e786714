package events

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_OrderRequested(t *testing.T) {
	// Arrange
	payload := []byte(`{"orderId":"o-1","userId":"u-1","items":[{"productId":"P1","quantity":3,"unitPrice":"9.99"}],"totalAmount":"29.97"}`)

	// Act
	evt, err := Decode(TopicOrderRequested, payload)

	// Assert
	require.NoError(t, err)
	cmd, ok := evt.(OrderRequested)
	require.True(t, ok)
	assert.Equal(t, "o-1", cmd.Key())
	assert.Equal(t, TopicOrderRequested, cmd.Topic())
	require.Len(t, cmd.Items, 1)
	assert.Equal(t, 3, cmd.Items[0].Quantity)
	assert.True(t, cmd.TotalAmount.Equal(decimal.RequireFromString("29.97")))
}

func TestDecode_UnknownTopic(t *testing.T) {
	_, err := Decode("shipping.dispatched", []byte(`{}`))

	assert.ErrorIs(t, err, ErrUnknownTopic)
}

func TestDecode_CatalogAndUserCommands(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		data  string
		key   string
	}{
		{"product upsert", TopicProductUpsertCmd, `{"productId":"P1","name":"Mug","price":"4.20","stock":7}`, "P1"},
		{"user upsert", TopicUserUpsertCmd, `{"userId":"u-1","name":"Ada","email":"ada@example.com"}`, "u-1"},
		{"user upserted", TopicUserUpserted, `{"userId":"u-1","name":"Ada","email":"ada@example.com"}`, "u-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := Decode(tt.topic, []byte(tt.data))

			require.NoError(t, err)
			assert.Equal(t, tt.topic, evt.Topic())
			assert.Equal(t, tt.key, evt.Key())
		})
	}
}

func TestDecode_MalformedPayload(t *testing.T) {
	_, err := Decode(TopicPaymentFailed, []byte(`{"orderId":`))

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownTopic)
}

func TestEncode_KeepsTopicAndKey(t *testing.T) {
	evt := PaymentRequested{OrderID: "o-9", UserID: "u-2", Amount: decimal.NewFromInt(12)}

	data, err := Encode(evt)
	require.NoError(t, err)

	decoded, err := Decode(evt.Topic(), data)
	require.NoError(t, err)
	assert.Equal(t, "o-9", decoded.Key())
	assert.True(t, decoded.(PaymentRequested).Amount.Equal(evt.Amount))
}

func TestTotal(t *testing.T) {
	items := []OrderItem{
		{ProductID: "P1", Quantity: 2, UnitPrice: decimal.RequireFromString("1.50")},
		{ProductID: "P2", Quantity: 1, UnitPrice: decimal.RequireFromString("10")},
	}

	assert.True(t, Total(items).Equal(decimal.RequireFromString("13")))
	assert.True(t, Total(nil).IsZero())
}
