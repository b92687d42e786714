package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownTopic is returned by Decode for topics outside the saga.
var ErrUnknownTopic = errors.New("unknown topic")

// Encode serializes an event payload.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Topic(), err)
	}
	return data, nil
}

// Decode deserializes a payload into the concrete event type of topic.
func Decode(topic string, data []byte) (Event, error) {
	var (
		evt Event
		err error
	)
	switch topic {
	case TopicOrderRequested:
		evt, err = decodeAs[OrderRequested](data)
	case TopicOrderCreated:
		evt, err = decodeAs[OrderCreated](data)
	case TopicOrderStatusChanged:
		evt, err = decodeAs[OrderStatusChanged](data)
	case TopicInventoryReserved:
		evt, err = decodeAs[InventoryReserved](data)
	case TopicInventoryRejected:
		evt, err = decodeAs[InventoryRejected](data)
	case TopicPaymentRequested:
		evt, err = decodeAs[PaymentRequested](data)
	case TopicPaymentCompleted:
		evt, err = decodeAs[PaymentCompleted](data)
	case TopicPaymentFailed:
		evt, err = decodeAs[PaymentFailed](data)
	case TopicProductUpsertCmd:
		evt, err = decodeAs[ProductUpsertCommand](data)
	case TopicProductUpserted:
		evt, err = decodeAs[ProductUpserted](data)
	case TopicUserUpsertCmd:
		evt, err = decodeAs[UserUpsertCommand](data)
	case TopicUserUpserted:
		evt, err = decodeAs[UserUpserted](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", topic, err)
	}
	return evt, nil
}

func decodeAs[T Event](data []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
