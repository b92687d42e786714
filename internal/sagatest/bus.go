// Package sagatest runs saga components against in-memory infrastructure.
package sagatest

import (
	"context"
	"fmt"
	"sync"

	"ordersaga/internal/events"
	"ordersaga/internal/platform/kafka"
	"ordersaga/internal/tracing"

	kafkago "github.com/segmentio/kafka-go"
)

// Message is one entry of the in-memory log.
type Message struct {
	Topic         string
	Key           string
	Payload       []byte
	CorrelationID string
}

type subscription struct {
	group   string
	handler kafka.Handler
}

// Bus is a single-partition, FIFO stand-in for Kafka. Every consumer group
// subscribed to a topic sees every message on it, in publish order.
type Bus struct {
	mu       sync.Mutex
	queue    []Message
	log      []Message
	subs     map[string][]subscription
	failures map[string]error
}

func NewBus() *Bus {
	return &Bus{
		subs:     make(map[string][]subscription),
		failures: make(map[string]error),
	}
}

func (b *Bus) Subscribe(group string, handler kafka.Handler, topics ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range topics {
		b.subs[topic] = append(b.subs[topic], subscription{group: group, handler: handler})
	}
}

// FailNextPublish makes the next publish to topic return err.
func (b *Bus) FailNextPublish(topic string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[topic] = err
}

func (b *Bus) Publish(ctx context.Context, evt events.Event) error {
	payload, err := events.Encode(evt)
	if err != nil {
		return err
	}
	return b.PublishPayload(ctx, evt.Topic(), evt.Key(), payload)
}

func (b *Bus) PublishPayload(ctx context.Context, topic, key string, payload []byte, _ ...kafkago.Header) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.failures[topic]; ok {
		delete(b.failures, topic)
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	msg := Message{
		Topic:         topic,
		Key:           key,
		Payload:       append([]byte(nil), payload...),
		CorrelationID: tracing.CorrelationID(ctx),
	}
	b.queue = append(b.queue, msg)
	b.log = append(b.log, msg)
	return nil
}

// Drain delivers queued messages, including the ones handlers publish while
// draining, until the queue is empty. It returns how many were delivered.
func (b *Bus) Drain(ctx context.Context) (int, error) {
	delivered := 0
	for {
		msg, subs, ok := b.next()
		if !ok {
			return delivered, nil
		}
		delivered++

		evt, err := events.Decode(msg.Topic, msg.Payload)
		if err != nil {
			return delivered, err
		}
		msgCtx := ctx
		if msg.CorrelationID != "" {
			msgCtx = tracing.WithCorrelationID(ctx, msg.CorrelationID)
		} else {
			msgCtx, _ = tracing.EnsureCorrelationID(ctx)
		}
		for _, sub := range subs {
			if err := sub.handler.HandleEvent(msgCtx, evt); err != nil {
				return delivered, fmt.Errorf("%s on %s: %w", sub.group, msg.Topic, err)
			}
		}
	}
}

func (b *Bus) next() (Message, []subscription, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return Message{}, nil, false
	}
	msg := b.queue[0]
	b.queue = b.queue[1:]
	return msg, append([]subscription(nil), b.subs[msg.Topic]...), true
}

// Messages returns every message published so far.
func (b *Bus) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.log...)
}

// Published decodes the messages published on topic.
func (b *Bus) Published(topic string) []events.Event {
	var out []events.Event
	for _, msg := range b.Messages() {
		if msg.Topic != topic {
			continue
		}
		evt, err := events.Decode(msg.Topic, msg.Payload)
		if err == nil {
			out = append(out, evt)
		}
	}
	return out
}
