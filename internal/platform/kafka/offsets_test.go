package kafka

import (
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgAt(topic string, partition int, offset int64) kafkago.Message {
	return kafkago.Message{Topic: topic, Partition: partition, Offset: offset}
}

func TestOffsetTracker_CommitsContiguousPrefixOnly(t *testing.T) {
	tracker := newOffsetTracker()
	for offset := int64(10); offset < 13; offset++ {
		tracker.Track(msgAt("order.created", 0, offset))
	}

	_, ok := tracker.Done(msgAt("order.created", 0, 12))
	assert.False(t, ok, "offset 12 finished before 10 and 11")

	_, ok = tracker.Done(msgAt("order.created", 0, 11))
	assert.False(t, ok)

	next, ok := tracker.Done(msgAt("order.created", 0, 10))
	require.True(t, ok)
	assert.Equal(t, int64(12), next.Offset)
}

func TestOffsetTracker_PartitionsAreIndependent(t *testing.T) {
	tracker := newOffsetTracker()
	tracker.Track(msgAt("payment.requested", 0, 5))
	tracker.Track(msgAt("payment.requested", 1, 7))
	tracker.Track(msgAt("payment.completed", 0, 5))

	next, ok := tracker.Done(msgAt("payment.requested", 1, 7))
	require.True(t, ok)
	assert.Equal(t, 1, next.Partition)

	next, ok = tracker.Done(msgAt("payment.completed", 0, 5))
	require.True(t, ok)
	assert.Equal(t, "payment.completed", next.Topic)
}

func TestOffsetTracker_UntrackedMessage(t *testing.T) {
	tracker := newOffsetTracker()

	_, ok := tracker.Done(msgAt("order.created", 0, 1))

	assert.False(t, ok)
}

func TestOffsetTracker_RedeliveryAfterRebalanceKeepsCommitting(t *testing.T) {
	// Arrange
	tracker := newOffsetTracker()
	require.True(t, tracker.Track(msgAt("order.created", 0, 4)))
	require.True(t, tracker.Track(msgAt("order.created", 0, 5)))

	// Act
	tracked := tracker.Track(msgAt("order.created", 0, 5))
	_, firstOK := tracker.Done(msgAt("order.created", 0, 5))
	_, secondOK := tracker.Done(msgAt("order.created", 0, 5))
	next, ok := tracker.Done(msgAt("order.created", 0, 4))

	// Assert
	assert.False(t, tracked)
	assert.False(t, firstOK)
	assert.False(t, secondOK)
	require.True(t, ok)
	assert.Equal(t, int64(5), next.Offset)

	require.True(t, tracker.Track(msgAt("order.created", 0, 6)))
	next, ok = tracker.Done(msgAt("order.created", 0, 6))
	require.True(t, ok)
	assert.Equal(t, int64(6), next.Offset)
}

func TestOffsetTracker_RedeliveryOfCommittedOffsetIsIgnored(t *testing.T) {
	// Arrange
	tracker := newOffsetTracker()
	tracker.Track(msgAt("order.created", 0, 3))
	_, ok := tracker.Done(msgAt("order.created", 0, 3))
	require.True(t, ok)

	// Act
	tracked := tracker.Track(msgAt("order.created", 0, 3))
	_, ok = tracker.Done(msgAt("order.created", 0, 3))

	// Assert
	assert.False(t, tracked)
	assert.False(t, ok, "an offset already committed is never committed again")
}
