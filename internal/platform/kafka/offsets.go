package kafka

import (
	"slices"
	"sync"

	kafkago "github.com/segmentio/kafka-go"
)

type topicPartition struct {
	topic     string
	partition int
}

type partitionOffsets struct {
	pending []int64 // dispatched, ascending
	done    map[int64]kafkago.Message
	highest int64 // last offset tracked, -1 before the first
}

// offsetTracker lets workers finish out of order while commits only ever
// cover a contiguous prefix of each partition.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[topicPartition]*partitionOffsets
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[topicPartition]*partitionOffsets)}
}

// Track records msg as dispatched. Messages of one partition must be tracked
// in fetch order. An offset at or below one already tracked is a redelivery
// after a rebalance: the copy still gets handled, but the first copy owns the
// commit, so it reports false and is left out of the pending list.
func (t *offsetTracker) Track(msg kafkago.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	tp := topicPartition{msg.Topic, msg.Partition}
	p, ok := t.partitions[tp]
	if !ok {
		p = &partitionOffsets{done: make(map[int64]kafkago.Message), highest: -1}
		t.partitions[tp] = p
	}
	if msg.Offset <= p.highest {
		return false
	}
	p.pending = append(p.pending, msg.Offset)
	p.highest = msg.Offset
	return true
}

// Done marks msg handled and returns the highest message that may now be
// committed for its partition, if the contiguous prefix advanced.
func (t *offsetTracker) Done(msg kafkago.Message) (kafkago.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.partitions[topicPartition{msg.Topic, msg.Partition}]
	if !ok {
		return kafkago.Message{}, false
	}
	if _, pending := slices.BinarySearch(p.pending, msg.Offset); !pending {
		return kafkago.Message{}, false
	}
	p.done[msg.Offset] = msg

	var (
		last     kafkago.Message
		advanced bool
	)
	for len(p.pending) > 0 {
		head, ok := p.done[p.pending[0]]
		if !ok {
			break
		}
		delete(p.done, p.pending[0])
		p.pending = p.pending[1:]
		last, advanced = head, true
	}
	return last, advanced
}
