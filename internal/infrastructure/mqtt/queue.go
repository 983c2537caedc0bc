package mqtt

import "sync"

// QueuedMessage is a publish captured while the broker was unreachable.
type QueuedMessage struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// offlineQueue is a bounded FIFO of messages awaiting reconnection.
//
// When full, the oldest message is discarded to admit the new one: for a
// metrics feed the most recent sample is always the most valuable. A counter
// records how many were lost.
type offlineQueue struct {
	mu      sync.Mutex
	items   []QueuedMessage
	limit   int
	dropped uint64
}

func newOfflineQueue(limit int) *offlineQueue {
	if limit < 1 {
		limit = 1
	}
	return &offlineQueue{limit: limit}
}

// enqueue appends a message, evicting the oldest entry if the queue is full.
func (q *offlineQueue) enqueue(m QueuedMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.limit {
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, m)
}

// drain removes and returns all queued messages in arrival order.
func (q *offlineQueue) drain() []QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

func (q *offlineQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *offlineQueue) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
