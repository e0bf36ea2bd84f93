// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package bus

import "sync"

// queue is an unbounded FIFO of messages with single-consumer semantics.
// Publishers must never block on a slow subscriber and enqueued messages must
// survive until delivered or the queue is drained, so a fixed-capacity channel
// is not enough here.
type queue struct {
	mu     sync.Mutex
	items  []*Message
	notify chan struct{}
	closed bool
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

// push appends a message. Returns false if the queue is closed.
func (q *queue) push(m *Message) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, m)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// next blocks until a message is available or the queue is closed and fully
// drained. The second return is false only when no further messages will ever
// arrive.
func (q *queue) next() (*Message, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			m := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return m, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()
		<-q.notify
	}
}

// close stops accepting new messages. Already-enqueued messages remain
// readable via next until the queue is drained.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
