// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package bus

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/oops"
)

// Sentinel errors for programmatic error checking.
var (
	// ErrNotActive is returned when publishing or subscribing on a bus that
	// has been destroyed or is being destroyed.
	ErrNotActive = errors.New("bus is not active")
	// ErrNotSubscribed is returned when unsubscribing a handle the bus does
	// not hold.
	ErrNotSubscribed = errors.New("subscription is not registered")
	// ErrSubscribersActive is returned when destroying a bus that still has
	// live subscriptions. Subscribers must be unsubscribed first.
	ErrSubscribersActive = errors.New("bus still has active subscribers")
)

// Bus routes published messages to the delivery queue of every subscriber
// registered at publish time. One bus exists per gateway.
//
// Publish never blocks on subscriber consumption: each subscription owns an
// unbounded FIFO drained by its module host's worker. Two messages published
// from the same goroutine reach every common subscriber in publish order; no
// order is defined across publishing goroutines.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	active bool
}

// Subscription is the handle returned by Subscribe. The subscriber's worker
// pulls delivered messages via Next.
type Subscription struct {
	bus    *Bus
	owner  string
	filter Filter
	q      *queue
}

// New creates an active bus with an empty subscriber registry.
func New() *Bus {
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		active: true,
	}
}

// Subscribe registers a subscriber under an owner name with an optional
// filter. A nil filter delivers everything, including messages the owner
// itself publishes; suppressing self-delivery is the subscriber's business.
func (b *Bus) Subscribe(owner string, filter Filter) (*Subscription, error) {
	if filter == nil {
		filter = MatchAll()
	}
	s := &Subscription{
		bus:    b,
		owner:  owner,
		filter: filter,
		q:      newQueue(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.active {
		return nil, oops.In("bus").With("owner", owner).Code("BUS_NOT_ACTIVE").Wrap(ErrNotActive)
	}
	b.subs[s] = struct{}{}
	return s, nil
}

// Unsubscribe removes the subscription from future deliveries. Messages
// already enqueued stay in the queue and are still handed out by Next until
// drained; they are never dropped mid-delivery.
func (b *Bus) Unsubscribe(s *Subscription) error {
	b.mu.Lock()
	_, ok := b.subs[s]
	if ok {
		delete(b.subs, s)
	}
	b.mu.Unlock()

	if !ok {
		return oops.In("bus").With("owner", s.owner).Code("BUS_NOT_SUBSCRIBED").Wrap(ErrNotSubscribed)
	}
	s.q.close()
	return nil
}

// Publish enqueues the message for every subscriber registered at call time
// whose filter matches. The subscriber set is snapshotted under the read lock
// so concurrent subscribe/unsubscribe cannot tear the iteration; enqueueing
// happens outside the lock.
func (b *Bus) Publish(m *Message) error {
	b.mu.RLock()
	if !b.active {
		b.mu.RUnlock()
		return oops.In("bus").With("message_id", m.ID().String()).Code("BUS_NOT_ACTIVE").Wrap(ErrNotActive)
	}
	snapshot := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		snapshot = append(snapshot, s)
	}
	b.mu.RUnlock()

	messagesPublished.Inc()
	for _, s := range snapshot {
		if !s.filter.Matches(m) {
			continue
		}
		if s.q.push(m) {
			messagesDelivered.WithLabelValues(s.owner).Inc()
			queueDepth.WithLabelValues(s.owner).Set(float64(s.q.depth()))
		}
	}
	return nil
}

// Destroy refuses new publishes and releases the registry. Destroying a bus
// that still has subscribers is a caller error: teardown must unsubscribe
// every module first so no queued message is silently leaked.
func (b *Bus) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active {
		return oops.In("bus").Code("BUS_NOT_ACTIVE").Wrap(ErrNotActive)
	}
	if len(b.subs) > 0 {
		slog.Error("bus destroyed with active subscribers",
			"subscribers", len(b.subs))
		return oops.In("bus").With("subscribers", len(b.subs)).Code("BUS_SUBSCRIBERS_ACTIVE").Wrap(ErrSubscribersActive)
	}
	b.active = false
	b.subs = nil
	return nil
}

// Active reports whether the bus accepts publishes and subscriptions.
func (b *Bus) Active() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

// Next blocks until a message is delivered or, after Unsubscribe, until the
// queue is drained. The second return is false once no further messages will
// arrive.
func (s *Subscription) Next() (*Message, bool) {
	m, ok := s.q.next()
	if ok {
		queueDepth.WithLabelValues(s.owner).Set(float64(s.q.depth()))
	}
	return m, ok
}

// Pending returns the number of undelivered messages in the queue.
func (s *Subscription) Pending() int { return s.q.depth() }

// Owner returns the subscriber name given at Subscribe time.
func (s *Subscription) Owner() string { return s.owner }
