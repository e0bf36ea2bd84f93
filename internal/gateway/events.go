// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package gateway

// Event is a gateway lifecycle notification.
type Event int

const (
	// EventCreated fires once, after every configured module has been
	// created, subscribed, and started.
	EventCreated Event = iota
	// EventDestroyed fires at the start of Destroy, before any module is
	// torn down.
	EventDestroyed
)

// String returns the event name for logging.
func (e Event) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Callback observes a gateway lifecycle event. Callbacks run synchronously on
// the goroutine that triggered the event, in registration order; a slow
// callback delays the gateway operation that fired it.
type Callback func(g *Gateway, e Event)

// notifier fans lifecycle events out to registered callbacks. Registration is
// append-only; there is no removal.
type notifier struct {
	callbacks map[Event][]Callback
}

func newNotifier() *notifier {
	return &notifier{callbacks: make(map[Event][]Callback)}
}

func (n *notifier) register(e Event, cb Callback) {
	n.callbacks[e] = append(n.callbacks[e], cb)
}

func (n *notifier) notify(g *Gateway, e Event) {
	for _, cb := range n.callbacks[e] {
		cb(g, e)
	}
}
