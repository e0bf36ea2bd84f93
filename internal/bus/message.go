// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

// Package bus implements the in-process publish/subscribe message bus.
package bus

import (
	"maps"

	"github.com/oklog/ulid/v2"
)

// Message is an immutable payload with string properties. The publisher
// constructs it; the bus and every recipient share the same value read-only.
// The C-style reference count of the original gateway design is replaced by
// garbage-collected sharing: nothing mutates a message after publish, so a
// plain shared pointer is safe.
type Message struct {
	id      ulid.ULID
	payload []byte
	props   map[string]string
}

// NewMessage builds a message from a payload and properties. Both inputs are
// copied so later caller-side mutation cannot leak into delivered messages.
func NewMessage(payload []byte, props map[string]string) *Message {
	m := &Message{
		id:      ulid.Make(),
		payload: make([]byte, len(payload)),
	}
	copy(m.payload, payload)
	if len(props) > 0 {
		m.props = maps.Clone(props)
	}
	return m
}

// ID returns the message's unique identifier.
func (m *Message) ID() ulid.ULID { return m.id }

// Payload returns the message body. The returned slice is shared with every
// other holder of the message and must not be modified.
func (m *Message) Payload() []byte { return m.payload }

// Property looks up a single property value.
func (m *Message) Property(key string) (string, bool) {
	v, ok := m.props[key]
	return v, ok
}

// Properties returns a copy of the property map.
func (m *Message) Properties() map[string]string {
	if len(m.props) == 0 {
		return nil
	}
	return maps.Clone(m.props)
}
