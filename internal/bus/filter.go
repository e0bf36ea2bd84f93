// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package bus

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Filter restricts which published messages reach a subscriber.
// Implementations must be safe for concurrent use; Matches is called on the
// publisher's goroutine.
type Filter interface {
	Matches(m *Message) bool
}

// MatchAll returns a filter that accepts every message. A nil filter on
// Subscribe behaves the same way.
func MatchAll() Filter { return matchAll{} }

type matchAll struct{}

func (matchAll) Matches(*Message) bool { return true }

// PropertyFilter matches a single property against a glob pattern.
type PropertyFilter struct {
	key     string
	pattern glob.Glob
}

// NewPropertyFilter compiles a glob pattern for one property key.
// A literal value with no glob metacharacters matches exactly.
func NewPropertyFilter(key, pattern string) (*PropertyFilter, error) {
	if key == "" {
		return nil, oops.In("bus").With("pattern", pattern).Errorf("filter key cannot be empty")
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, oops.In("bus").With("key", key).With("pattern", pattern).Wrapf(err, "compiling filter pattern")
	}
	return &PropertyFilter{key: key, pattern: g}, nil
}

// Matches reports whether the message carries the key with a matching value.
func (f *PropertyFilter) Matches(m *Message) bool {
	v, ok := m.Property(f.key)
	return ok && f.pattern.Match(v)
}
