// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

// Package inproc hosts modules compiled into the gateway binary itself.
// Factories are registered by name; the descriptor's Path selects one.
package inproc

import (
	"context"
	"io"
	"sync"

	"github.com/samber/oops"

	"github.com/fieldgate/fieldgate/internal/module"
)

// Factory builds a fresh module instance. Called once per AddModule so that
// the same registration can back multiple gateway entries.
type Factory func() module.Module

// Compile-time interface check.
var _ module.Loader = (*Registry)(nil)

// Registry is a loader over a set of named module factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given name. Registering the same name
// twice is an error.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return oops.In("inproc").Errorf("factory name cannot be empty")
	}
	if factory == nil {
		return oops.In("inproc").With("name", name).Errorf("factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return oops.In("inproc").With("name", name).Errorf("factory already registered")
	}
	r.factories[name] = factory
	return nil
}

// Names returns the registered factory names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// Resolve looks up the factory named by the descriptor's Path and builds a
// new instance.
func (r *Registry) Resolve(_ context.Context, desc module.Descriptor) (module.Module, io.Closer, error) {
	r.mu.RLock()
	factory, ok := r.factories[desc.Path]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, oops.In("inproc").With("name", desc.Path).Wrapf(module.ErrNotFound, "no registered factory")
	}

	mod := factory()
	if mod == nil {
		return nil, nil, oops.In("inproc").With("name", desc.Path).Wrapf(module.ErrSymbolMissing, "factory returned nil module")
	}
	return mod, module.NopCloser(), nil
}
