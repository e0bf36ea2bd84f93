// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

// Package module defines the module contract, descriptors, manifests, and the
// per-module host worker.
package module

import (
	"context"

	"github.com/fieldgate/fieldgate/internal/bus"
)

// HostAPIVersion is the version of the module contract this host implements.
// Module manifests may declare a semver constraint against it.
const HostAPIVersion = "1.0.0"

// Publisher is the bus capability handed to modules. Satisfied by *bus.Bus.
type Publisher interface {
	Publish(m *bus.Message) error
}

// Module is the control interface every loaded module exposes. The module
// value itself carries the private state the C-ABI original threaded through
// as an opaque pointer; nothing outside the module host touches it beyond
// these entry points.
//
// Create is called exactly once before any other method, with the bus handle
// and the module's raw configuration. The configuration is not retained by the
// core after Create returns. Receive is never invoked concurrently for the
// same module. Destroy is called exactly once, after the host worker stopped.
type Module interface {
	Create(ctx context.Context, pub Publisher, config []byte) error
	Receive(ctx context.Context, m *bus.Message) error
	Destroy(ctx context.Context) error
}

// Starter is optionally implemented by modules that need a background pump
// before delivery begins. Start runs on its own goroutine after the module's
// bus subscription is established, so a blocking Start cannot stall gateway
// creation.
type Starter interface {
	Start(ctx context.Context) error
}
