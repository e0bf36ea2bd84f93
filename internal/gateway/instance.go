// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package gateway

import (
	"io"

	"github.com/fieldgate/fieldgate/internal/bus"
	"github.com/fieldgate/fieldgate/internal/module"
)

// Entry pairs an already constructed module with its bus wiring. Used by
// NewFromModules when the caller builds module instances itself.
type Entry struct {
	Name       string
	Mod        module.Module
	Config     []byte
	Filter     string
	FaultLimit int
}

// record is the capability handle for one live module: the instance, its
// loader closer, its bus subscription, and the host worker driving it. The
// raw module value never leaves the gateway.
type record struct {
	desc    module.Descriptor
	mod     module.Module
	closer  io.Closer
	sub     *bus.Subscription
	host    *module.Host
	started bool
}

// compileFilter turns a descriptor filter expression into a bus filter. An
// empty expression matches everything.
func compileFilter(expr string) (bus.Filter, error) {
	if expr == "" {
		return nil, nil
	}
	return bus.ParseFilter(expr)
}
