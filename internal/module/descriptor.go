// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package module

import "github.com/samber/oops"

// Kind identifies the module runtime.
type Kind string

// Module runtimes supported by the gateway.
const (
	KindBinary    Kind = "binary"
	KindLua       Kind = "lua"
	KindInProcess Kind = "inproc"
)

// Descriptor identifies one loadable unit: a properties entry before it
// becomes a live instance. Config is owned by the caller; the core reads it
// during Create and does not retain it.
type Descriptor struct {
	// Name is the human-readable module name. The gateway requires it and
	// enforces uniqueness; loaders may resolve unnamed descriptors directly.
	Name string
	// Path locates the module: executable path for binary, script path for
	// lua, registered factory name for inproc.
	Path string
	// Runtime selects the loader.
	Runtime Kind
	// Filter is an optional subscription filter expression (see bus.ParseFilter).
	Filter string
	// FaultLimit stops delivery to the module after this many receive faults.
	// Zero means faults are logged and delivery continues indefinitely.
	FaultLimit int
	// Config is the raw module configuration, opaque to the core.
	Config []byte
}

// Validate checks the descriptor shape before any loading happens.
func (d Descriptor) Validate() error {
	if d.Path == "" {
		return oops.In("module").With("name", d.Name).Errorf("descriptor path cannot be empty")
	}
	switch d.Runtime {
	case KindBinary, KindLua, KindInProcess:
	case "":
		return oops.In("module").With("name", d.Name).Errorf("descriptor runtime is required")
	default:
		return oops.In("module").With("name", d.Name).With("runtime", string(d.Runtime)).Errorf("unknown module runtime")
	}
	if d.FaultLimit < 0 {
		return oops.In("module").With("name", d.Name).Errorf("fault limit cannot be negative")
	}
	return nil
}

// DisplayName returns the name if set, otherwise the path.
func (d Descriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Path
}
