// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package module

import (
	"context"
	"errors"
	"io"
)

// Sentinel errors for the load/init taxonomy. Loaders wrap these so callers
// can distinguish a missing artifact from a malformed one from a module whose
// own Create failed.
var (
	// ErrNotFound is returned when the module artifact does not exist at the
	// descriptor path.
	ErrNotFound = errors.New("module not found")
	// ErrSymbolMissing is returned when the artifact exists but does not
	// expose the required control interface (bad handshake, missing entry
	// points).
	ErrSymbolMissing = errors.New("module control interface missing")
	// ErrInitFailed is returned when the module's own Create reported failure.
	ErrInitFailed = errors.New("module initialization failed")
)

// Loader resolves a descriptor into an uninitialized module instance plus a
// closer that releases the underlying artifact (kills the plugin process,
// closes the script state). The caller invokes Create itself; if Create
// fails the caller must Close the returned closer and nothing else.
type Loader interface {
	Resolve(ctx context.Context, desc Descriptor) (Module, io.Closer, error)
}

// NopCloser returns a closer that does nothing, for loaders whose artifacts
// need no release.
func NopCloser() io.Closer { return nopCloser{} }

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
