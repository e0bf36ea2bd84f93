// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

// Package modsdk is the SDK for out-of-process gateway modules. A module is a
// standalone binary that implements Handler and calls Serve from main; the
// gateway starts it as a go-plugin subprocess and drives it over net/rpc.
package modsdk

import (
	hashiplug "github.com/hashicorp/go-plugin"
)

// Handshake is the go-plugin handshake configuration. Host and modules must
// use identical values; a mismatch is reported by the host as a missing
// control interface, not a crash.
var Handshake = hashiplug.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "FIELDGATE_MODULE",
	MagicCookieValue: "fieldgate-module-v1",
}

// Message is the wire form of a bus message crossing the process boundary.
type Message struct {
	ID         string
	Payload    []byte
	Properties map[string]string
}

// Publisher lets a module publish messages onto the gateway bus. It is valid
// from Create until Destroy returns. Published messages are also delivered
// back to this module if its own subscription matches them.
type Publisher interface {
	Publish(payload []byte, properties map[string]string) error
}

// Handler is the control interface a module binary implements.
//
// Create is called once with the module's raw configuration and the bus
// publisher. Receive is called serially, one message at a time. Destroy is
// called once during teardown. The RPC transport carries no context, so
// long-running work should watch for Destroy instead of a cancellation
// signal.
type Handler interface {
	Create(config []byte, pub Publisher) error
	Receive(msg Message) error
	Destroy() error
}

// StartHandler is optionally implemented by modules needing a background pump
// before delivery begins. The host invokes Start on its own goroutine after
// the module's subscription is established; Start may block for the module's
// lifetime.
type StartHandler interface {
	Start() error
}

// ServeConfig configures the module server.
type ServeConfig struct {
	// Handler is the module implementation. Required; Serve panics if nil.
	Handler Handler
}

// Serve starts the module server. Call it from main; it blocks and never
// returns under normal operation.
//
//	func main() {
//		modsdk.Serve(&modsdk.ServeConfig{Handler: &echoModule{}})
//	}
func Serve(config *ServeConfig) {
	if config == nil {
		panic("modsdk: config cannot be nil")
	}
	if config.Handler == nil {
		panic("modsdk: config.Handler cannot be nil")
	}
	hashiplug.Serve(&hashiplug.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]hashiplug.Plugin{
			"module": &ModulePlugin{Impl: config.Handler},
		},
	})
}
