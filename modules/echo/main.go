// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

// Package main implements an echo module for FieldGate. Every received
// message is published back onto the bus with an "echoed" property, so a
// properties file can route the copies elsewhere.
//
// Build:
//
//	go build -o echo ./modules/echo
//
// Then reference the binary from the gateway properties:
//
//	modules:
//	  - name: echo
//	    runtime: binary
//	    path: ./modules/echo/echo
//	    filter: 'echoed != "true"'
package main

import (
	"encoding/json"
	"strconv"

	"github.com/fieldgate/fieldgate/pkg/modsdk"
)

// echoConfig is the module's JSON configuration.
type echoConfig struct {
	// MaxEchoes stops echoing after this many messages. Zero means no limit.
	MaxEchoes int `json:"max_echoes"`
}

type echoModule struct {
	cfg    echoConfig
	pub    modsdk.Publisher
	echoed int
}

func (m *echoModule) Create(config []byte, pub modsdk.Publisher) error {
	if len(config) > 0 {
		if err := json.Unmarshal(config, &m.cfg); err != nil {
			return err
		}
	}
	m.pub = pub
	return nil
}

func (m *echoModule) Receive(msg modsdk.Message) error {
	// The subscription filter should exclude our own copies, but guard
	// against a properties file that forgot: never echo an echo.
	if msg.Properties["echoed"] == "true" {
		return nil
	}
	if m.cfg.MaxEchoes > 0 && m.echoed >= m.cfg.MaxEchoes {
		return nil
	}
	m.echoed++

	props := map[string]string{
		"echoed":      "true",
		"echo_of":     msg.ID,
		"echo_number": strconv.Itoa(m.echoed),
	}
	return m.pub.Publish(msg.Payload, props)
}

func (m *echoModule) Destroy() error {
	m.pub = nil
	return nil
}

func main() {
	modsdk.Serve(&modsdk.ServeConfig{Handler: &echoModule{}})
}
