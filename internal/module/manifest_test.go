// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package module_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldgate/fieldgate/internal/module"
)

func TestParseManifest_Binary(t *testing.T) {
	data := []byte(`
name: modbus-adapter
version: 1.2.0
runtime: binary
binary:
  executable: modbus-adapter
`)
	m, err := module.ParseManifest(data)
	require.NoError(t, err)
	assert.Equal(t, "modbus-adapter", m.Name)
	assert.Equal(t, module.KindBinary, m.Runtime)
	assert.Equal(t, "modbus-adapter", m.Binary.Executable)
}

func TestParseManifest_Lua(t *testing.T) {
	data := []byte(`
name: unit-filter
version: 0.1.0
runtime: lua
lua:
  entry: main.lua
filter: topic == "telemetry"
`)
	m, err := module.ParseManifest(data)
	require.NoError(t, err)
	assert.Equal(t, module.KindLua, m.Runtime)
	assert.Equal(t, "main.lua", m.Lua.Entry)
	assert.Equal(t, `topic == "telemetry"`, m.Filter)
}

func TestParseManifest_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"bad yaml", "name: [unclosed"},
		{"missing name", "version: 1.0.0\nruntime: inproc"},
		{"bad name", "name: Bad_Name\nversion: 1.0.0\nruntime: inproc"},
		{"trailing hyphen", "name: bad-\nversion: 1.0.0\nruntime: inproc"},
		{"missing version", "name: ok\nruntime: inproc"},
		{"bad semver", "name: ok\nversion: not-a-version\nruntime: inproc"},
		{"unknown runtime", "name: ok\nversion: 1.0.0\nruntime: wasm"},
		{"binary without exec", "name: ok\nversion: 1.0.0\nruntime: binary\nbinary: {}"},
		{"lua without entry", "name: ok\nversion: 1.0.0\nruntime: lua\nlua: {}"},
		{"bad api constraint", "name: ok\nversion: 1.0.0\nruntime: inproc\napi: \"===2\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := module.ParseManifest([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestManifest_CheckHostCompat(t *testing.T) {
	m := &module.Manifest{Name: "ok", Version: "1.0.0", Runtime: module.KindInProcess, API: ">=1.0.0, <2.0.0"}
	assert.NoError(t, m.CheckHostCompat())

	m.API = ">=2.0.0"
	assert.Error(t, m.CheckHostCompat())

	m.API = ""
	assert.NoError(t, m.CheckHostCompat())
}

func TestDescriptor_Validate(t *testing.T) {
	ok := module.Descriptor{Name: "a", Path: "lib/a", Runtime: module.KindInProcess}
	assert.NoError(t, ok.Validate())

	assert.Error(t, module.Descriptor{Runtime: module.KindBinary}.Validate())
	assert.Error(t, module.Descriptor{Path: "x"}.Validate())
	assert.Error(t, module.Descriptor{Path: "x", Runtime: "jvm"}.Validate())
	assert.Error(t, module.Descriptor{Path: "x", Runtime: module.KindLua, FaultLimit: -1}.Validate())
}

func TestDescriptor_DisplayName(t *testing.T) {
	assert.Equal(t, "a", module.Descriptor{Name: "a", Path: "p"}.DisplayName())
	assert.Equal(t, "p", module.Descriptor{Path: "p"}.DisplayName())
}
