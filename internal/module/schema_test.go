// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package module_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldgate/fieldgate/internal/module"
)

func TestGenerateSchema(t *testing.T) {
	data, err := module.GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, module.SchemaID, schema["$id"])
	assert.Contains(t, schema, "properties")
}

func TestValidateSchema_Valid(t *testing.T) {
	module.ResetSchemaCache()
	data := []byte(`
name: modbus-adapter
version: 1.2.0
runtime: binary
binary:
  executable: modbus-adapter
`)
	assert.NoError(t, module.ValidateSchema(data))
}

func TestValidateSchema_Invalid(t *testing.T) {
	module.ResetSchemaCache()

	assert.Error(t, module.ValidateSchema(nil))
	assert.Error(t, module.ValidateSchema([]byte("name: [broken")))

	// Structurally wrong: name must be a string.
	assert.Error(t, module.ValidateSchema([]byte("name: 42\nversion: 1.0.0\nruntime: inproc")))
}
