// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package bus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldgate/fieldgate/internal/bus"
)

func msgWith(props map[string]string) *bus.Message {
	return bus.NewMessage(nil, props)
}

func TestParseFilter_Equality(t *testing.T) {
	f, err := bus.ParseFilter(`topic == "telemetry"`)
	require.NoError(t, err)

	assert.True(t, f.Matches(msgWith(map[string]string{"topic": "telemetry"})))
	assert.False(t, f.Matches(msgWith(map[string]string{"topic": "control"})))
	assert.False(t, f.Matches(msgWith(nil)))
}

func TestParseFilter_Inequality(t *testing.T) {
	f, err := bus.ParseFilter(`unit != "F"`)
	require.NoError(t, err)

	assert.True(t, f.Matches(msgWith(map[string]string{"unit": "C"})))
	assert.False(t, f.Matches(msgWith(map[string]string{"unit": "F"})))
	// Absent property counts as unequal.
	assert.True(t, f.Matches(msgWith(nil)))
}

func TestParseFilter_Like(t *testing.T) {
	f, err := bus.ParseFilter(`device like "sensor-*"`)
	require.NoError(t, err)

	assert.True(t, f.Matches(msgWith(map[string]string{"device": "sensor-12"})))
	assert.False(t, f.Matches(msgWith(map[string]string{"device": "relay-1"})))
}

func TestParseFilter_Has(t *testing.T) {
	f, err := bus.ParseFilter(`has source`)
	require.NoError(t, err)

	assert.True(t, f.Matches(msgWith(map[string]string{"source": "modbus"})))
	assert.False(t, f.Matches(msgWith(map[string]string{"other": "x"})))
}

func TestParseFilter_BooleanCombinations(t *testing.T) {
	f, err := bus.ParseFilter(`topic == "telemetry" && unit != "F"`)
	require.NoError(t, err)

	assert.True(t, f.Matches(msgWith(map[string]string{"topic": "telemetry", "unit": "C"})))
	assert.False(t, f.Matches(msgWith(map[string]string{"topic": "telemetry", "unit": "F"})))

	f, err = bus.ParseFilter(`topic == "alarm" || topic == "fault"`)
	require.NoError(t, err)
	assert.True(t, f.Matches(msgWith(map[string]string{"topic": "fault"})))
	assert.False(t, f.Matches(msgWith(map[string]string{"topic": "telemetry"})))
}

func TestParseFilter_NotAndParens(t *testing.T) {
	f, err := bus.ParseFilter(`!(topic == "control") && has device`)
	require.NoError(t, err)

	assert.True(t, f.Matches(msgWith(map[string]string{"topic": "telemetry", "device": "d1"})))
	assert.False(t, f.Matches(msgWith(map[string]string{"topic": "control", "device": "d1"})))
	assert.False(t, f.Matches(msgWith(map[string]string{"topic": "telemetry"})))
}

func TestParseFilter_PrecedenceAndBindsTighter(t *testing.T) {
	// a || b && c parses as a || (b && c).
	f, err := bus.ParseFilter(`topic == "a" || topic == "b" && unit == "C"`)
	require.NoError(t, err)

	assert.True(t, f.Matches(msgWith(map[string]string{"topic": "a"})))
	assert.True(t, f.Matches(msgWith(map[string]string{"topic": "b", "unit": "C"})))
	assert.False(t, f.Matches(msgWith(map[string]string{"topic": "b", "unit": "F"})))
}

func TestParseFilter_SyntaxError(t *testing.T) {
	_, err := bus.ParseFilter(`topic === "x"`)
	assert.Error(t, err)

	_, err = bus.ParseFilter(`topic ==`)
	assert.Error(t, err)

	_, err = bus.ParseFilter(``)
	assert.Error(t, err)
}

func TestParseFilter_BadLikePattern(t *testing.T) {
	_, err := bus.ParseFilter(`device like "[unclosed"`)
	assert.Error(t, err)
}

func TestNewPropertyFilter_Validation(t *testing.T) {
	_, err := bus.NewPropertyFilter("", "x")
	assert.Error(t, err)

	_, err = bus.NewPropertyFilter("key", "[bad")
	assert.Error(t, err)
}

func TestMatchAll(t *testing.T) {
	assert.True(t, bus.MatchAll().Matches(msgWith(nil)))
}
