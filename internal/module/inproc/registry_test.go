// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package inproc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldgate/fieldgate/internal/bus"
	"github.com/fieldgate/fieldgate/internal/module"
	"github.com/fieldgate/fieldgate/internal/module/inproc"
)

type nopModule struct{}

func (nopModule) Create(context.Context, module.Publisher, []byte) error { return nil }
func (nopModule) Receive(context.Context, *bus.Message) error            { return nil }
func (nopModule) Destroy(context.Context) error                          { return nil }

func TestRegistry_Register(t *testing.T) {
	r := inproc.NewRegistry()

	require.NoError(t, r.Register("logger", func() module.Module { return nopModule{} }))
	assert.Error(t, r.Register("logger", func() module.Module { return nopModule{} }), "duplicate name")
	assert.Error(t, r.Register("", func() module.Module { return nopModule{} }))
	assert.Error(t, r.Register("nil", nil))
	assert.ElementsMatch(t, []string{"logger"}, r.Names())
}

func TestRegistry_Resolve(t *testing.T) {
	r := inproc.NewRegistry()
	built := 0
	require.NoError(t, r.Register("counter", func() module.Module {
		built++
		return nopModule{}
	}))

	desc := module.Descriptor{Name: "a", Path: "counter", Runtime: module.KindInProcess}

	mod, closer, err := r.Resolve(context.Background(), desc)
	require.NoError(t, err)
	require.NotNil(t, mod)
	require.NoError(t, closer.Close())

	// Each resolve builds a fresh instance.
	_, _, err = r.Resolve(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, 2, built)
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := inproc.NewRegistry()

	_, _, err := r.Resolve(context.Background(), module.Descriptor{
		Name:    "x",
		Path:    "ghost",
		Runtime: module.KindInProcess,
	})
	assert.ErrorIs(t, err, module.ErrNotFound)
}

func TestRegistry_ResolveNilFactoryResult(t *testing.T) {
	r := inproc.NewRegistry()
	require.NoError(t, r.Register("broken", func() module.Module { return nil }))

	_, _, err := r.Resolve(context.Background(), module.Descriptor{
		Name:    "x",
		Path:    "broken",
		Runtime: module.KindInProcess,
	})
	assert.ErrorIs(t, err, module.ErrSymbolMissing)
}
