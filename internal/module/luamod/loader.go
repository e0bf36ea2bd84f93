// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package luamod

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/fieldgate/fieldgate/internal/bus"
	"github.com/fieldgate/fieldgate/internal/module"
)

// A Lua module is a script defining these globals:
//
//	function create(config)      -- required; raise to abort initialization
//	function receive(msg)        -- required; msg has id, payload, properties
//	function destroy()           -- required
//	function start()             -- optional; runs once before delivery begins
//
// The script publishes through gateway.publish(payload, properties) and logs
// through gateway.log(message). The interpreter is single-threaded, so start
// must return rather than loop.
const (
	fnCreate  = "create"
	fnReceive = "receive"
	fnDestroy = "destroy"
	fnStart   = "start"
)

// Compile-time interface check.
var _ module.Loader = (*Loader)(nil)

// Loader resolves Lua script descriptors into sandboxed interpreter modules.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a Lua module loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Resolve reads and compiles the script at the descriptor's path. The
// returned closer releases the interpreter state; the caller must close it
// after Destroy.
func (l *Loader) Resolve(_ context.Context, desc module.Descriptor) (module.Module, io.Closer, error) {
	code, err := os.ReadFile(filepath.Clean(desc.Path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, oops.In("luamod").With("path", desc.Path).Wrapf(module.ErrNotFound, "script does not exist")
		}
		return nil, nil, oops.In("luamod").With("path", desc.Path).Wrap(err)
	}

	L, err := newState()
	if err != nil {
		return nil, nil, oops.In("luamod").With("module", desc.DisplayName()).Wrap(err)
	}

	mod := &luaModule{
		name:   desc.DisplayName(),
		state:  L,
		logger: l.logger,
	}
	mod.registerHostFunctions()

	if err := L.DoString(string(code)); err != nil {
		L.Close()
		return nil, nil, oops.In("luamod").With("module", desc.DisplayName()).Wrapf(module.ErrInitFailed, "script error: %v", err)
	}

	for _, name := range []string{fnCreate, fnReceive, fnDestroy} {
		if L.GetGlobal(name).Type() != lua.LTFunction {
			L.Close()
			return nil, nil, oops.In("luamod").With("module", desc.DisplayName()).With("function", name).Wrapf(module.ErrSymbolMissing, "script does not define required function")
		}
	}

	if L.GetGlobal(fnStart).Type() == lua.LTFunction {
		return &luaStarterModule{luaModule: mod}, mod, nil
	}
	return mod, mod, nil
}

// luaModule drives one script through a dedicated interpreter state. The
// state is not goroutine-safe; mu serializes all entry points.
type luaModule struct {
	name   string
	state  *lua.LState
	logger *slog.Logger
	pub    module.Publisher

	mu     sync.Mutex
	closed bool
}

func (m *luaModule) Create(_ context.Context, pub module.Publisher, config []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pub = pub
	if err := m.call(fnCreate, lua.LString(config)); err != nil {
		return oops.In("luamod").With("module", m.name).Wrapf(module.ErrInitFailed, "%v", err)
	}
	return nil
}

func (m *luaModule) Receive(_ context.Context, msg *bus.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	if err := m.call(fnReceive, m.buildMessageTable(msg)); err != nil {
		return oops.In("luamod").With("module", m.name).Wrap(err)
	}
	return nil
}

func (m *luaModule) Destroy(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	if err := m.call(fnDestroy); err != nil {
		return oops.In("luamod").With("module", m.name).Wrap(err)
	}
	return nil
}

// Close releases the interpreter. Further deliveries become no-ops.
func (m *luaModule) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		m.state.Close()
	}
	return nil
}

// call invokes a script global with the state lock held.
func (m *luaModule) call(name string, args ...lua.LValue) error {
	return m.state.CallByParam(lua.P{
		Fn:      m.state.GetGlobal(name),
		NRet:    0,
		Protect: true,
	}, args...)
}

func (m *luaModule) buildMessageTable(msg *bus.Message) *lua.LTable {
	t := m.state.NewTable()
	m.state.SetField(t, "id", lua.LString(msg.ID().String()))
	m.state.SetField(t, "payload", lua.LString(msg.Payload()))

	props := m.state.NewTable()
	for k, v := range msg.Properties() {
		m.state.SetField(props, k, lua.LString(v))
	}
	m.state.SetField(t, "properties", props)
	return t
}

// registerHostFunctions installs the gateway.* API into the state.
func (m *luaModule) registerHostFunctions() {
	t := m.state.NewTable()
	m.state.SetField(t, "publish", m.state.NewFunction(m.luaPublish))
	m.state.SetField(t, "log", m.state.NewFunction(m.luaLog))
	m.state.SetGlobal("gateway", t)
}

// luaPublish implements gateway.publish(payload[, properties]).
func (m *luaModule) luaPublish(L *lua.LState) int {
	payload := L.CheckString(1)

	var props map[string]string
	if L.GetTop() >= 2 {
		table := L.CheckTable(2)
		props = make(map[string]string)
		table.ForEach(func(k, v lua.LValue) {
			props[k.String()] = v.String()
		})
	}

	if m.pub == nil {
		L.RaiseError("publish called before create completed")
		return 0
	}
	if err := m.pub.Publish(bus.NewMessage([]byte(payload), props)); err != nil {
		L.RaiseError("publish failed: %v", err)
		return 0
	}
	return 0
}

// luaLog implements gateway.log(message).
func (m *luaModule) luaLog(L *lua.LState) int {
	m.logger.Info(L.CheckString(1), "module", m.name, "source", "lua")
	return 0
}

// luaStarterModule adds the Starter contract for scripts defining start().
type luaStarterModule struct {
	*luaModule
}

func (m *luaStarterModule) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	if err := m.call(fnStart); err != nil {
		return oops.In("luamod").With("module", m.name).Wrap(err)
	}
	return nil
}
