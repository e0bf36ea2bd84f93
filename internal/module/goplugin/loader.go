// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

// Package goplugin loads binary modules as subprocesses via HashiCorp's
// go-plugin system over net/rpc.
package goplugin

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/fieldgate/fieldgate/internal/bus"
	"github.com/fieldgate/fieldgate/internal/module"
	"github.com/fieldgate/fieldgate/pkg/modsdk"
)

// Bounds on the wait for a freshly spawned module process to bring up its
// RPC endpoint.
const (
	connectBaseDelay  = 100 * time.Millisecond
	connectMaxRetries = 5
)

// Compile-time interface check.
var _ module.Loader = (*Loader)(nil)

// PluginClient wraps the go-plugin client for testability.
type PluginClient interface {
	// Client returns the RPC client protocol.
	Client() (hashiplug.ClientProtocol, error)
	// Kill terminates the module process.
	Kill()
}

// ClientFactory creates module clients.
type ClientFactory interface {
	// NewClient creates a client for the given executable path.
	NewClient(execPath string) PluginClient
}

// DefaultClientFactory creates real go-plugin clients.
type DefaultClientFactory struct{}

// NewClient creates a real go-plugin client.
func (f *DefaultClientFactory) NewClient(execPath string) PluginClient {
	return hashiplug.NewClient(&hashiplug.ClientConfig{
		HandshakeConfig:  modsdk.Handshake,
		Plugins:          map[string]hashiplug.Plugin{"module": &modsdk.ModulePlugin{}},
		Cmd:              exec.Command(execPath), // #nosec G204 -- execPath comes from the gateway's own properties
		AllowedProtocols: []hashiplug.Protocol{hashiplug.ProtocolNetRPC},
	})
}

// Loader resolves binary module descriptors into running subprocesses.
type Loader struct {
	factory ClientFactory
}

// NewLoader creates a binary module loader.
func NewLoader() *Loader {
	return &Loader{factory: &DefaultClientFactory{}}
}

// NewLoaderWithFactory creates a loader with a custom client factory (for
// testing). Panics if factory is nil.
func NewLoaderWithFactory(factory ClientFactory) *Loader {
	if factory == nil {
		panic("goplugin: factory cannot be nil")
	}
	return &Loader{factory: factory}
}

// Resolve spawns the module executable and dispenses its control interface.
// An optional module.yaml next to the executable is validated against the
// host API before the process is started.
func (l *Loader) Resolve(ctx context.Context, desc module.Descriptor) (module.Module, io.Closer, error) {
	if _, err := os.Stat(desc.Path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil, oops.In("goplugin").With("path", desc.Path).Wrapf(module.ErrNotFound, "module executable does not exist")
		}
		return nil, nil, oops.In("goplugin").With("path", desc.Path).Wrap(err)
	}

	if err := checkManifest(desc); err != nil {
		return nil, nil, err
	}

	client := l.factory.NewClient(desc.Path)
	closer := &clientCloser{client: client}

	// The subprocess needs a beat before its endpoint is up; retry the
	// handshake with bounded backoff.
	var proto hashiplug.ClientProtocol
	backoff := retry.WithMaxRetries(connectMaxRetries, retry.NewExponential(connectBaseDelay))
	err := retry.Do(ctx, backoff, func(_ context.Context) error {
		var connErr error
		proto, connErr = client.Client()
		if connErr != nil {
			return retry.RetryableError(connErr)
		}
		return nil
	})
	if err != nil {
		client.Kill()
		return nil, nil, oops.In("goplugin").With("module", desc.DisplayName()).Wrapf(err, "connecting to module process")
	}

	raw, err := proto.Dispense("module")
	if err != nil {
		client.Kill()
		return nil, nil, oops.In("goplugin").With("module", desc.DisplayName()).Wrapf(module.ErrSymbolMissing, "dispense failed: %v", err)
	}

	mc, ok := raw.(modsdk.ModuleController)
	if !ok {
		client.Kill()
		return nil, nil, oops.In("goplugin").With("module", desc.DisplayName()).Wrapf(module.ErrSymbolMissing, "unexpected dispense type %T", raw)
	}

	info, err := mc.Describe()
	if err != nil {
		client.Kill()
		return nil, nil, oops.In("goplugin").With("module", desc.DisplayName()).Wrapf(module.ErrSymbolMissing, "describe failed: %v", err)
	}

	base := &remoteModule{name: desc.DisplayName(), client: mc}
	if info.HasStart {
		return &remoteStarterModule{remoteModule: base}, closer, nil
	}
	return base, closer, nil
}

// checkManifest validates a module.yaml next to the executable, when present.
func checkManifest(desc module.Descriptor) error {
	manifestPath := filepath.Join(filepath.Dir(desc.Path), "module.yaml")
	data, err := os.ReadFile(manifestPath) //nolint:gosec // path derives from the descriptor
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Manifests are optional for binary modules.
		}
		return oops.In("goplugin").With("path", manifestPath).Wrap(err)
	}

	m, err := module.ParseManifest(data)
	if err != nil {
		return oops.In("goplugin").With("path", manifestPath).Wrapf(err, "invalid module manifest")
	}
	if m.Filter != "" {
		if _, err := bus.ParseFilter(m.Filter); err != nil {
			return oops.In("goplugin").With("module", m.Name).Wrapf(err, "invalid manifest filter")
		}
	}
	if err := m.CheckHostCompat(); err != nil {
		return oops.In("goplugin").With("module", m.Name).Wrapf(module.ErrSymbolMissing, "%v", err)
	}
	return nil
}

// clientCloser releases the module subprocess.
type clientCloser struct {
	client PluginClient
}

func (c *clientCloser) Close() error {
	c.client.Kill()
	return nil
}

// remoteModule adapts a ModuleController to the module.Module contract.
type remoteModule struct {
	name   string
	client modsdk.ModuleController
}

func (m *remoteModule) Create(_ context.Context, pub module.Publisher, config []byte) error {
	err := m.client.Create(config, func(payload []byte, props map[string]string) error {
		return pub.Publish(bus.NewMessage(payload, props))
	})
	if err != nil {
		return oops.In("goplugin").With("module", m.name).Wrapf(module.ErrInitFailed, "%v", err)
	}
	return nil
}

func (m *remoteModule) Receive(_ context.Context, msg *bus.Message) error {
	return m.client.Receive(modsdk.Message{
		ID:         msg.ID().String(),
		Payload:    msg.Payload(),
		Properties: msg.Properties(),
	})
}

func (m *remoteModule) Destroy(context.Context) error {
	return m.client.Destroy()
}

// remoteStarterModule adds the Starter contract for modules that declared a
// background pump in Describe.
type remoteStarterModule struct {
	*remoteModule
}

func (m *remoteStarterModule) Start(context.Context) error {
	return m.client.Start()
}
