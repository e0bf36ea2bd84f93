// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

// Package gateway assembles a message bus and a set of modules into a running
// unit with a strict lifecycle: modules are created in configuration order,
// subscribed all together, then started; teardown runs in reverse.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/fieldgate/fieldgate/internal/bus"
	"github.com/fieldgate/fieldgate/internal/module"
)

// ErrNotOwned is returned when an operation names a module this gateway does
// not own.
var ErrNotOwned = errors.New("module not owned by gateway")

// ErrDestroyed is returned by operations on a destroyed gateway.
var ErrDestroyed = errors.New("gateway destroyed")

// Loaders selects a module loader per runtime kind.
type Loaders map[module.Kind]module.Loader

// Gateway owns a bus and an ordered set of module records.
type Gateway struct {
	mu        sync.Mutex
	bus       *bus.Bus
	busOwned  bool
	loaders   Loaders
	logger    *slog.Logger
	notifier  *notifier
	records   []*record
	destroyed bool
}

// Option configures a gateway before its modules start.
type Option func(*Gateway)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithEventCallback registers a lifecycle callback before any event can
// fire, so EventCreated is observable.
func WithEventCallback(e Event, cb Callback) Option {
	return func(g *Gateway) { g.notifier.register(e, cb) }
}

// New creates a gateway from module descriptors. Startup is two-phase: every
// module is resolved and created first, then all are subscribed, then all are
// started, so a module's Start sees every peer's subscription in place. If
// any module fails to load or create, everything already created is destroyed
// in reverse order and an error is returned; a failed New leaves nothing
// running.
func New(ctx context.Context, descs []module.Descriptor, loaders Loaders, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		bus:      bus.New(),
		busOwned: true,
		loaders:  loaders,
		logger:   slog.Default(),
		notifier: newNotifier(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if err := g.buildAll(ctx, descs); err != nil {
		_ = g.bus.Destroy()
		return nil, err
	}

	if err := g.subscribeAndRun(); err != nil {
		g.unwind(ctx, len(g.records))
		_ = g.bus.Destroy()
		return nil, err
	}
	g.notifier.notify(g, EventCreated)
	return g, nil
}

// NewFromModules creates a gateway over caller-built module instances and an
// external bus. The bus is not owned: Destroy tears the modules down but
// leaves the bus active for its owner.
func NewFromModules(ctx context.Context, b *bus.Bus, entries []Entry, opts ...Option) (*Gateway, error) {
	if b == nil {
		return nil, oops.In("gateway").Errorf("bus cannot be nil")
	}

	g := &Gateway{
		bus:      b,
		busOwned: false,
		logger:   slog.Default(),
		notifier: newNotifier(),
	}
	for _, opt := range opts {
		opt(g)
	}

	for i, e := range entries {
		if e.Mod == nil {
			g.unwind(ctx, len(g.records))
			return nil, oops.In("gateway").With("entry", i).With("name", e.Name).Errorf("module cannot be nil")
		}
		if e.Name == "" {
			g.unwind(ctx, len(g.records))
			return nil, oops.In("gateway").With("entry", i).Errorf("module name is required")
		}
		desc := module.Descriptor{
			Name:       e.Name,
			Runtime:    module.KindInProcess,
			Filter:     e.Filter,
			FaultLimit: e.FaultLimit,
			Config:     e.Config,
		}
		if err := g.checkName(e.Name); err != nil {
			g.unwind(ctx, len(g.records))
			return nil, err
		}
		if _, err := compileFilter(e.Filter); err != nil {
			g.unwind(ctx, len(g.records))
			return nil, oops.In("gateway").With("module", e.Name).Wrapf(err, "invalid filter")
		}
		if err := e.Mod.Create(ctx, g.bus, e.Config); err != nil {
			g.unwind(ctx, len(g.records))
			return nil, oops.In("gateway").With("module", e.Name).Wrapf(err, "creating module")
		}
		g.records = append(g.records, &record{desc: desc, mod: e.Mod, closer: module.NopCloser()})
	}

	if err := g.subscribeAndRun(); err != nil {
		g.unwind(ctx, len(g.records))
		return nil, err
	}
	g.notifier.notify(g, EventCreated)
	return g, nil
}

// buildAll resolves and creates every descriptor in order. On failure the
// already created prefix is destroyed in reverse.
func (g *Gateway) buildAll(ctx context.Context, descs []module.Descriptor) error {
	for i, desc := range descs {
		rec, err := g.build(ctx, desc)
		if err != nil {
			g.unwind(ctx, len(g.records))
			return oops.In("gateway").With("entry", i).With("module", desc.DisplayName()).Wrapf(err, "building module")
		}
		g.records = append(g.records, rec)
	}
	return nil
}

// build resolves one descriptor and creates its module. The returned record
// is not yet subscribed.
func (g *Gateway) build(ctx context.Context, desc module.Descriptor) (*record, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if desc.Name == "" {
		return nil, oops.In("gateway").With("path", desc.Path).Errorf("module name is required")
	}
	if err := g.checkName(desc.Name); err != nil {
		return nil, err
	}
	if _, err := compileFilter(desc.Filter); err != nil {
		return nil, oops.In("gateway").With("module", desc.Name).Wrapf(err, "invalid filter")
	}

	loader, ok := g.loaders[desc.Runtime]
	if !ok {
		return nil, oops.In("gateway").With("runtime", string(desc.Runtime)).Errorf("no loader for runtime")
	}

	mod, closer, err := loader.Resolve(ctx, desc)
	if err != nil {
		return nil, err
	}
	if closer == nil {
		closer = module.NopCloser()
	}

	if err := mod.Create(ctx, g.bus, desc.Config); err != nil {
		_ = closer.Close()
		return nil, err
	}
	return &record{desc: desc, mod: mod, closer: closer}, nil
}

// subscribeAndRun subscribes every unsubscribed record, then starts their
// hosts. Subscriptions all land before the first Start runs. A subscribe
// failure leaves the remaining records unattached; the caller unwinds.
func (g *Gateway) subscribeAndRun() error {
	for _, rec := range g.records {
		if rec.sub == nil {
			if err := g.attach(rec); err != nil {
				return err
			}
		}
	}
	for _, rec := range g.records {
		if !rec.started {
			rec.host.Run()
			rec.started = true
		}
	}
	return nil
}

// attach subscribes the record and builds its host. Subscribe fails when the
// bus is destroyed, which can happen with an externally owned bus.
func (g *Gateway) attach(rec *record) error {
	filter, _ := compileFilter(rec.desc.Filter) // validated at build time
	sub, err := g.bus.Subscribe(rec.desc.Name, filter)
	if err != nil {
		return oops.In("gateway").With("module", rec.desc.Name).Wrapf(err, "subscribing module")
	}
	rec.sub = sub
	rec.host = module.NewHost(rec.desc.Name, rec.mod, sub,
		module.WithLogger(g.logger),
		module.WithFaultLimit(rec.desc.FaultLimit))
	return nil
}

// checkName rejects duplicate module names. RemoveModule addresses modules by
// name, so the gateway requires one per record and enforces uniqueness.
func (g *Gateway) checkName(name string) error {
	for _, rec := range g.records {
		if rec.desc.Name == name {
			return oops.In("gateway").With("module", name).Errorf("module name already in use")
		}
	}
	return nil
}

// Bus returns the gateway's message bus.
func (g *Gateway) Bus() *bus.Bus { return g.bus }

// Modules returns the owned module names in configuration order.
func (g *Gateway) Modules() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.records))
	for _, rec := range g.records {
		names = append(names, rec.desc.Name)
	}
	return names
}

// OnEvent registers a lifecycle callback. Callbacks registered after New
// returns can only observe EventDestroyed.
func (g *Gateway) OnEvent(e Event, cb Callback) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notifier.register(e, cb)
}

// AddModule loads, creates, subscribes, and starts one more module on the
// running gateway.
func (g *Gateway) AddModule(ctx context.Context, desc module.Descriptor) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.destroyed {
		return oops.In("gateway").Wrap(ErrDestroyed)
	}

	rec, err := g.build(ctx, desc)
	if err != nil {
		return oops.In("gateway").With("module", desc.DisplayName()).Wrapf(err, "adding module")
	}

	if err := g.attach(rec); err != nil {
		if terr := g.teardown(ctx, rec); terr != nil {
			g.logger.Error("teardown after failed attach", "module", desc.Name, "error", terr)
		}
		return err
	}
	rec.host.Run()
	rec.started = true
	g.records = append(g.records, rec)

	g.logger.Info("module added", "module", desc.Name, "runtime", string(desc.Runtime))
	return nil
}

// RemoveModule stops and destroys one module. The module must be owned by
// this gateway; removing an unknown or already removed module returns
// ErrNotOwned.
func (g *Gateway) RemoveModule(ctx context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.destroyed {
		return oops.In("gateway").Wrap(ErrDestroyed)
	}

	idx := -1
	for i, rec := range g.records {
		if rec.desc.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return oops.In("gateway").With("module", name).Wrap(ErrNotOwned)
	}

	rec := g.records[idx]
	g.records = append(g.records[:idx], g.records[idx+1:]...)

	if err := g.teardown(ctx, rec); err != nil {
		return err
	}
	g.logger.Info("module removed", "module", name)
	return nil
}

// teardown runs one record's removal sequence: unsubscribe, drain, destroy,
// release. The host worker finishes any in-flight Receive before Destroy is
// called.
func (g *Gateway) teardown(ctx context.Context, rec *record) error {
	if rec.sub != nil {
		if err := g.bus.Unsubscribe(rec.sub); err != nil {
			g.logger.Error("unsubscribe failed", "module", rec.desc.Name, "error", err)
		}
	}
	if rec.host != nil {
		rec.host.Stop()
	}

	destroyErr := rec.mod.Destroy(ctx)
	closeErr := rec.closer.Close()

	if destroyErr != nil {
		return oops.In("gateway").With("module", rec.desc.Name).Wrapf(destroyErr, "destroying module")
	}
	if closeErr != nil {
		return oops.In("gateway").With("module", rec.desc.Name).Wrapf(closeErr, "releasing module")
	}
	return nil
}

// unwind destroys the first n records in reverse order. Used for failed
// startup, where records may not be subscribed yet.
func (g *Gateway) unwind(ctx context.Context, n int) {
	for i := n - 1; i >= 0; i-- {
		rec := g.records[i]
		if err := g.teardown(ctx, rec); err != nil {
			g.logger.Error("teardown during unwind failed", "module", rec.desc.Name, "error", err)
		}
	}
	g.records = nil
}

// Destroy notifies EventDestroyed, then tears every module down in reverse
// configuration order, then destroys the bus if the gateway owns it. The
// gateway is unusable afterwards.
func (g *Gateway) Destroy(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.destroyed {
		return oops.In("gateway").Wrap(ErrDestroyed)
	}
	g.destroyed = true

	// Observers hear about the teardown while every module is still alive.
	g.notifier.notify(g, EventDestroyed)

	var firstErr error
	for i := len(g.records) - 1; i >= 0; i-- {
		if err := g.teardown(ctx, g.records[i]); err != nil {
			g.logger.Error("module teardown failed", "module", g.records[i].desc.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	g.records = nil

	if g.busOwned {
		if err := g.bus.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
