// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

//go:build integration

package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/fieldgate/fieldgate/internal/bus"
	"github.com/fieldgate/fieldgate/internal/gateway"
	"github.com/fieldgate/fieldgate/internal/module"
	"github.com/fieldgate/fieldgate/internal/module/inproc"
	"github.com/fieldgate/fieldgate/internal/module/luamod"
)

// collector is an in-process module that records delivered payloads.
type collector struct {
	mu       sync.Mutex
	payloads []string
}

func (c *collector) Create(context.Context, module.Publisher, []byte) error { return nil }

func (c *collector) Receive(_ context.Context, msg *bus.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, string(msg.Payload()))
	return nil
}

func (c *collector) Destroy(context.Context) error { return nil }

func (c *collector) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.payloads...)
}

const relayScript = `
function create(config)
end

function receive(msg)
	gateway.publish("relayed:" .. msg.payload, { stage = "relayed" })
end

function destroy()
end
`

var _ = Describe("Gateway pipeline", func() {
	var (
		ctx      context.Context
		sink     *collector
		registry *inproc.Registry
		loaders  gateway.Loaders
		dir      string
	)

	BeforeEach(func() {
		ctx = context.Background()
		sink = &collector{}
		registry = inproc.NewRegistry()
		Expect(registry.Register("sink", func() module.Module { return sink })).To(Succeed())

		dir = GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "relay.lua"), []byte(relayScript), 0o600)).To(Succeed())

		loaders = gateway.Loaders{
			module.KindInProcess: registry,
			module.KindLua:       luamod.NewLoader(nil),
		}
	})

	It("routes messages through a Lua relay into an in-process sink", func() {
		descs := []module.Descriptor{
			{Name: "relay", Runtime: module.KindLua, Path: filepath.Join(dir, "relay.lua"), Filter: `stage != "relayed"`},
			{Name: "sink", Runtime: module.KindInProcess, Path: "sink", Filter: `stage == "relayed"`},
		}

		g, err := gateway.New(ctx, descs, loaders)
		Expect(err).NotTo(HaveOccurred())
		defer func() { Expect(g.Destroy(ctx)).To(Succeed()) }()

		Expect(g.Bus().Publish(bus.NewMessage([]byte("reading-42"), map[string]string{"stage": "raw"}))).To(Succeed())

		Eventually(sink.seen).Should(ContainElement("relayed:reading-42"))
	})

	It("supports adding and removing modules while running", func() {
		g, err := gateway.New(ctx, nil, loaders)
		Expect(err).NotTo(HaveOccurred())
		defer func() { Expect(g.Destroy(ctx)).To(Succeed()) }()

		Expect(g.AddModule(ctx, module.Descriptor{
			Name: "sink", Runtime: module.KindInProcess, Path: "sink",
		})).To(Succeed())

		Expect(g.Bus().Publish(bus.NewMessage([]byte("one"), nil))).To(Succeed())
		Eventually(sink.seen).Should(ContainElement("one"))

		Expect(g.RemoveModule(ctx, "sink")).To(Succeed())

		// Messages published after removal never reach the module.
		Expect(g.Bus().Publish(bus.NewMessage([]byte("two"), nil))).To(Succeed())
		Consistently(sink.seen).ShouldNot(ContainElement("two"))
	})

	It("delivers every queued message before teardown", func() {
		g, err := gateway.New(ctx, []module.Descriptor{
			{Name: "sink", Runtime: module.KindInProcess, Path: "sink"},
		}, loaders)
		Expect(err).NotTo(HaveOccurred())

		const total = 200
		for i := 0; i < total; i++ {
			Expect(g.Bus().Publish(bus.NewMessage([]byte{byte(i)}, nil))).To(Succeed())
		}

		Expect(g.Destroy(ctx)).To(Succeed())
		Expect(sink.seen()).To(HaveLen(total))
	})
})
