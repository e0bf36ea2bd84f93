// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package module

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/fieldgate/fieldgate/internal/bus"
)

// Host wraps one live module instance and owns the worker that bridges its
// bus subscription to the module's Receive. Receive is invoked one message at
// a time, never concurrently for the same module. A panic or error inside
// Receive is caught at this boundary, logged, and the worker moves on to the
// next message.
type Host struct {
	name       string
	mod        Module
	sub        *bus.Subscription
	logger     *slog.Logger
	faultLimit int

	wg          sync.WaitGroup
	startCancel context.CancelFunc
	startDone   chan struct{}
	running     bool
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithLogger sets the structured logger the host reports faults to.
func WithLogger(l *slog.Logger) HostOption {
	return func(h *Host) { h.logger = l }
}

// WithFaultLimit stops delivery after n receive faults. Zero disables the
// limit; faults are then logged and delivery continues.
func WithFaultLimit(n int) HostOption {
	return func(h *Host) { h.faultLimit = n }
}

// NewHost creates a host for a created, subscribed module.
func NewHost(name string, mod Module, sub *bus.Subscription, opts ...HostOption) *Host {
	h := &Host{
		name:      name,
		mod:       mod,
		sub:       sub,
		logger:    slog.Default(),
		startDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name returns the module name the host was built with.
func (h *Host) Name() string { return h.name }

// Run starts the delivery worker and, if the module implements Starter, its
// start pump on a separate goroutine. Run must be called at most once.
func (h *Host) Run() {
	if h.running {
		panic("module: Host.Run called twice")
	}
	h.running = true

	h.wg.Add(1)
	go h.worker()

	startCtx, cancel := context.WithCancel(context.Background())
	h.startCancel = cancel
	if s, ok := h.mod.(Starter); ok {
		// Deliberately outside the worker WaitGroup: a Start that never
		// returns must not stall teardown.
		go func() {
			defer close(h.startDone)
			if err := s.Start(startCtx); err != nil {
				h.logger.Error("module start failed",
					"module", h.name,
					"error", err)
			}
		}()
	} else {
		close(h.startDone)
	}
}

// Stop waits for the worker to drain the subscription queue and exit. The
// caller must have unsubscribed the module from the bus first, otherwise the
// queue never closes and Stop blocks forever. The current in-flight Receive,
// if any, is allowed to finish; there is no mid-flight cancellation.
func (h *Host) Stop() {
	if h.startCancel != nil {
		h.startCancel()
	}
	h.wg.Wait()

	select {
	case <-h.startDone:
	default:
		h.logger.Warn("module start has not returned, abandoning its goroutine",
			"module", h.name)
	}
}

func (h *Host) worker() {
	defer h.wg.Done()

	faults := 0
	muted := false
	for {
		m, ok := h.sub.Next()
		if !ok {
			return
		}
		if muted {
			// Fault limit reached: keep draining so teardown can complete,
			// but stop handing messages to the module.
			continue
		}
		if err := h.deliver(m); err != nil {
			faults++
			h.logger.Error("module receive fault",
				"module", h.name,
				"message_id", m.ID().String(),
				"faults", faults,
				"error", err)
			recordReceiveFault(h.name)
			if h.faultLimit > 0 && faults >= h.faultLimit {
				muted = true
				h.logger.Error("module fault limit reached, delivery stopped",
					"module", h.name,
					"fault_limit", h.faultLimit)
			}
		}
	}
}

// deliver invokes Receive with panic containment. A single bad message must
// not take down the module's worker.
func (h *Host) deliver(m *bus.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.In("module").With("module", h.name).With("message_id", m.ID().String()).Errorf("receive panicked: %v", r)
		}
	}()
	return h.mod.Receive(context.Background(), m)
}
