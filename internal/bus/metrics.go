// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package bus

import "github.com/prometheus/client_golang/prometheus"

// Package-level counters so publish and delivery paths can record without
// threading a metrics handle through every call site.
var (
	messagesPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fieldgate_bus_messages_published_total",
			Help: "Total number of messages published to the bus",
		},
	)

	messagesDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldgate_bus_messages_delivered_total",
			Help: "Total number of messages enqueued for delivery by subscriber",
		},
		[]string{"subscriber"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fieldgate_bus_queue_depth",
			Help: "Current delivery queue depth by subscriber",
		},
		[]string{"subscriber"},
	)
)

// RegisterMetrics registers the bus metrics with the given registerer.
// Call once per process, typically from the observability server setup.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(messagesPublished)
	reg.MustRegister(messagesDelivered)
	reg.MustRegister(queueDepth)
}
