// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package module

import "github.com/prometheus/client_golang/prometheus"

var receiveFaults = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fieldgate_module_receive_faults_total",
		Help: "Total number of receive faults (errors or panics) by module",
	},
	[]string{"module"},
)

// recordReceiveFault increments the receive fault counter for a module.
func recordReceiveFault(name string) {
	receiveFaults.WithLabelValues(name).Inc()
}

// RegisterMetrics registers module metrics with the given registerer.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(receiveFaults)
}
