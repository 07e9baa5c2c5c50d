// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// dispatches counts per-message dispatch outcomes.
var dispatches = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "classmate_command_dispatches_total",
		Help: "Total number of message dispatches by outcome",
	},
	[]string{"command", "status"},
)

// dispatchDuration is the histogram of end-to-end dispatch durations,
// including any interactive prompting.
var dispatchDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "classmate_command_dispatch_duration_seconds",
		Help:    "Dispatch duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"command"},
)

// promptsSent counts interactive argument prompts by command.
var promptsSent = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "classmate_command_prompts_total",
		Help: "Total number of interactive argument prompts sent",
	},
	[]string{"command"},
)

// throttleEntries tracks live throttle entries across all commands.
var throttleEntries = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "classmate_command_throttle_entries",
		Help: "Current number of live per-user throttle entries",
	},
)

// RegisterMetrics registers the package metrics with the given registry.
// Panics if registration fails, following prometheus convention.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(dispatches, dispatchDuration, promptsSent, throttleEntries)
}

func recordDispatch(command string, status DispatchStatus, start time.Time) {
	if command == "" {
		command = "none"
	}
	dispatches.WithLabelValues(command, string(status)).Inc()
	dispatchDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}

func recordPrompts(command string, n int) {
	if n > 0 {
		promptsSent.WithLabelValues(command).Add(float64(n))
	}
}
