package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"kartpilot/internal/process"
)

var (
	metricProcessesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kartpilot",
		Name:      "processes_started_total",
		Help:      "Number of checkout processes started.",
	})
	metricProcessesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kartpilot",
		Name:      "processes_finished_total",
		Help:      "Number of checkout processes finished, by terminal stage.",
	}, []string{"stage"})
	metricProcessesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kartpilot",
		Name:      "processes_active",
		Help:      "Number of checkout processes currently running.",
	})
)

// ObserveStart records a newly launched process.
func ObserveStart() {
	metricProcessesStarted.Inc()
	metricProcessesActive.Inc()
}

// ObserveTerminal records a process reaching a terminal stage. Wired as the
// orchestrator's OnTerminal hook.
func ObserveTerminal(stage process.Stage) {
	metricProcessesActive.Dec()
	metricProcessesFinished.WithLabelValues(string(stage)).Inc()
}
