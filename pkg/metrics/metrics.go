// Package metrics keeps secinit's Prometheus counters and exports them to a
// node-exporter textfile, since process 1 serves no HTTP endpoint.
package metrics

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every secinit collector. It is separate from the default
// registry so the textfile only carries supervisor series.
var Registry = prometheus.NewRegistry()

var (
	reapedChildren = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "secinit",
		Name:      "reaped_children_total",
		Help:      "Terminated child processes collected by the reaper",
	})

	signalsDispatched = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "secinit",
		Name:      "signals_total",
		Help:      "Signals received by the supervisor loop",
	}, []string{"signal", "handled"})

	spawnFailures = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "secinit",
		Subsystem: "unit",
		Name:      "spawn_failures_total",
		Help:      "Commands that failed to start",
	}, []string{"unit"})

	killFailures = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "secinit",
		Subsystem: "unit",
		Name:      "kill_failures_total",
		Help:      "Processes that could not be terminated",
	}, []string{"unit"})

	busyRejections = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "secinit",
		Subsystem: "unit",
		Name:      "busy_rejections_total",
		Help:      "Mutations rejected because the unit was already being mutated",
	}, []string{"unit"})

	runningProcesses = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "secinit",
		Subsystem: "unit",
		Name:      "running_processes",
		Help:      "Processes currently tracked by a unit",
	}, []string{"unit"})
)

// AddReaped records n reaped children.
func AddReaped(n int) {
	reapedChildren.Add(float64(n))
}

// SignalReceived records one signal delivery and whether a handler ran.
func SignalReceived(name string, handled bool) {
	h := "false"
	if handled {
		h = "true"
	}
	signalsDispatched.WithLabelValues(name, h).Inc()
}

// SpawnFailed records a failed spawn for a unit.
func SpawnFailed(unit string) {
	spawnFailures.WithLabelValues(unit).Inc()
}

// KillFailed records a failed termination for a unit.
func KillFailed(unit string) {
	killFailures.WithLabelValues(unit).Inc()
}

// BusyRejected records a rejected concurrent mutation for a unit.
func BusyRejected(unit string) {
	busyRejections.WithLabelValues(unit).Inc()
}

// SetRunning sets the number of processes a unit tracks.
func SetRunning(unit string, n int) {
	runningProcesses.WithLabelValues(unit).Set(float64(n))
}

// WriteTextfile atomically writes the registry to path in the text
// exposition format. The parent directory is created if needed.
func WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, Registry)
}
