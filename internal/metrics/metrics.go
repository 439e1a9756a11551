// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "upload_scheduler"

var (
	// Mode is 1 for the active connectivity mode and 0 for the others.
	Mode = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mode",
		Help:      "Current connectivity mode (1 = active).",
	}, []string{"mode"})

	// Failovers counts automatic switches from online to offline.
	Failovers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "failovers_total",
		Help:      "Number of automatic online to offline failovers.",
	})

	// Requests counts dispatched service operations by backend and outcome.
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Service operations by backend and result.",
	}, []string{"backend", "result"})

	// StoreInitializations counts local store open attempts by result.
	StoreInitializations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_initializations_total",
		Help:      "Local store initialization attempts by result.",
	}, []string{"result"})

	// FileCleanupFailures counts media files that could not be removed during deletes.
	FileCleanupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "file_cleanup_failures_total",
		Help:      "Media files left behind because deletion failed.",
	})

	// PushesRecorded counts profile push increments.
	PushesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pushes_recorded_total",
		Help:      "Profile push count increments.",
	})
)

// Result labels.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultFailover = "failover"
)

// Backend labels.
const (
	BackendRemote  = "remote"
	BackendOffline = "offline"
)

// SetMode marks current as the active mode among all.
func SetMode(current string, all ...string) {
	for _, m := range all {
		v := 0.0
		if m == current {
			v = 1
		}
		Mode.WithLabelValues(m).Set(v)
	}
}

// Outcome returns the result label for err.
func Outcome(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
