// internal/metrics/prom.go
// Package metrics centralises Prometheus metric registration for all
// flamecore binaries (profile agent, monitor). It exposes typed collectors
// so that code can remain import-cycle-free. The
// package registers with the global prometheus.DefaultRegisterer, which
// callers typically expose via the /metrics HTTP handler from the
// Prometheus client library.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// Gauge metrics -----------------------------------------------------

	BlockedGoroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "flamecore",
		Subsystem: "runtime",
		Name:      "blocked_goroutines",
		Help:      "Heuristic count of goroutines currently in a blocked state.",
	})

	HeapBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "flamecore",
		Subsystem: "runtime",
		Name:      "heap_bytes",
		Help:      "Current heap size in bytes (runtime.MemStats.Alloc).",
	})

	Subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "flamecore",
		Subsystem: "monitor",
		Name:      "subscribers",
		Help:      "Current number of active live-view subscriber connections.",
	})

	// Counter metrics -----------------------------------------------------

	SamplesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flamecore",
		Subsystem: "sampler",
		Name:      "samples_total",
		Help:      "Total number of stack samples folded into the aggregation table.",
	})

	TicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flamecore",
		Subsystem: "sampler",
		Name:      "ticks_total",
		Help:      "Total number of sampler timer ticks fired, including skipped ones.",
	})

	DroppedFramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flamecore",
		Subsystem: "sampler",
		Name:      "dropped_frames_total",
		Help:      "Total number of stack frames discarded by the frame filter.",
	})

	GcPauseTotalNs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flamecore",
		Subsystem: "runtime",
		Name:      "gc_pause_total_ns",
		Help:      "Cumulative GC pause time in nanoseconds.",
	})

	MergeTimeoutTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flamecore",
		Subsystem: "topology",
		Name:      "merge_timeout_total",
		Help:      "Total number of process-topology merges that gave up waiting for a child's folded file.",
	})

	SnapshotsReceivedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flamecore",
		Subsystem: "monitor",
		Name:      "snapshots_received_total",
		Help:      "Total number of folded snapshots the monitor has dumped from its sampler and fanned out to retention/subscribers.",
	})
)

// Register exports all metrics; safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			BlockedGoroutines,
			HeapBytes,
			Subscribers,
			SamplesTotal,
			TicksTotal,
			DroppedFramesTotal,
			GcPauseTotalNs,
			MergeTimeoutTotal,
			SnapshotsReceivedTotal,
		)
	})
}
