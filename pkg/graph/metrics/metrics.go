package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// System metrics
	SystemMemoryUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "system_memory_bytes",
		Help: "Current system memory usage",
	})

	SystemGoroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "system_goroutines",
		Help: "Number of goroutines",
	})

	// Normalizer metrics
	FindingsNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findings_normalized_total",
			Help: "Number of findings run through the normalizer",
		},
		[]string{"agent_type", "outcome"},
	)

	CrossReferenceValues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossref_values_total",
			Help: "Number of observed values seen by the cross-reference resolver",
		},
		[]string{"kind", "outcome"},
	)

	// Graph metrics
	GraphBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "graph_build_duration_seconds",
			Help: "Time spent building investigation graphs",
		},
		[]string{"variant"},
	)

	GraphNodeCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graph_nodes_total",
			Help: "Total number of nodes in the graph",
		},
		[]string{"node_type"},
	)

	GraphEdgeCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graph_edges_total",
			Help: "Total number of edges in the graph",
		},
		[]string{"relation"},
	)

	// Layout metrics
	SimulationTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "layout_simulation_ticks_total",
		Help: "Number of force simulation ticks executed",
	})

	SimulationKineticEnergy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "layout_kinetic_energy",
		Help: "Sum of squared node speeds after the last tick",
	})

	// Feed metrics
	FeedFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_failures_total",
			Help: "Number of failed finding feed fetches",
		},
		[]string{"investigation_id"},
	)

	RebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_rebuilds_total",
			Help: "Number of investigation graph rebuilds",
		},
		[]string{"status"},
	)
)

// UpdateSystemMetrics updates system-level metrics
func UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	SystemMemoryUsage.Set(float64(m.Alloc))
	SystemGoroutines.Set(float64(runtime.NumGoroutine()))
}

// RecordGraph publishes node and edge counts for the current graph.
func RecordGraph(nodesByType map[string]int, edgesByRelation map[string]int) {
	GraphNodeCount.Reset()
	for nodeType, count := range nodesByType {
		GraphNodeCount.WithLabelValues(nodeType).Set(float64(count))
	}

	GraphEdgeCount.Reset()
	for relation, count := range edgesByRelation {
		GraphEdgeCount.WithLabelValues(relation).Set(float64(count))
	}
}
