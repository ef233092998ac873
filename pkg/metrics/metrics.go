// Package metrics provides Prometheus metrics for the engine's storage
// core: per-collection shape, search latency, recall degradation under
// quantization, and auto-save/snapshot activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VectorsTotal tracks the number of live vectors per collection.
	VectorsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vectorizer",
			Subsystem: "collection",
			Name:      "vectors_total",
			Help:      "Number of live (non-tombstoned) vectors in a collection",
		},
		[]string{"collection"},
	)

	// IndexedTotal tracks how many of a collection's vectors have been
	// admitted into the HNSW graph (Building state keeps this behind
	// VectorsTotal until ef_construction vectors have been inserted).
	IndexedTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vectorizer",
			Subsystem: "collection",
			Name:      "indexed_total",
			Help:      "Number of vectors currently reachable from the HNSW entry point",
		},
		[]string{"collection"},
	)

	// SearchLatency tracks end-to-end search latency per collection.
	SearchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vectorizer",
			Subsystem: "collection",
			Name:      "search_latency_seconds",
			Help:      "Latency of search operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	// SearchTotal counts searches by outcome (ok, partial, error).
	SearchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vectorizer",
			Subsystem: "collection",
			Name:      "searches_total",
			Help:      "Total number of search operations by outcome",
		},
		[]string{"collection", "result"},
	)

	// RecallDegradation is the gauge for the drop in top-10 recall a
	// quantized collection exhibits relative to its unquantized baseline
	// (spec.md §8 P10). No code in this module sets it.
	RecallDegradation = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vectorizer",
			Subsystem: "collection",
			Name:      "recall_degradation_ratio",
			Help:      "Estimated top-10 recall loss vs. an unquantized baseline, in [0,1]",
		},
		[]string{"collection"},
	)

	// TombstoneFraction tracks the fraction of a collection's nodes
	// currently tombstoned, the signal that drives HNSW rebuilds.
	TombstoneFraction = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vectorizer",
			Subsystem: "collection",
			Name:      "tombstone_fraction",
			Help:      "Fraction of graph nodes currently tombstoned",
		},
		[]string{"collection"},
	)

	// RebuildsTotal counts HNSW rebuilds by outcome.
	RebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vectorizer",
			Subsystem: "collection",
			Name:      "rebuilds_total",
			Help:      "Total number of HNSW rebuild-with-swap operations by outcome",
		},
		[]string{"collection", "result"},
	)

	// AutoSaveTotal counts auto-save ticks by outcome.
	AutoSaveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vectorizer",
			Subsystem: "persistence",
			Name:      "autosave_total",
			Help:      "Total number of auto-save attempts by outcome",
		},
		[]string{"collection", "result"},
	)

	// SnapshotsTotal counts snapshot creations by outcome.
	SnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vectorizer",
			Subsystem: "persistence",
			Name:      "snapshots_total",
			Help:      "Total number of snapshot creations by outcome",
		},
		[]string{"collection", "result"},
	)

	// SnapshotCount tracks how many snapshots are currently retained for
	// a collection (spec.md §8 P7).
	SnapshotCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vectorizer",
			Subsystem: "persistence",
			Name:      "snapshot_count",
			Help:      "Number of snapshots currently retained",
		},
		[]string{"collection"},
	)

	// ReadOnlyCollections tracks collections tripped into read-only mode
	// by a persistent I/O failure (spec.md §7).
	ReadOnlyCollections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vectorizer",
			Subsystem: "persistence",
			Name:      "read_only",
			Help:      "1 if the collection is in read-only mode due to persistent I/O failure, else 0",
		},
		[]string{"collection"},
	)
)

// ObserveSearch records a search's latency and outcome for a collection.
func ObserveSearch(collection string, d time.Duration, partial bool, err error) {
	SearchLatency.WithLabelValues(collection).Observe(d.Seconds())
	switch {
	case err != nil:
		SearchTotal.WithLabelValues(collection, "error").Inc()
	case partial:
		SearchTotal.WithLabelValues(collection, "partial").Inc()
	default:
		SearchTotal.WithLabelValues(collection, "ok").Inc()
	}
}

// RecordRebuild records the outcome of an HNSW rebuild.
func RecordRebuild(collection string, err error) {
	if err != nil {
		RebuildsTotal.WithLabelValues(collection, "error").Inc()
		return
	}
	RebuildsTotal.WithLabelValues(collection, "ok").Inc()
}

// RecordAutoSave records the outcome of an auto-save tick.
func RecordAutoSave(collection string, err error) {
	if err != nil {
		AutoSaveTotal.WithLabelValues(collection, "error").Inc()
		return
	}
	AutoSaveTotal.WithLabelValues(collection, "ok").Inc()
}

// RecordSnapshot records the outcome of a snapshot creation.
func RecordSnapshot(collection string, err error) {
	if err != nil {
		SnapshotsTotal.WithLabelValues(collection, "error").Inc()
		return
	}
	SnapshotsTotal.WithLabelValues(collection, "ok").Inc()
}
