package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importBatchesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imports",
		Subsystem: "batch",
		Name:      "started_total",
		Help:      "Total number of import batches started broken down by entity type.",
	}, []string{"entity_type"})

	importBatchesFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imports",
		Subsystem: "batch",
		Name:      "finalized_total",
		Help:      "Total number of import batches finalized broken down by entity type and status.",
	}, []string{"entity_type", "status"})

	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imports",
		Subsystem: "rows",
		Name:      "total",
		Help:      "Total number of processed rows broken down by outcome.",
	}, []string{"entity_type", "outcome"})

	importChunkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "imports",
		Subsystem: "chunk",
		Name:      "duration_seconds",
		Help:      "Time spent mapping and persisting one chunk.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"entity_type", "path"})

	importUndo = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imports",
		Subsystem: "undo",
		Name:      "total",
		Help:      "Total number of undo requests broken down by result.",
	}, []string{"result"})
)

func recordRow(entityType, outcome string, n int) {
	if n <= 0 {
		return
	}
	importRows.WithLabelValues(entityType, outcome).Add(float64(n))
}

// recordChunk labels the chunk by whether the bulk insert succeeded or fell back to single rows.
func recordChunk(entityType string, fallback bool, d time.Duration) {
	path := "bulk"
	if fallback {
		path = "fallback"
	}
	importChunkDuration.WithLabelValues(entityType, path).Observe(d.Seconds())
}

func recordUndo(result string) {
	importUndo.WithLabelValues(result).Inc()
}
