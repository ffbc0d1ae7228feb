package trace

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	comparisonsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracediff_comparisons_total",
		Help: "Total comparisons by result (identical, diverged, error, canceled)",
	}, []string{"result"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracediff_stage_duration_seconds",
		Help:    "Duration of each comparison stage",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
	}, []string{"stage"})

	alignmentCells = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracediff_alignment_cells",
		Help:    "Cells in the LCS table per comparison",
		Buckets: prometheus.ExponentialBuckets(1024, 8, 9),
	})

	loopEntriesRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracediff_loop_entries_removed_total",
		Help: "Trace entries dropped by loop suppression",
	}, []string{"side"})
)
