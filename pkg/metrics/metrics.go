package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Import pipeline metrics
	ImportRuns     *prometheus.CounterVec
	ImportDuration prometheus.Histogram
	ActiveRuns     prometheus.Gauge
	RowsProcessed  prometheus.Counter
	EntityWrites   *prometheus.CounterVec

	// Scoring metrics
	ScoredEpisodes    prometheus.Counter
	ExtendedStayFlags prometheus.Counter
	ScoringDuration   prometheus.Histogram
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		ImportRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "import_runs_total",
			Help:      "Total number of import runs by final status",
		}, []string{"status"}),
		ImportDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "import_duration_seconds",
			Help:      "Wall time of complete import runs",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		ActiveRuns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_runs",
			Help:      "Number of import runs currently in flight",
		}),
		RowsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rows_processed_total",
			Help:      "Total number of entity rows processed across all runs",
		}),
		EntityWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "entity_writes_total",
			Help:      "Entity writes by entity and outcome (created, updated, error)",
		}, []string{"entity", "outcome"}),

		ScoredEpisodes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scored_episodes_total",
			Help:      "Total number of episodes that received a prediction",
		}),
		ExtendedStayFlags: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "extended_stay_flags_total",
			Help:      "Total number of positive extended-stay predictions",
		}),
		ScoringDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scoring_duration_seconds",
			Help:      "Wall time of scoring passes",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
	}
}
