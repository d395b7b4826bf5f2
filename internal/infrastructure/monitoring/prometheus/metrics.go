// Package prometheus exposes the pipeline's operational metrics.  The CLI
// serves them on a local endpoint when metrics.enabled is set; every metric
// is also safe to use with a private registry in tests.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every pipeline metric.  A nil *Metrics is valid and records
// nothing, so components never need an enabled check.
type Metrics struct {
	registry *prometheus.Registry

	// Consolidation
	RecordsProcessed  prometheus.Counter
	RecordsMalformed  prometheus.Counter
	EntitiesMerged    prometheus.Counter
	MergeAmbiguous    prometheus.Counter
	RelationsSwept    prometheus.Counter

	// Bridging
	ElementsProcessed  *prometheus.CounterVec
	BridgesCreated     *prometheus.CounterVec
	ElementsUnresolved *prometheus.CounterVec
	ContextBoosted     prometheus.Counter

	// Shared
	StageDuration *prometheus.HistogramVec
	StoreErrors   *prometheus.CounterVec
}

// NewMetrics registers all pipeline metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RecordsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bridger", Subsystem: "consolidation",
			Name: "records_processed_total", Help: "Raw records read from the staging store.",
		}),
		RecordsMalformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bridger", Subsystem: "consolidation",
			Name: "records_malformed_total", Help: "Raw records skipped for failing validation.",
		}),
		EntitiesMerged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bridger", Subsystem: "consolidation",
			Name: "entities_merged_total", Help: "Entities absorbed by fuzzy merge groups.",
		}),
		MergeAmbiguous: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bridger", Subsystem: "consolidation",
			Name: "merge_ambiguous_total", Help: "Merge groups skipped for conflicting types.",
		}),
		RelationsSwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bridger", Subsystem: "consolidation",
			Name: "relations_swept_total", Help: "Canonical relations produced by the relation sweep.",
		}),

		ElementsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridger", Subsystem: "bridging",
			Name: "elements_processed_total", Help: "Structural elements scored, by role.",
		}, []string{"role"}),
		BridgesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridger", Subsystem: "bridging",
			Name: "bridges_created_total", Help: "Bridges committed, by role.",
		}, []string{"role"}),
		ElementsUnresolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridger", Subsystem: "bridging",
			Name: "elements_unresolved_total", Help: "Elements left without a bridge, by role.",
		}, []string{"role"}),
		ContextBoosted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bridger", Subsystem: "bridging",
			Name: "context_boosted_total", Help: "Winning candidates that received the in-context boost.",
		}),

		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bridger", Name: "stage_duration_seconds",
			Help:    "Wall-clock duration of pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridger", Name: "store_errors_total",
			Help: "Backing-store failures, by store.",
		}, []string{"store"}),
	}
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStage records one stage duration.  Nil-safe.
func (m *Metrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// IncStoreError counts one backing-store failure.  Nil-safe.
func (m *Metrics) IncStoreError(store string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(store).Inc()
}
