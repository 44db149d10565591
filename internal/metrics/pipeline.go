package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline metrics.
var (
	PipelineOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_outcomes_total",
			Help:      "Chat queries by terminal pipeline state",
		},
		[]string{"outcome"},
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end chat pipeline duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"outcome"},
	)

	TitleIndexBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "title_index_builds_total",
			Help:      "Title index rebuilds by result",
		},
		[]string{"status"},
	)

	CatalogIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_ingested_total",
			Help:      "Seed records processed by ingestion",
		},
		[]string{"result"}, // "ok" / "duplicate" / "invalid" / "error"
	)
)

var registerOnce sync.Once

// Register registers the domain metrics with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingCacheTotal,
			LLMRequestsTotal,
			LLMRequestDuration,
			LLMTokensTotal,
			BudgetTokensRemaining,
			PipelineOutcomesTotal,
			PipelineDuration,
			TitleIndexBuildsTotal,
			CatalogIngestedTotal,
		)
	})
}
