package metrics

import "github.com/prometheus/client_golang/prometheus"

// Chat completion and moderation metrics. The operation label names the pipeline stage.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of language model requests",
		},
		[]string{"operation", "model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Language model request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"operation", "model"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Total language model tokens consumed",
		},
		[]string{"operation", "model", "type"},
	)

	BudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_tokens_remaining",
			Help:      "Remaining shared token budget, -1 when unlimited",
		},
		[]string{"period"},
	)
)

// SetBudgetRemaining publishes the tracker's remaining budget.
func SetBudgetRemaining(daily, monthly int64) {
	BudgetTokensRemaining.WithLabelValues("daily").Set(float64(daily))
	BudgetTokensRemaining.WithLabelValues("monthly").Set(float64(monthly))
}
