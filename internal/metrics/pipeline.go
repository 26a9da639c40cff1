package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline and search Prometheus metrics.
var (
	// PipelineEventsTotal counts terminal pipeline outcomes per event type.
	// Outcomes: persisted, duplicate, stale, invalid, dead_letter.
	PipelineEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "persona",
			Name:      "pipeline_events_total",
			Help:      "Terminal profile update pipeline outcomes",
		},
		[]string{"event_type", "outcome"},
	)

	PipelineRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "persona",
			Name:      "pipeline_retries_total",
			Help:      "Transient pipeline retries by cause",
		},
		[]string{"cause"}, // "version_conflict", "provider", "store"
	)

	PipelineProcessDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "persona",
			Name:      "pipeline_process_duration_seconds",
			Help:      "Per-message pipeline processing duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"event_type"},
	)

	DeadLettersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "persona",
			Name:      "dead_letters_total",
			Help:      "Messages set aside after exhausting retries",
		},
	)

	// SearchRequestsTotal counts searches by the mode that actually served
	// them and whether the semantic path fell back to keyword.
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "persona",
			Name:      "search_requests_total",
			Help:      "Search requests by served mode",
		},
		[]string{"mode", "fallback"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "persona",
			Name:      "search_duration_seconds",
			Help:      "Search execution duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline and search metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineEventsTotal)
	prometheus.MustRegister(PipelineRetriesTotal)
	prometheus.MustRegister(PipelineProcessDuration)
	prometheus.MustRegister(DeadLettersTotal)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	pipelineMetricsRegistered = true
}
