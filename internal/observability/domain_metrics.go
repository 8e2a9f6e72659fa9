package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	completionAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptchart_completion_attempts_total",
			Help: "Completion service calls by outcome (ok, error, malformed).",
		},
		[]string{"outcome"},
	)
	completionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "promptchart_completion_latency_ms",
			Help:    "Completion latency in milliseconds across all attempts.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
		},
	)
	completionCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptchart_completion_cache_total",
			Help: "Generated query cache lookups by result (hit, miss).",
		},
		[]string{"result"},
	)
	validationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptchart_validation_failures_total",
			Help: "Generated queries rejected by the validator, by rule.",
		},
		[]string{"rule"},
	)
	queryLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptchart_query_latency_ms",
			Help:    "Relational store query latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 15000},
		},
		[]string{"outcome"},
	)
	chartsRenderedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptchart_charts_rendered_total",
			Help: "Chart payloads produced, by chart type.",
		},
		[]string{"type"},
	)
	replayItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptchart_replay_items_total",
			Help: "Pinned query replays by outcome (ok, failed, timeout).",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		completionAttemptsTotal,
		completionLatencyMs,
		completionCacheTotal,
		validationFailuresTotal,
		queryLatencyMs,
		chartsRenderedTotal,
		replayItemsTotal,
	)
}

func IncrementCompletionAttempt(outcome string) {
	completionAttemptsTotal.WithLabelValues(outcome).Inc()
}

func ObserveCompletionLatency(elapsed time.Duration) {
	completionLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveCompletionCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	completionCacheTotal.WithLabelValues(result).Inc()
}

func IncrementValidationFailure(rule string) {
	if rule == "" {
		rule = "unknown"
	}
	validationFailuresTotal.WithLabelValues(rule).Inc()
}

func ObserveQuery(elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	queryLatencyMs.WithLabelValues(outcome).Observe(float64(elapsed.Milliseconds()))
}

func IncrementChartRendered(chartType string) {
	chartsRenderedTotal.WithLabelValues(chartType).Inc()
}

func IncrementReplayItem(outcome string) {
	replayItemsTotal.WithLabelValues(outcome).Inc()
}
