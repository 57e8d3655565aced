package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SourcesConnected tracks the number of sources currently in the
	// Connected state, refreshed by housekeeping and on every transition.
	SourcesConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sourcehub_sources_connected",
			Help: "Number of sources currently connected",
		},
	)

	// SourceStatus publishes one gauge per (kind, state), set to 1 for the
	// current state and 0 for the others.
	SourceStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sourcehub_source_status",
			Help: "Current status of each source, one series per state",
		},
		[]string{"kind", "state"},
	)

	// SearchDuration tracks fan-out search latency.
	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sourcehub_search_duration_seconds",
			Help:    "searchAcrossSources duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ToolCallDuration tracks per-source tools/call latency.
	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sourcehub_tool_call_duration_seconds",
			Help:    "callTool duration in seconds, by source kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// ToolCalls tracks MCP tool invocations, kept from the teacher almost
	// as-is with "tool" relabeled to "kind:tool" scope.
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcehub_tool_calls_total",
			Help: "Total number of MCP tool calls",
		},
		[]string{"kind", "tool", "status"},
	)

	// SearchResultsTotal tracks how many merged results a search produced.
	SearchResultsTotal = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sourcehub_search_results_count",
			Help:    "Number of results returned per searchAcrossSources call",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordToolCall records an MCP tool invocation and its latency.
func RecordToolCall(kind, tool, status string, durationSeconds float64) {
	ToolCalls.WithLabelValues(kind, tool, status).Inc()
	ToolCallDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordSearch records one fan-out search's latency and result count.
func RecordSearch(durationSeconds float64, resultCount int) {
	SearchDuration.Observe(durationSeconds)
	SearchResultsTotal.Observe(float64(resultCount))
}

// SetSourcesConnected sets the connected-source gauge.
func SetSourcesConnected(count int) {
	SourcesConnected.Set(float64(count))
}

// states lists every ServerStatus tag, used to zero out the other state
// gauges whenever one kind's status transitions.
var states = []string{"disconnected", "connecting", "connected", "error"}

// SetSourceStatus marks kind as currently in state, zeroing its other
// state series so a dashboard can graph "current state" as a step
// function without stacking stale 1s.
func SetSourceStatus(kind, state string) {
	for _, s := range states {
		if s == state {
			SourceStatus.WithLabelValues(kind, s).Set(1)
		} else {
			SourceStatus.WithLabelValues(kind, s).Set(0)
		}
	}
}
