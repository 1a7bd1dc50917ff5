// Package metrics exposes Prometheus counters for data loading, LLM calls
// and the web UI.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "keiba"

// Data load sources.
const (
	SourceRemote   = "remote"
	SourceFallback = "fallback"
	SourceUpload   = "upload"
	SourceFailed   = "unavailable"
	SourceCached   = "cached"
)

// Manager owns the collectors registered on one registry.
type Manager struct {
	registry *prometheus.Registry

	dataLoads       *prometheus.CounterVec
	scoredEntries   prometheus.Counter
	unscoredEntries prometheus.Counter
	llmCalls        *prometheus.CounterVec
	llmLatency      prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

var globalManager = NewManager(prometheus.NewRegistry()) //nolint:gochecknoglobals // process-wide metrics

// NewManager registers all collectors on reg.
func NewManager(reg *prometheus.Registry) *Manager {
	auto := promauto.With(reg)
	m := &Manager{registry: reg}
	m.dataLoads = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "data",
		Name:      "loads_total",
		Help:      "Race card loads by source.",
	}, []string{"source"})
	m.scoredEntries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scoring",
		Name:      "entries_scored_total",
		Help:      "Entries that received a composite score.",
	})
	m.unscoredEntries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scoring",
		Name:      "entries_unscored_total",
		Help:      "Entries with no recognized metrics.",
	})
	m.llmCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "Completion calls by outcome.",
	}, []string{"outcome"})
	m.llmLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "latency_seconds",
		Help:      "Completion call latency.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 90},
	})
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})
	m.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
	reg.MustRegister(collectors.NewGoCollector())
	return m
}

// Handler serves the process-wide registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(globalManager.registry, promhttp.HandlerOpts{})
}

// RecordDataLoad counts a race card load from source.
func RecordDataLoad(source string) {
	globalManager.dataLoads.WithLabelValues(source).Inc()
}

// RecordScored counts scored and unscored entries of one scoring pass.
func RecordScored(scored, unscored int) {
	globalManager.scoredEntries.Add(float64(scored))
	globalManager.unscoredEntries.Add(float64(unscored))
}

// RecordLLMCall counts a completion call and its latency.
func RecordLLMCall(outcome string, seconds float64) {
	globalManager.llmCalls.WithLabelValues(outcome).Inc()
	globalManager.llmLatency.Observe(seconds)
}

// RecordHTTPRequest counts a served request.
func RecordHTTPRequest(route, method, status string, seconds float64) {
	globalManager.httpRequests.WithLabelValues(route, method, status).Inc()
	globalManager.httpDuration.WithLabelValues(route, method).Observe(seconds)
}

// DataLoads returns the collector for tests and diagnostics.
func DataLoads() *prometheus.CounterVec { return globalManager.dataLoads }

// LLMCalls returns the collector for tests and diagnostics.
func LLMCalls() *prometheus.CounterVec { return globalManager.llmCalls }
