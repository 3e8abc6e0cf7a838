// Package metrics holds the Prometheus collectors of the explorer processes.
package metrics

import (
	"net/http"
	"time"

	"github.com/OFFIS-RIT/graph-explorer/pkg/ai"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graph_explorer"

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	materializeTotal    *prometheus.CounterVec
	materializeDuration *prometheus.HistogramVec
	subgraphNodes       prometheus.Histogram
	subgraphLinks       prometheus.Histogram

	statsLookups       *prometheus.CounterVec
	statsComputations  *prometheus.CounterVec
	statsComputeTiming prometheus.Histogram

	llmTokens *prometheus.CounterVec

	ingestTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry that also exports
// Go runtime and process metrics.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.materializeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "materialize_requests_total",
			Help:      "Total number of subgraph materializations",
		},
		[]string{"dataset", "status"},
	)
	m.materializeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "materialize_duration_seconds",
			Help:      "Duration of subgraph materializations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"dataset"},
	)
	m.subgraphNodes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "subgraph_nodes",
		Help:      "Number of nodes returned per materialized subgraph",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
	})
	m.subgraphLinks = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "subgraph_links",
		Help:      "Number of links returned per materialized subgraph",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
	})

	m.statsLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_cache_lookups_total",
			Help:      "Graph statistics cache lookups by result",
		},
		[]string{"result"},
	)
	m.statsComputations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_computations_total",
			Help:      "Graph statistics aggregations by status",
		},
		[]string{"status"},
	)
	m.statsComputeTiming = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stats_compute_duration_seconds",
		Help:      "Duration of graph statistics aggregations",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	m.llmTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Language model tokens by direction",
		},
		[]string{"direction"},
	)

	m.ingestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_messages_total",
			Help:      "Processed ingest messages by status",
		},
		[]string{"status"},
	)

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.materializeTotal,
		m.materializeDuration,
		m.subgraphNodes,
		m.subgraphLinks,
		m.statsLookups,
		m.statsComputations,
		m.statsComputeTiming,
		m.llmTokens,
		m.ingestTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveMaterialize(dataset string, d time.Duration, nodes, links int, err error) {
	if m == nil {
		return
	}
	m.materializeTotal.WithLabelValues(dataset, status(err)).Inc()
	m.materializeDuration.WithLabelValues(dataset).Observe(d.Seconds())
	if err == nil {
		m.subgraphNodes.Observe(float64(nodes))
		m.subgraphLinks.Observe(float64(links))
	}
}

// StatsLookup matches stats.CacheParams.OnLookup.
func (m *Metrics) StatsLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.statsLookups.WithLabelValues(result).Inc()
}

// StatsCompute matches stats.CacheParams.OnCompute.
func (m *Metrics) StatsCompute(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.statsComputations.WithLabelValues(status(err)).Inc()
	m.statsComputeTiming.Observe(d.Seconds())
}

// RecordTokens matches the metrics hook of the AI clients.
func (m *Metrics) RecordTokens(mm ai.ModelMetrics) {
	if m == nil {
		return
	}
	m.llmTokens.WithLabelValues("input").Add(float64(mm.InputTokens))
	m.llmTokens.WithLabelValues("output").Add(float64(mm.OutputTokens))
}

func (m *Metrics) ObserveIngest(err error) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(status(err)).Inc()
}
