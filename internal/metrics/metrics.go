package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the co-pilot's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	draftsGenerated *prometheus.CounterVec
	tonesDetected   *prometheus.CounterVec
	fallbacks       prometheus.Counter
	chunksIndexed   prometheus.Counter
	draftLatency    prometheus.Histogram
	contextChunks   prometheus.Histogram
	httpRequests    *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: reg,
		draftsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drafts_generated_total",
			Help:      "Draft responses generated, by model.",
		}, []string{"model"}),
		tonesDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tones_detected_total",
			Help:      "Customer tones detected, by tone.",
		}, []string{"tone"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_fallbacks_total",
			Help:      "Drafts that fell back to the apology response.",
		}),
		chunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "knowledge_chunks_indexed_total",
			Help:      "Knowledge base chunks uploaded to the vector store.",
		}),
		draftLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "draft_duration_seconds",
			Help:      "End-to-end draft generation latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		contextChunks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "draft_context_chunks",
			Help:      "Knowledge base chunks used per draft.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status.",
		}, []string{"method", "status"}),
	}
	reg.MustRegister(m.draftsGenerated, m.tonesDetected, m.fallbacks, m.chunksIndexed,
		m.draftLatency, m.contextChunks, m.httpRequests)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveDraft(model string, contextUsed int, elapsed time.Duration, fallback bool) {
	m.draftsGenerated.WithLabelValues(model).Inc()
	m.contextChunks.Observe(float64(contextUsed))
	m.draftLatency.Observe(elapsed.Seconds())
	if fallback {
		m.fallbacks.Inc()
	}
}

func (m *Metrics) ObserveTone(tone string) {
	m.tonesDetected.WithLabelValues(tone).Inc()
}

func (m *Metrics) ObserveIndexed(n int) {
	m.chunksIndexed.Add(float64(n))
}

func (m *Metrics) ObserveRequest(method string, status int) {
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
