package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	gatherer prometheus.Gatherer

	cacheLookups    *prometheus.CounterVec
	cacheWrites     *prometheus.CounterVec
	sourceQueries   *prometheus.CounterVec
	sourceDuration  *prometheus.HistogramVec
	providerCalls   *prometheus.CounterVec
	providerCost    prometheus.Counter
	providerLatency prometheus.Histogram
	searches        *prometheus.CounterVec
	searchDuration  prometheus.Histogram
	coalesced       prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpActive      prometheus.Gauge
}

var latencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// New registers all collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vendorsearch_cache_lookups_total",
			Help: "Cache lookups per generation and result",
		}, []string{"generation", "result"}),
		cacheWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vendorsearch_cache_writes_total",
			Help: "Background cache writes by outcome",
		}, []string{"outcome"}),
		sourceQueries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vendorsearch_source_queries_total",
			Help: "Internal source queries by source and outcome",
		}, []string{"source", "outcome"}),
		sourceDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vendorsearch_source_duration_seconds",
			Help:    "Internal source query latency",
			Buckets: latencyBuckets,
		}, []string{"source"}),
		providerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vendorsearch_provider_calls_total",
			Help: "External provider calls by outcome",
		}, []string{"outcome"}),
		providerCost: f.NewCounter(prometheus.CounterOpts{
			Name: "vendorsearch_provider_cost_dollars_total",
			Help: "Cumulative external provider spend in dollars",
		}),
		providerLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vendorsearch_provider_duration_seconds",
			Help:    "External provider call latency",
			Buckets: latencyBuckets,
		}),
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vendorsearch_searches_total",
			Help: "Searches served by result source",
		}, []string{"source"}),
		searchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vendorsearch_search_duration_seconds",
			Help:    "End-to-end search latency",
			Buckets: latencyBuckets,
		}),
		coalesced: f.NewCounter(prometheus.CounterOpts{
			Name: "vendorsearch_coalesced_misses_total",
			Help: "Cache misses that attached to an in-flight resolution",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vendorsearch_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vendorsearch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: latencyBuckets,
		}, []string{"method", "path"}),
		httpActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "vendorsearch_http_active_requests",
			Help: "Number of in-flight HTTP requests",
		}),
	}
}

func (m *Metrics) CacheLookup(generation, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(generation, result).Inc()
}

func (m *Metrics) CacheWrite(outcome string) {
	if m == nil {
		return
	}
	m.cacheWrites.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SourceQuery(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.sourceQueries.WithLabelValues(source, outcome).Inc()
	m.sourceDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) ProviderCall(outcome string, cost float64, d time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(outcome).Inc()
	if cost > 0 {
		m.providerCost.Add(cost)
	}
	m.providerLatency.Observe(d.Seconds())
}

func (m *Metrics) Search(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(source).Inc()
	m.searchDuration.Observe(d.Seconds())
}

func (m *Metrics) Coalesced() {
	if m == nil {
		return
	}
	m.coalesced.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency for next.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		m.httpActive.Inc()
		defer m.httpActive.Dec()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		m.httpRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(sw.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
