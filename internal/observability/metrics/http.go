package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchesTotal       *prometheus.CounterVec
	searchDuration      *prometheus.HistogramVec
	searchResults       *prometheus.HistogramVec
	qualityScore        *prometheus.HistogramVec
	cacheTotal          *prometheus.CounterVec
	enrichmentTotal     *prometheus.CounterVec
	externalUsedTotal   *prometheus.CounterVec
	workspaceFailsTotal *prometheus.CounterVec
}

// SearchObservation is one completed pipeline run as seen by a transport.
type SearchObservation struct {
	ResultCount         int
	QualityScore        float64
	CacheHit            bool
	EnrichmentTriggered bool
	ExternalSearchUsed  bool
	FailedWorkspaces    int
	Duration            time.Duration
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kgw",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kgw",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kgw",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kgw",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total search pipeline runs by transport and status.",
		},
		[]string{"service", "transport", "status"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kgw",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "transport"},
	)
	searchResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kgw",
			Subsystem: "search",
			Name:      "results_returned",
			Help:      "Distribution of results per search response.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "transport"},
	)
	qualityScore := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kgw",
			Subsystem: "search",
			Name:      "quality_score",
			Help:      "Distribution of evaluator quality scores.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service"},
	)
	cacheTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kgw",
			Subsystem: "search",
			Name:      "cache_total",
			Help:      "Result cache lookups by outcome.",
		},
		[]string{"service", "outcome"},
	)
	enrichmentTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kgw",
			Subsystem: "search",
			Name:      "enrichment_triggered_total",
			Help:      "Total searches whose quality gate triggered enrichment.",
		},
		[]string{"service"},
	)
	externalUsedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kgw",
			Subsystem: "search",
			Name:      "external_search_used_total",
			Help:      "Total searches that returned external provider results.",
		},
		[]string{"service"},
	)
	workspaceFailsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kgw",
			Subsystem: "search",
			Name:      "workspace_failures_total",
			Help:      "Total workspace retrieval failures absorbed by the pipeline.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchesTotal,
		searchDuration,
		searchResults,
		qualityScore,
		cacheTotal,
		enrichmentTotal,
		externalUsedTotal,
		workspaceFailsTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		searchesTotal:       searchesTotal,
		searchDuration:      searchDuration,
		searchResults:       searchResults,
		qualityScore:        qualityScore,
		cacheTotal:          cacheTotal,
		enrichmentTotal:     enrichmentTotal,
		externalUsedTotal:   externalUsedTotal,
		workspaceFailsTotal: workspaceFailsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordSearch(service, transport string, obs SearchObservation) {
	m.searchesTotal.WithLabelValues(service, transport, "ok").Inc()
	m.searchDuration.WithLabelValues(service, transport).Observe(obs.Duration.Seconds())
	m.searchResults.WithLabelValues(service, transport).Observe(float64(obs.ResultCount))
	m.qualityScore.WithLabelValues(service).Observe(obs.QualityScore)

	outcome := "miss"
	if obs.CacheHit {
		outcome = "hit"
	}
	m.cacheTotal.WithLabelValues(service, outcome).Inc()

	if obs.EnrichmentTriggered {
		m.enrichmentTotal.WithLabelValues(service).Inc()
	}
	if obs.ExternalSearchUsed {
		m.externalUsedTotal.WithLabelValues(service).Inc()
	}
	if obs.FailedWorkspaces > 0 {
		m.workspaceFailsTotal.WithLabelValues(service).Add(float64(obs.FailedWorkspaces))
	}
}

func (m *HTTPServerMetrics) RecordSearchRejected(service, transport, status string) {
	if status == "" {
		status = "error"
	}
	m.searchesTotal.WithLabelValues(service, transport, status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
