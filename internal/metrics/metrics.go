// Package metrics provides Prometheus metrics for the blockdeck server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockdeck_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blockdeck_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Registry metrics
	registryBlocks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blockdeck_registry_blocks",
			Help: "Number of blocks in the loaded registry manifest",
		},
	)

	// Content source metrics
	sourceOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blockdeck_source_operation_duration_seconds",
			Help:    "Content source operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	sourceOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockdeck_source_operations_total",
			Help: "Total content source operations",
		},
		[]string{"operation", "status"},
	)

	// Preview pipeline metrics
	previewSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blockdeck_preview_sessions_active",
			Help: "Number of open block preview sessions",
		},
	)

	previewFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockdeck_preview_fetches_total",
			Help: "Total preview content fetches",
		},
		[]string{"status"},
	)

	highlightFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blockdeck_highlight_failures_total",
			Help: "Syntax highlighting failures (fell back to plain text)",
		},
	)

	staleResultsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blockdeck_preview_stale_results_discarded_total",
			Help: "Completed fetches discarded because a newer file was selected",
		},
	)

	// Marketplace metrics
	templateDownloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blockdeck_template_downloads_total",
			Help: "Total template downloads recorded",
		},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blockdeck_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	// Diagram generator metrics
	diagramRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockdeck_diagram_requests_total",
			Help: "Total AI diagram generation requests",
		},
		[]string{"status"},
	)

	diagramRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "blockdeck_diagram_request_duration_seconds",
			Help:    "AI diagram generation duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	// SSE metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blockdeck_sse_connections_active",
			Help: "Number of active SSE preview subscribers",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetRegistryBlocks sets the loaded registry size.
func SetRegistryBlocks(count int64) {
	registryBlocks.Set(float64(count))
}

// RecordSourceOperation records a content source operation.
func RecordSourceOperation(operation string, duration time.Duration, success bool) {
	sourceOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	sourceOperationsTotal.WithLabelValues(operation, status).Inc()
}

// SetPreviewSessionsActive sets the open preview session count.
func SetPreviewSessionsActive(count int64) {
	previewSessionsActive.Set(float64(count))
}

// RecordPreviewFetch records a preview content fetch.
func RecordPreviewFetch(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	previewFetchesTotal.WithLabelValues(status).Inc()
}

// RecordHighlightFailure records a syntax highlighting fallback.
func RecordHighlightFailure() {
	highlightFailuresTotal.Inc()
}

// RecordStaleResultDiscarded records a late fetch result thrown away.
func RecordStaleResultDiscarded() {
	staleResultsDiscarded.Inc()
}

// RecordTemplateDownload records a marketplace template download.
func RecordTemplateDownload() {
	templateDownloadsTotal.Inc()
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// RecordDiagramRequest records an AI diagram generation attempt.
func RecordDiagramRequest(duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	diagramRequestsTotal.WithLabelValues(status).Inc()
	diagramRequestDuration.Observe(duration.Seconds())
}

// SetSSEConnectionsActive sets the active SSE subscriber count.
func SetSSEConnectionsActive(count int64) {
	sseConnectionsActive.Set(float64(count))
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through to the underlying writer so SSE streams keep
// working behind the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
