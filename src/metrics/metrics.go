// Package metrics provides Prometheus metrics for the uploads API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploads_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uploads_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Tree operation metrics
	treeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploads_tree_operations_total",
			Help: "Total recursive tree operations by outcome",
		},
		[]string{"operation", "status"},
	)

	treeItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploads_tree_items_processed_total",
			Help: "Entries processed by recursive tree operations",
		},
		[]string{"operation"},
	)

	treeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploads_tree_entry_errors_total",
			Help: "Per-entry failures reported by recursive tree operations",
		},
		[]string{"operation"},
	)

	treeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uploads_tree_operation_duration_seconds",
			Help:    "Recursive tree operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Upload metrics
	uploadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uploads_bytes_uploaded_total",
			Help: "Total bytes written by uploads",
		},
	)

	uploadBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploads_upload_batches_total",
			Help: "Upload batches by outcome",
		},
		[]string{"status"},
	)

	// Blob bridge metrics
	blobOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploads_blob_operations_total",
			Help: "Blob store operations by provider and outcome",
		},
		[]string{"provider", "operation", "status"},
	)

	blobOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uploads_blob_operation_duration_seconds",
			Help:    "Blob store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	markersRepaired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uploads_markers_repaired_total",
			Help: "Protective marker files recreated by the repair job",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordTreeOperation records the outcome of a recursive operation.
func RecordTreeOperation(operation string, processed, errors int, success bool, duration time.Duration) {
	treeOperationsTotal.WithLabelValues(operation, status(success)).Inc()
	treeItemsTotal.WithLabelValues(operation).Add(float64(processed))
	treeErrorsTotal.WithLabelValues(operation).Add(float64(errors))
	treeOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordUploadBatch records an upload batch and the bytes it wrote.
func RecordUploadBatch(bytes int64, success bool) {
	uploadedBytes.Add(float64(bytes))
	uploadBatchesTotal.WithLabelValues(status(success)).Inc()
}

// RecordBlobOperation records a call against the external blob store.
func RecordBlobOperation(provider, operation string, duration time.Duration, success bool) {
	blobOperationsTotal.WithLabelValues(provider, operation, status(success)).Inc()
	blobOperationDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordMarkersRepaired adds to the repaired marker counter.
func RecordMarkersRepaired(n int) {
	markersRepaired.Add(float64(n))
}

// GinMiddleware records request metrics using the matched route template
// so that path parameters do not explode label cardinality.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
