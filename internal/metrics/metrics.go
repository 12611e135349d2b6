package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptovault",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cryptovault",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	uploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptovault",
		Name:      "uploads_total",
		Help:      "Upload attempts by result.",
	}, []string{"result"})

	bytesStored = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cryptovault",
		Name:      "stored_bytes_total",
		Help:      "Ciphertext bytes accepted into tenant storage.",
	})

	quotaRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cryptovault",
		Name:      "quota_rejections_total",
		Help:      "Uploads refused by quota admission.",
	})

	dataInconsistencies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptovault",
		Name:      "data_inconsistencies_total",
		Help:      "Metadata records whose blob is missing or has the wrong size.",
	}, []string{"kind"})

	orphansRemoved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cryptovault",
		Name:      "orphans_removed_total",
		Help:      "Blobs removed because no metadata references them.",
	})

	registerOnce sync.Once
)

// InitMetrics registers collectors with the default registry. Safe to call repeatedly.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			uploads,
			bytesStored,
			quotaRejections,
			dataInconsistencies,
			orphansRemoved,
		)
	})
}

// Middleware records request counts and latency.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// UploadAccepted counts a committed upload of size bytes.
func UploadAccepted(size int64) {
	uploads.WithLabelValues("accepted").Inc()
	bytesStored.Add(float64(size))
}

// UploadFailed counts an upload that did not commit.
func UploadFailed(reason string) {
	uploads.WithLabelValues(reason).Inc()
}

// QuotaRejected counts a quota admission refusal.
func QuotaRejected() {
	quotaRejections.Inc()
}

// DataInconsistency counts a metadata/blob mismatch of the given kind.
func DataInconsistency(kind string) {
	dataInconsistencies.WithLabelValues(kind).Inc()
}

// OrphansRemoved counts blobs deleted by the reconciliation sweep.
func OrphansRemoved(n int) {
	orphansRemoved.Add(float64(n))
}
