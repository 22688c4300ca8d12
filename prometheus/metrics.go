package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "center_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Resource mutation counter
	ResourceOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "center_resource_operations_total",
			Help: "Total number of resource mutations",
		},
		[]string{"resource", "operation"}, // resource: "user", "student", "group"
	)

	// Quota rejection counter
	QuotaExceededCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "center_quota_exceeded_total",
			Help: "Total number of mutations rejected by plan quotas",
		},
		[]string{"resource"},
	)

	// Group capacity rejection counter
	CapacityExceededCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "center_capacity_exceeded_total",
			Help: "Total number of enrollments rejected by group capacity",
		},
	)

	// Enrollment operation counter
	EnrollmentCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "center_enrollment_operations_total",
			Help: "Total number of enrollment operations",
		},
		[]string{"operation"}, // "assign", "remove"
	)

	// Login counter
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "center_login_total",
			Help: "Total number of login attempts",
		},
	)

	// Registration counter
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "center_register_total",
			Help: "Total number of center registrations",
		},
	)

	// Error counter
	ErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "center_errors_total",
			Help: "Total number of request errors",
		},
		[]string{"type"}, // "unauthorized", "not_found", "quota_exceeded", ...
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "center_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "center_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "query", "insert", "update", "delete"
	)
)

// InitMetrics registers all metrics with the prometheus registry
func InitMetrics() {
	prometheus.MustRegister(
		HTTPRequestCounter,
		ResourceOperationCounter,
		QuotaExceededCounter,
		CapacityExceededCounter,
		EnrollmentCounter,
		LoginCounter,
		RegisterCounter,
		ErrorCounter,
		RequestDuration,
		DBOperationDuration,
	)
}

// RecordResourceOperation increments the mutation counter
func RecordResourceOperation(resource, operation string) {
	ResourceOperationCounter.WithLabelValues(resource, operation).Inc()
}

// RecordQuotaExceeded increments the quota rejection counter
func RecordQuotaExceeded(resource string) {
	QuotaExceededCounter.WithLabelValues(resource).Inc()
}

// RecordEnrollment increments the enrollment operation counter
func RecordEnrollment(operation string) {
	EnrollmentCounter.WithLabelValues(operation).Inc()
}

// RecordError increments the error counter
func RecordError(errType string) {
	ErrorCounter.WithLabelValues(errType).Inc()
}

// TrackDBOperation returns a function that records the duration of a
// database operation when called. Use with defer:
//
//	defer prometheus.TrackDBOperation("query")(time.Now())
func TrackDBOperation(operation string) func(time.Time) {
	return func(start time.Time) {
		DBOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// Middleware creates an Echo middleware that records request metrics
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := strconv.Itoa(c.Response().Status)
			method := c.Request().Method
			path := c.Path()

			HTTPRequestCounter.WithLabelValues(path, method, status).Inc()
			RequestDuration.WithLabelValues(path, method, status).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// GetPrometheusHandler returns an HTTP handler for exposing metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}
