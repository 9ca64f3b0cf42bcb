package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Database metrics
	DBQueriesTotal    *prometheus.CounterVec
	DBQueryDuration   *prometheus.HistogramVec
	DBConnectionsOpen prometheus.Gauge
	DBConnectionsIdle prometheus.Gauge

	// Auth metrics
	AuthAttemptsTotal    *prometheus.CounterVec
	AdminCacheHitsTotal  prometheus.Counter
	AdminCacheMissTotal  prometheus.Counter
	DirectoryCallsTotal  *prometheus.CounterVec
	DirectoryCallLatency prometheus.Histogram

	// Business metrics
	KegInstallsTotal prometheus.Counter
	PoursTotal       prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taplist_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taplist_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		DBQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taplist_db_queries_total",
				Help: "Total number of database statements executed",
			},
			[]string{"operation", "status"},
		),
		DBQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taplist_db_query_duration_seconds",
				Help:    "Database statement duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "taplist_db_connections_open",
				Help: "Open database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "taplist_db_connections_idle",
				Help: "Idle database connections",
			},
		),

		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taplist_auth_attempts_total",
				Help: "Authentication attempts by scheme and outcome",
			},
			[]string{"scheme", "outcome"},
		),
		AdminCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taplist_admin_cache_hits_total",
				Help: "Admin membership cache hits",
			},
		),
		AdminCacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taplist_admin_cache_misses_total",
				Help: "Admin membership cache misses",
			},
		),
		DirectoryCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taplist_directory_calls_total",
				Help: "Directory graph calls by outcome",
			},
			[]string{"status"},
		),
		DirectoryCallLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "taplist_directory_call_duration_seconds",
				Help:    "Directory graph call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		KegInstallsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taplist_keg_installs_total",
				Help: "Successful keg install transitions",
			},
		),
		PoursTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taplist_pours_total",
				Help: "Pour sessions recorded",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DBQueriesTotal,
		m.DBQueryDuration,
		m.DBConnectionsOpen,
		m.DBConnectionsIdle,
		m.AuthAttemptsTotal,
		m.AdminCacheHitsTotal,
		m.AdminCacheMissTotal,
		m.DirectoryCallsTotal,
		m.DirectoryCallLatency,
		m.KegInstallsTotal,
		m.PoursTotal,
	)

	return m
}

// RecordAuthAttempt records an authentication attempt outcome
func (m *Metrics) RecordAuthAttempt(scheme string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.AuthAttemptsTotal.WithLabelValues(scheme, outcome).Inc()
}

// RecordDBQuery records a database statement outcome and duration
func (m *Metrics) RecordDBQuery(operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.DBQueriesTotal.WithLabelValues(operation, status).Inc()
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordDirectoryCall records a directory graph call outcome and duration
func (m *Metrics) RecordDirectoryCall(err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.DirectoryCallsTotal.WithLabelValues(status).Inc()
	m.DirectoryCallLatency.Observe(duration.Seconds())
}

// HTTPMiddleware instruments HTTP handlers with request metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration.Seconds())
	})
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler returns an HTTP handler serving the registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
