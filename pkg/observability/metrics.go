package observability

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solarpro/erp/pkg/storage"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec
	StorageErrorsTotal       *prometheus.CounterVec

	// Database pool metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge

	// Business metrics
	SettingsOperationsTotal *prometheus.CounterVec
	AuthzDenialsTotal       *prometheus.CounterVec
	AuthEventsTotal         *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solarpro_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solarpro_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solarpro_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),

		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solarpro_storage_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"operation", "collection", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solarpro_storage_operation_duration_seconds",
				Help:    "Storage operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation", "collection"},
		),
		StorageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solarpro_storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"operation", "collection", "error_type"},
		),

		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "solarpro_db_connections_open",
			Help: "Number of open database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "solarpro_db_connections_in_use",
			Help: "Number of database connections in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "solarpro_db_connections_idle",
			Help: "Number of idle database connections",
		}),

		SettingsOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solarpro_settings_operations_total",
				Help: "Total number of settings registry operations",
			},
			[]string{"kind", "operation", "outcome"},
		),
		AuthzDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solarpro_authz_denials_total",
				Help: "Total number of requests rejected by a role gate",
			},
			[]string{"route", "role"},
		),
		AuthEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solarpro_auth_events_total",
				Help: "Total number of sign-up, sign-in and sign-out attempts",
			},
			[]string{"action", "outcome"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.StorageErrorsTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.SettingsOperationsTotal,
		m.AuthzDenialsTotal,
		m.AuthEventsTotal,
	)

	return m
}

// ObserveStoreOperation records one storage call.
func (m *Metrics) ObserveStoreOperation(operation, collection string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.StorageErrorsTotal.WithLabelValues(operation, collection, storageErrorType(err)).Inc()
	}
	m.StorageOperationsTotal.WithLabelValues(operation, collection, status).Inc()
	m.StorageOperationDuration.WithLabelValues(operation, collection).Observe(duration.Seconds())
}

func storageErrorType(err error) string {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, storage.ErrConflict):
		return "conflict"
	}
	return "other"
}

// RecordSettingsOperation counts one settings registry call.
func (m *Metrics) RecordSettingsOperation(kind, operation, outcome string) {
	m.SettingsOperationsTotal.WithLabelValues(kind, operation, outcome).Inc()
}

// RecordDenial counts one request rejected by a role gate.
func (m *Metrics) RecordDenial(route, role string) {
	if role == "" {
		role = "none"
	}
	m.AuthzDenialsTotal.WithLabelValues(route, role).Inc()
}

// RecordAuthEvent counts one authentication attempt.
func (m *Metrics) RecordAuthEvent(action, outcome string) {
	m.AuthEventsTotal.WithLabelValues(action, outcome).Inc()
}

// CollectDBStats copies the pool statistics of db into the gauges.
func (m *Metrics) CollectDBStats(db *sql.DB) {
	stats := db.Stats()
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// RouteLabel returns the route template matched by mux, or the raw path.
func RouteLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := RouteLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
