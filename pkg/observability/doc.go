// Package observability wires logging, metrics, tracing, health checks and
// the server lifecycle.
//
// Logging uses logrus with the JSON formatter; FromContext decorates a logger
// with the request id, user id and trace ids carried by a request context.
//
// Metrics registers the Prometheus collectors served on /metrics. Metrics and
// OTelMetrics both implement the storage observer hook, and StoreObservers
// feeds one store into several observers. InitOTel installs the OTLP trace and
// metric exporters when enabled.
//
// HealthChecker answers /health, /health/live and /health/ready. Lifecycle
// runs the API and health servers in an errgroup and shuts them down when the
// context ends.
package observability
