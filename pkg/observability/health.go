package observability

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/solarpro/erp/pkg/httputil"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ErrDegraded marks a probe failure that leaves the service usable
var ErrDegraded = errors.New("degraded")

// Probe checks one dependency. Returning an error wrapping ErrDegraded
// reports the dependency as degraded rather than unhealthy.
type Probe func(ctx context.Context) error

type probe struct {
	name     string
	critical bool
	check    Probe
}

// HealthChecker runs the registered probes for the readiness endpoint
type HealthChecker struct {
	version string
	probes  []probe
}

// NewHealthChecker creates a checker with no probes
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{version: version}
}

// Require adds a probe whose failure makes the service unhealthy
func (h *HealthChecker) Require(name string, check Probe) *HealthChecker {
	h.probes = append(h.probes, probe{name: name, critical: true, check: check})
	return h
}

// Optional adds a probe whose failure only degrades the service
func (h *HealthChecker) Optional(name string, check Probe) *HealthChecker {
	h.probes = append(h.probes, probe{name: name, check: check})
	return h
}

// HealthStatus is the readiness report
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus is one probe's result
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Check runs every probe in registration order
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	report := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus, len(h.probes)),
	}

	for _, p := range h.probes {
		dep := runProbe(ctx, p.check)
		report.Dependencies[p.name] = dep
		switch {
		case dep.Status == StatusHealthy:
		case dep.Status == StatusUnhealthy && p.critical:
			report.Status = StatusUnhealthy
		case report.Status == StatusHealthy:
			report.Status = StatusDegraded
		}
	}
	return report
}

func runProbe(ctx context.Context, check Probe) DependencyStatus {
	start := time.Now()
	err := check(ctx)
	dep := DependencyStatus{Status: StatusHealthy, Latency: time.Since(start), Timestamp: start}
	switch {
	case err == nil:
	case errors.Is(err, ErrDegraded):
		dep.Status = StatusDegraded
		dep.Message = err.Error()
	default:
		dep.Status = StatusUnhealthy
		dep.Message = err.Error()
	}
	return dep
}

// Liveness always answers 200 while the process serves requests
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	_ = httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness answers 503 only when a required probe fails
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report := h.Check(ctx)
	code := http.StatusOK
	if report.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	_ = httputil.WriteJSON(w, code, report)
}

// DatabaseProbe pings db and runs SELECT 1. A saturated pool is degraded.
func DatabaseProbe(db *sql.DB) Probe {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		var one int
		if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		if stats := db.Stats(); stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
			return fmt.Errorf("connection pool exhausted: %w", ErrDegraded)
		}
		return nil
	}
}

// RedisProbe pings client
func RedisProbe(client *redis.Client) Probe {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// RegisterHealthRoutes registers /health, /health/live and /health/ready
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health", checker.Readiness)
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
}
