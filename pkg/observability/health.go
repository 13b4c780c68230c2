package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// Version is stamped at build time with -ldflags
var Version = "dev"

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const readinessTimeout = 5 * time.Second

// ErrDegraded wraps a check failure that leaves the component usable
var ErrDegraded = errors.New("degraded")

// CheckFunc returns nil when the component is usable
type CheckFunc func(ctx context.Context) error

type component struct {
	name     string
	required bool
	check    CheckFunc
}

// HealthChecker backs /healthz and /readyz. Postgres is required. Redis only
// holds cached permission sets and rate-limit windows, so losing it degrades
// readiness without failing it.
type HealthChecker struct {
	components []component
}

// NewHealthChecker registers the database and, when rdb is set, Redis
func NewHealthChecker(db *sql.DB, rdb *redis.Client) *HealthChecker {
	h := &HealthChecker{}
	if db != nil {
		h.Register("database", true, databaseCheck(db))
	}
	if rdb != nil {
		h.Register("redis", false, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	return h
}

// Register adds a named component to readiness
func (h *HealthChecker) Register(name string, required bool, check CheckFunc) {
	h.components = append(h.components, component{name: name, required: required, check: check})
}

// HealthStatus is the readiness report
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus is one component's line in the report
type DependencyStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Liveness answers 200 without touching any dependency
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, map[string]interface{}{
		"status":    StatusHealthy,
		"version":   Version,
		"timestamp": time.Now().UTC(),
	})
}

// Readiness answers 503 only when a required component is down
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, status)
}

// Check runs every registered component in order
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	report := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now().UTC(),
		Version:      Version,
		Dependencies: make(map[string]DependencyStatus, len(h.components)),
	}

	for _, c := range h.components {
		start := time.Now()
		err := c.check(ctx)
		dep := DependencyStatus{
			Status:    StatusHealthy,
			LatencyMS: time.Since(start).Milliseconds(),
			Timestamp: start.UTC(),
		}

		switch {
		case err == nil:
		case errors.Is(err, ErrDegraded):
			dep.Status = StatusDegraded
			dep.Message = err.Error()
			report.Status = worse(report.Status, StatusDegraded)
		default:
			dep.Status = StatusUnhealthy
			dep.Message = err.Error()
			if c.required {
				report.Status = StatusUnhealthy
			} else {
				report.Status = worse(report.Status, StatusDegraded)
			}
		}
		report.Dependencies[c.name] = dep
	}
	return report
}

func databaseCheck(db *sql.DB) CheckFunc {
	return func(ctx context.Context) error {
		var one int
		if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			return err
		}
		stats := db.Stats()
		if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
			return fmt.Errorf("%w: all %d connections in use", ErrDegraded, stats.InUse)
		}
		return nil
	}
}

func worse(a, b string) string {
	rank := map[string]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

func writeHealth(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
