package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal *prometheus.CounterVec
	PermissionCacheHits *prometheus.CounterVec

	// Board metrics
	BoardMutationsTotal *prometheus.CounterVec
	BoardConflictsTotal *prometheus.CounterVec

	// Automation metrics
	AutomationRunsTotal    *prometheus.CounterVec
	AutomationActionsTotal *prometheus.CounterVec
	AutomationRunDuration  prometheus.Histogram

	// Delivery metrics
	NotificationsTotal     *prometheus.CounterVec
	WebhookDeliveriesTotal *prometheus.CounterVec

	// Realtime
	RealtimeClients prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sprintflow_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sprintflow_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sprintflow_authz_decisions_total",
				Help: "Authorization decisions by outcome",
			},
			[]string{"outcome"},
		),
		PermissionCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sprintflow_permission_cache_lookups_total",
				Help: "Role permission cache lookups by level and result",
			},
			[]string{"level", "result"},
		),

		BoardMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sprintflow_board_mutations_total",
				Help: "Board position document mutations",
			},
			[]string{"operation", "status"},
		),
		BoardConflictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sprintflow_board_version_conflicts_total",
				Help: "Compare-and-swap version conflicts on board writes",
			},
			[]string{"operation"},
		),

		AutomationRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sprintflow_automation_runs_total",
				Help: "Automation engine evaluations",
			},
			[]string{"event_type"},
		),
		AutomationActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sprintflow_automation_actions_total",
				Help: "Automation actions executed",
			},
			[]string{"action_type", "status"},
		),
		AutomationRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sprintflow_automation_run_duration_seconds",
				Help:    "Automation evaluation duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
		),

		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sprintflow_notifications_total",
				Help: "Notification channel deliveries",
			},
			[]string{"channel", "status"},
		),
		WebhookDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sprintflow_webhook_deliveries_total",
				Help: "Outbound webhook deliveries",
			},
			[]string{"event_type", "status"},
		),

		RealtimeClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sprintflow_realtime_clients",
				Help: "Connected websocket clients",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.PermissionCacheHits,
		m.BoardMutationsTotal,
		m.BoardConflictsTotal,
		m.AutomationRunsTotal,
		m.AutomationActionsTotal,
		m.AutomationRunDuration,
		m.NotificationsTotal,
		m.WebhookDeliveriesTotal,
		m.RealtimeClients,
	)

	return m
}

// NewNopMetrics returns metrics registered against a throwaway registry
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests using the matched mux route template
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in Prometheus exposition format
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
