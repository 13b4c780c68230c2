package api

import (
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/sprintflow/pkg/audit"
	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/platinummonkey/sprintflow/pkg/automation"
	"github.com/platinummonkey/sprintflow/pkg/boards"
	"github.com/platinummonkey/sprintflow/pkg/httputil"
	"github.com/platinummonkey/sprintflow/pkg/issues"
	"github.com/platinummonkey/sprintflow/pkg/middleware"
	"github.com/platinummonkey/sprintflow/pkg/observability"
	"github.com/platinummonkey/sprintflow/pkg/projects"
	"github.com/platinummonkey/sprintflow/pkg/rbac"
	"github.com/platinummonkey/sprintflow/pkg/realtime"
	"github.com/platinummonkey/sprintflow/pkg/sprints"
	"github.com/platinummonkey/sprintflow/pkg/users"
	"github.com/platinummonkey/sprintflow/pkg/webhooks"
)

// APIPrefix is the path prefix of every JSON route
const APIPrefix = "/api/v1"

// Dependencies are the services the router dispatches to. Optional fields may
// be nil: their routes are then not registered.
type Dependencies struct {
	Tokens      *auth.TokenManager
	Gate        *rbac.Gate
	RBACStore   *rbac.Store
	Invalidator rbac.Invalidator
	AuditLogger audit.Logger

	Users      *users.Service
	Projects   *projects.Service
	Sprints    *sprints.Service
	Boards     *boards.Service
	Issues     *issues.Service
	Automation *automation.Engine
	Webhooks   *webhooks.Manager

	// Optional
	AuditSearcher audit.Searcher
	Hub           *realtime.Hub
	Health        *observability.HealthChecker
	Redis         *redis.Client
	Metrics       *observability.Metrics
	Gatherer      prometheus.Gatherer
	Logger        *observability.Logger
}

// Options tune the HTTP middleware stack
type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	// AuthRateLimit is requests per minute per client on /auth routes
	AuthRateLimit int
	Tracing       bool
}

// Server represents our API server
type Server struct {
	deps    Dependencies
	opts    Options
	router  *mux.Router
	handler http.Handler
}

// NewServer creates a new API server
func NewServer(deps Dependencies, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewNopMetrics()
	}
	if deps.AuditLogger == nil {
		deps.AuditLogger = audit.NoOpLogger{}
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{
		deps:   deps,
		opts:   opts,
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	s.handler = s.buildMiddleware(s.router)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))

	// Health and metrics stay outside authentication
	if s.deps.Health != nil {
		s.router.HandleFunc("/healthz", s.deps.Health.Liveness).Methods("GET")
		s.router.HandleFunc("/readyz", s.deps.Health.Readiness).Methods("GET")
	} else {
		s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteSuccess(w, map[string]string{"status": observability.StatusHealthy})
		}).Methods("GET")
	}
	if s.deps.Gatherer != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.deps.Gatherer)).Methods("GET")
	}

	authn := middleware.NewAuthMiddleware(s.deps.Tokens, true)

	if s.deps.Hub != nil {
		ws := authn.Handler(middleware.RequireAuthenticated(s.deps.Hub.Handler(s.authorizeRoom)))
		s.router.Handle("/ws", ws).Methods("GET")
	}

	api := s.router.PathPrefix(APIPrefix).Subrouter()
	api.Use(authn.Handler)

	if s.deps.Users != nil {
		limit := middleware.DefaultRateLimitConfig()
		if s.opts.AuthRateLimit > 0 {
			limit.RequestsPerWindow = s.opts.AuthRateLimit
		}
		public := api.NewRoute().Subrouter()
		public.Use(middleware.NewRateLimitMiddleware(s.deps.Redis, limit).Handler)
		users.NewHandlers(s.deps.Users).RegisterRoutes(public)
	}

	if s.deps.RBACStore != nil {
		rbac.NewHandlers(s.deps.RBACStore, s.deps.Gate, s.deps.Invalidator, s.deps.AuditLogger).RegisterRoutes(api)
	}
	if s.deps.Projects != nil {
		projects.NewHandlers(s.deps.Projects, s.deps.Gate).RegisterRoutes(api)
	}
	if s.deps.Sprints != nil {
		sprints.NewHandlers(s.deps.Sprints, s.deps.Gate).RegisterRoutes(api)
	}
	if s.deps.Boards != nil {
		boards.NewHandlers(s.deps.Boards, s.deps.Gate).RegisterRoutes(api)
	}
	if s.deps.Issues != nil {
		issues.NewHandlers(s.deps.Issues, s.deps.Gate).RegisterRoutes(api)
	}
	if s.deps.Webhooks != nil {
		webhooks.NewHandlers(s.deps.Webhooks, s.deps.Gate).RegisterRoutes(api)
	}

	admin := api.NewRoute().Subrouter()
	admin.Use(s.deps.Gate.RequirePermissions(rbac.PermSettingsAdmin))
	if s.deps.Automation != nil {
		automation.NewHandlers(s.deps.Automation).RegisterRoutes(admin)
	}
	if s.deps.AuditSearcher != nil {
		audit.NewHandlers(s.deps.AuditSearcher).RegisterRoutes(admin)
	}
}

// buildMiddleware wraps the router with the request-scoped stack. The
// outermost middleware runs first.
func (s *Server) buildMiddleware(next http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.deps.Logger),
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(s.opts.CORSOrigins),
	}
	if s.opts.Tracing {
		stack = append([]func(http.Handler) http.Handler{observability.TracingMiddleware("sprintflow")}, stack...)
	}
	if s.opts.RequestTimeout > 0 {
		stack = append(stack, httputil.TimeoutMiddleware(s.opts.RequestTimeout))
	}
	if s.opts.MaxBodyBytes > 0 {
		stack = append(stack, httputil.MaxBytesMiddleware(s.opts.MaxBodyBytes))
	}
	stack = append(stack, httputil.ContentTypeMiddleware)

	return httputil.Chain(stack...)(next)
}

// Router exposes the underlying router for additional registrations
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
