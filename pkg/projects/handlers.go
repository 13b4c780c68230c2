package projects

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/sprintflow/pkg/httputil"
	"github.com/platinummonkey/sprintflow/pkg/rbac"
)

// Handlers provides HTTP handlers for workspaces and projects
type Handlers struct {
	service *Service
	gate    *rbac.Gate
}

// NewHandlers creates project handlers
func NewHandlers(service *Service, gate *rbac.Gate) *Handlers {
	return &Handlers{service: service, gate: gate}
}

// RegisterRoutes registers workspace and project routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	read := h.gate.RequirePermissions(rbac.PermProjectRead)
	write := h.gate.RequirePermissions(rbac.PermProjectWrite)
	admin := h.gate.RequirePermissions(rbac.PermSettingsAdmin)

	router.Handle("/workspaces", read(http.HandlerFunc(h.listWorkspaces))).Methods("GET")
	router.Handle("/workspaces", admin(http.HandlerFunc(h.createWorkspace))).Methods("POST")
	router.Handle("/projects", read(http.HandlerFunc(h.listProjects))).Methods("GET")
	router.Handle("/projects", write(http.HandlerFunc(h.createProject))).Methods("POST")
	router.Handle("/projects/{projectID}", read(http.HandlerFunc(h.getProject))).Methods("GET")
}

func (h *Handlers) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	workspaces, err := h.service.ListWorkspaces(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, workspaces)
}

func (h *Handlers) createWorkspace(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkspaceInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ws, err := h.service.CreateWorkspace(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, ws)
}

func (h *Handlers) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context(), httputil.ParseQueryString(r, "workspace_id", ""))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, projects)
}

func (h *Handlers) createProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	p, err := h.service.CreateProject(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, p)
}

func (h *Handlers) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProject(r.Context(), mux.Vars(r)["projectID"])
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, p)
}
