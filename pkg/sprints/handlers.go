package sprints

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/sprintflow/pkg/httputil"
	"github.com/platinummonkey/sprintflow/pkg/rbac"
)

// Handlers provides HTTP handlers for sprints
type Handlers struct {
	service *Service
	gate    *rbac.Gate
}

// NewHandlers creates sprint handlers
func NewHandlers(service *Service, gate *rbac.Gate) *Handlers {
	return &Handlers{service: service, gate: gate}
}

// RegisterRoutes registers sprint routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	read := h.gate.RequirePermissions(rbac.PermSprintRead)
	write := h.gate.RequirePermissions(rbac.PermSprintWrite)

	router.Handle("/sprints", read(http.HandlerFunc(h.listSprints))).Methods("GET")
	router.Handle("/sprints", write(http.HandlerFunc(h.createSprint))).Methods("POST")
	router.Handle("/sprints/{sprintID}", read(http.HandlerFunc(h.getSprint))).Methods("GET")
	router.Handle("/sprints/{sprintID}/state", write(http.HandlerFunc(h.updateState))).Methods("PATCH")
	router.Handle("/sprints/{sprintID}/complete", write(http.HandlerFunc(h.completeSprint))).Methods("POST")
}

// StateRequest is the body of a state change
type StateRequest struct {
	State State `json:"state"`
}

// CompleteRequest is the optional body of a completion
type CompleteRequest struct {
	MoveIncomplete CarryOver `json:"move_incomplete"`
}

func (h *Handlers) listSprints(w http.ResponseWriter, r *http.Request) {
	sprints, err := h.service.List(r.Context(), httputil.ParseQueryString(r, "project_id", ""))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, sprints)
}

func (h *Handlers) createSprint(w http.ResponseWriter, r *http.Request) {
	var req CreateSprintInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	sprint, err := h.service.Create(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, sprint)
}

func (h *Handlers) getSprint(w http.ResponseWriter, r *http.Request) {
	sprint, err := h.service.Get(r.Context(), mux.Vars(r)["sprintID"])
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, sprint)
}

func (h *Handlers) updateState(w http.ResponseWriter, r *http.Request) {
	var req StateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	sprint, err := h.service.UpdateState(r.Context(), mux.Vars(r)["sprintID"], req.State)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, sprint)
}

func (h *Handlers) completeSprint(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.Complete(r.Context(), mux.Vars(r)["sprintID"], req.MoveIncomplete)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}
