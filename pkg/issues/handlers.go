package issues

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/sprintflow/pkg/httputil"
	"github.com/platinummonkey/sprintflow/pkg/rbac"
)

// Handlers provides HTTP handlers for issues
type Handlers struct {
	service *Service
	gate    *rbac.Gate
}

// NewHandlers creates issue handlers
func NewHandlers(service *Service, gate *rbac.Gate) *Handlers {
	return &Handlers{service: service, gate: gate}
}

// RegisterRoutes registers issue routes on an authenticated router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	read := h.gate.RequirePermissions(rbac.PermIssueRead)
	write := h.gate.RequirePermissions(rbac.PermIssueWrite)

	router.Handle("/issues", read(http.HandlerFunc(h.listIssues))).Methods("GET")
	router.Handle("/issues", write(http.HandlerFunc(h.createIssue))).Methods("POST")
	router.Handle("/issues/{issueID}", read(http.HandlerFunc(h.getIssue))).Methods("GET")
	router.Handle("/issues/{issueID}", write(http.HandlerFunc(h.updateIssue))).Methods("PATCH")
	router.Handle("/issues/{issueID}", write(http.HandlerFunc(h.deleteIssue))).Methods("DELETE")
	router.Handle("/issues/{issueID}/transition", write(http.HandlerFunc(h.transitionIssue))).Methods("POST")
	router.Handle("/backlog", read(http.HandlerFunc(h.listBacklog))).Methods("GET")
}

// TransitionRequest is the body of a transition
type TransitionRequest struct {
	ToStatus string `json:"to_status"`
}

func (h *Handlers) listIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := h.service.List(r.Context(), ListFilter{
		ProjectID: httputil.ParseQueryString(r, "project_id", ""),
		SprintID:  httputil.ParseQueryString(r, "sprint_id", ""),
	})
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, issues)
}

func (h *Handlers) listBacklog(w http.ResponseWriter, r *http.Request) {
	issues, err := h.service.Backlog(r.Context(), httputil.ParseQueryString(r, "project_id", ""))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, issues)
}

func (h *Handlers) createIssue(w http.ResponseWriter, r *http.Request) {
	var req CreateIssueInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	issue, err := h.service.Create(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, issue)
}

func (h *Handlers) getIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := h.service.Get(r.Context(), mux.Vars(r)["issueID"])
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, issue)
}

func (h *Handlers) updateIssue(w http.ResponseWriter, r *http.Request) {
	var fields map[string]interface{}
	if !httputil.ParseJSONOrError(w, r, &fields) {
		return
	}

	issue, err := h.service.Update(r.Context(), mux.Vars(r)["issueID"], fields)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, issue)
}

func (h *Handlers) deleteIssue(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["issueID"]); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]bool{"ok": true})
}

func (h *Handlers) transitionIssue(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	issue, err := h.service.Transition(r.Context(), mux.Vars(r)["issueID"], req.ToStatus)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, issue)
}
