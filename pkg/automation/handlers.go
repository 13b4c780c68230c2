package automation

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/platinummonkey/sprintflow/pkg/httputil"
)

// Handlers exposes the rule set and manual evaluation over HTTP
type Handlers struct {
	engine *Engine
}

// NewHandlers creates automation handlers
func NewHandlers(engine *Engine) *Handlers {
	return &Handlers{engine: engine}
}

// RegisterRoutes registers automation routes. The caller guards them with
// settings.admin.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/automation/rules", h.listRules).Methods("GET")
	router.HandleFunc("/automation/evaluate", h.evaluate).Methods("POST")
}

// EvaluateRequest is the body of POST /automation/evaluate
type EvaluateRequest struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

func (h *Handlers) listRules(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, h.engine.Rules())
}

func (h *Handlers) evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		httputil.WriteAppError(w, r, apperr.BadRequest("type required"))
		return
	}

	event, err := NewEvent(req.Type, req.Data, auth.PrincipalFromContext(r.Context()))
	if err != nil {
		httputil.WriteAppError(w, r, apperr.BadRequest("%s", err.Error()))
		return
	}

	if httputil.ParseQueryString(r, "dry_run", "") == "true" {
		matched := h.engine.Match(r.Context(), event)
		ids := make([]string, len(matched))
		for i := range matched {
			ids[i] = matched[i].ID
		}
		httputil.WriteSuccess(w, map[string]interface{}{
			"matched": len(matched),
			"rules":   ids,
		})
		return
	}

	result, err := h.engine.EvaluateAndExecute(r.Context(), event)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}
