package boards

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/sprintflow/pkg/httputil"
	"github.com/platinummonkey/sprintflow/pkg/rbac"
)

// Handlers provides HTTP handlers for boards and drag-and-drop
type Handlers struct {
	service *Service
	gate    *rbac.Gate
}

// NewHandlers creates board handlers
func NewHandlers(service *Service, gate *rbac.Gate) *Handlers {
	return &Handlers{service: service, gate: gate}
}

// RegisterRoutes registers board routes on an authenticated router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	read := h.gate.RequirePermissions(rbac.PermBoardRead)
	write := h.gate.RequirePermissions(rbac.PermBoardWrite)

	router.Handle("/boards", read(http.HandlerFunc(h.listBoards))).Methods("GET")
	router.Handle("/boards", write(http.HandlerFunc(h.createBoard))).Methods("POST")
	router.Handle("/boards/{boardID}", read(http.HandlerFunc(h.getBoard))).Methods("GET")

	router.Handle("/boards/{boardID}/columns", read(http.HandlerFunc(h.listColumns))).Methods("GET")
	router.Handle("/boards/{boardID}/columns", write(http.HandlerFunc(h.createColumn))).Methods("POST")
	router.Handle("/boards/{boardID}/columns/order", write(http.HandlerFunc(h.reorderColumns))).Methods("PUT")
	router.Handle("/boards/{boardID}/columns/{columnID}", write(http.HandlerFunc(h.deleteColumn))).Methods("DELETE")

	router.Handle("/boards/{boardID}/dnd/move", write(http.HandlerFunc(h.moveIssue))).Methods("POST")
	router.Handle("/boards/{boardID}/dnd/reorder", write(http.HandlerFunc(h.reorderIssue))).Methods("POST")
}

func (h *Handlers) listBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := h.service.ListBoards(r.Context(), httputil.ParseQueryString(r, "project_id", ""))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, boards)
}

func (h *Handlers) createBoard(w http.ResponseWriter, r *http.Request) {
	var req CreateBoardInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	board, err := h.service.CreateBoard(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, board)
}

func (h *Handlers) getBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.GetBoard(r.Context(), mux.Vars(r)["boardID"])
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, board)
}

func (h *Handlers) listColumns(w http.ResponseWriter, r *http.Request) {
	columns, err := h.service.ListColumns(r.Context(), mux.Vars(r)["boardID"])
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, columns)
}

type createColumnRequest struct {
	Name  string `json:"name"`
	Order *int   `json:"order,omitempty"`
}

func (h *Handlers) createColumn(w http.ResponseWriter, r *http.Request) {
	var req createColumnRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	column, err := h.service.CreateColumn(r.Context(), mux.Vars(r)["boardID"], req.Name, req.Order)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, column)
}

type reorderColumnsRequest struct {
	Columns []ColumnOrder `json:"columns"`
}

func (h *Handlers) reorderColumns(w http.ResponseWriter, r *http.Request) {
	var req reorderColumnsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	columns, err := h.service.ReorderColumns(r.Context(), mux.Vars(r)["boardID"], req.Columns)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"ok": true, "columns": columns})
}

func (h *Handlers) deleteColumn(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.service.DeleteColumn(r.Context(), vars["boardID"], vars["columnID"]); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"ok": true})
}

func (h *Handlers) moveIssue(w http.ResponseWriter, r *http.Request) {
	var req MoveIssueInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.BoardID = mux.Vars(r)["boardID"]

	result, err := h.service.MoveIssue(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (h *Handlers) reorderIssue(w http.ResponseWriter, r *http.Request) {
	var req ReorderIssueInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.BoardID = mux.Vars(r)["boardID"]

	result, err := h.service.ReorderIssue(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}
