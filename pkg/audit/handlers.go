package audit

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/platinummonkey/sprintflow/pkg/httputil"
)

// Searcher reads back stored audit events
type Searcher interface {
	Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, error)
}

// Handlers provides HTTP handlers for audit log API
type Handlers struct {
	store Searcher
}

// NewHandlers creates new audit handlers
func NewHandlers(store Searcher) *Handlers {
	return &Handlers{
		store: store,
	}
}

// RegisterRoutes registers audit log routes. The caller guards the router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit/events", h.listEvents).Methods("GET")
}

// listEvents handles GET /audit/events
func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	events, err := h.store.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// parseFilter parses search filter from query parameters
func parseFilter(r *http.Request) (SearchFilter, error) {
	query := r.URL.Query()
	filter := SearchFilter{Limit: 100}

	if startStr := query.Get("start_time"); startStr != "" {
		t, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return filter, apperr.BadRequest("invalid start_time: %s", startStr)
		}
		filter.StartTime = &t
	}

	if endStr := query.Get("end_time"); endStr != "" {
		t, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return filter, apperr.BadRequest("invalid end_time: %s", endStr)
		}
		filter.EndTime = &t
	}

	filter.UserID = query.Get("user_id")

	if eventTypesStr := query.Get("event_types"); eventTypesStr != "" {
		for _, et := range strings.Split(eventTypesStr, ",") {
			if et = strings.TrimSpace(et); et != "" {
				filter.EventTypes = append(filter.EventTypes, EventType(et))
			}
		}
	}

	if statusStr := query.Get("status"); statusStr != "" {
		status := EventStatus(statusStr)
		filter.Status = &status
	}

	filter.ResourceType = ResourceType(query.Get("resource_type"))
	filter.ResourceID = query.Get("resource_id")

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return filter, apperr.BadRequest("invalid limit: %s", limitStr)
		}
		filter.Limit = limit
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return filter, apperr.BadRequest("invalid offset: %s", offsetStr)
		}
		filter.Offset = offset
	}

	return filter, nil
}
