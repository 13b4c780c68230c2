package webhooks

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/sprintflow/pkg/httputil"
	"github.com/platinummonkey/sprintflow/pkg/rbac"
)

// Handlers provides HTTP handlers for webhook management
type Handlers struct {
	manager *Manager
	gate    *rbac.Gate
}

// NewHandlers creates webhook handlers
func NewHandlers(manager *Manager, gate *rbac.Gate) *Handlers {
	return &Handlers{manager: manager, gate: gate}
}

// RegisterRoutes registers webhook routes. Every route requires settings.admin.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	admin := h.gate.RequirePermissions(rbac.PermSettingsAdmin)

	router.Handle("/webhooks", admin(http.HandlerFunc(h.listWebhooks))).Methods("GET")
	router.Handle("/webhooks", admin(http.HandlerFunc(h.createWebhook))).Methods("POST")
	router.Handle("/webhooks/{webhookID}", admin(http.HandlerFunc(h.getWebhook))).Methods("GET")
	router.Handle("/webhooks/{webhookID}", admin(http.HandlerFunc(h.deleteWebhook))).Methods("DELETE")
	router.Handle("/webhooks/{webhookID}/activate", admin(http.HandlerFunc(h.activateWebhook))).Methods("POST")
	router.Handle("/webhooks/{webhookID}/deactivate", admin(http.HandlerFunc(h.deactivateWebhook))).Methods("POST")
	router.Handle("/webhooks/{webhookID}/deliveries", admin(http.HandlerFunc(h.listDeliveries))).Methods("GET")
}

// DeliveriesResponse is the delivery history of a webhook
type DeliveriesResponse struct {
	Deliveries []DeliveryLog `json:"deliveries"`
	Stats      DeliveryStats `json:"stats"`
}

func (h *Handlers) listWebhooks(w http.ResponseWriter, r *http.Request) {
	webhooks, err := h.manager.List(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	redacted := make([]*Webhook, len(webhooks))
	for i, webhook := range webhooks {
		redacted[i] = webhook.Redacted()
	}
	httputil.WriteSuccess(w, redacted)
}

func (h *Handlers) createWebhook(w http.ResponseWriter, r *http.Request) {
	var req CreateWebhookInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	webhook, err := h.manager.Register(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, webhook.Redacted())
}

func (h *Handlers) getWebhook(w http.ResponseWriter, r *http.Request) {
	webhook, err := h.manager.Get(r.Context(), mux.Vars(r)["webhookID"])
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, webhook.Redacted())
}

func (h *Handlers) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Unregister(r.Context(), mux.Vars(r)["webhookID"]); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handlers) activateWebhook(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handlers) deactivateWebhook(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handlers) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := mux.Vars(r)["webhookID"]

	var err error
	if active {
		err = h.manager.Activate(r.Context(), id)
	} else {
		err = h.manager.Deactivate(r.Context(), id)
	}
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	webhook, err := h.manager.Get(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, webhook.Redacted())
}

func (h *Handlers) listDeliveries(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["webhookID"]
	if _, err := h.manager.Get(r.Context(), id); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	httputil.WriteSuccess(w, DeliveriesResponse{
		Deliveries: h.manager.DeliveryLogs(id, limit),
		Stats:      h.manager.DeliveryStats(id),
	})
}
