package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/platinummonkey/sprintflow/pkg/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin     = &auth.Principal{UserID: "admin", Permissions: []string{"settings.admin"}}
	developer = &auth.Principal{UserID: "dev", Permissions: []string{"board.write"}}
)

func newWebhookAPI(t *testing.T) (*mux.Router, *Manager) {
	t.Helper()
	manager := newStartedManager(t)
	router := mux.NewRouter()
	NewHandlers(manager, rbac.NewGate(rbac.NewResolver(nil))).RegisterRoutes(router)
	return router, manager
}

func doRequest(t *testing.T, router http.Handler, method, target string, p *auth.Principal, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if p != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlers_WebhookLifecycle(t *testing.T) {
	router, manager := newWebhookAPI(t)
	rc := newReceiver(t)

	rec := doRequest(t, router, http.MethodPost, "/webhooks", admin, CreateWebhookInput{
		URL:    rc.server.URL,
		Events: []string{EventBoardIssueMoved},
		Secret: "s3cret",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created Webhook
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Empty(t, created.Secret)
	assert.True(t, created.Active)

	rec = doRequest(t, router, http.MethodGet, "/webhooks", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "s3cret")

	rec = doRequest(t, router, http.MethodPost, "/webhooks/"+created.ID+"/deactivate", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated Webhook
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.False(t, updated.Active)

	rec = doRequest(t, router, http.MethodPost, "/webhooks/"+created.ID+"/activate", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, manager.Publish(context.Background(), EventBoardIssueMoved, nil))
	waitForStatus(t, manager, created.ID, DeliveryStatusSuccess)

	rec = doRequest(t, router, http.MethodGet, "/webhooks/"+created.ID+"/deliveries?limit=5", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history DeliveriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history.Deliveries, 1)
	assert.Equal(t, 1, history.Stats.Successful)

	rec = doRequest(t, router, http.MethodDelete, "/webhooks/"+created.ID, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/webhooks/"+created.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_RequireSettingsAdmin(t *testing.T) {
	router, _ := newWebhookAPI(t)

	rec := doRequest(t, router, http.MethodGet, "/webhooks", developer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/webhooks", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlers_BadRequests(t *testing.T) {
	router, _ := newWebhookAPI(t)

	rec := doRequest(t, router, http.MethodPost, "/webhooks", admin, CreateWebhookInput{URL: "not a url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/webhooks/missing/deliveries", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
