package projects

import (
	"bytes"
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
	admin  = &auth.Principal{UserID: "admin", Permissions: []string{"settings.admin", "project.read", "project.write"}}
	lead   = &auth.Principal{UserID: "lead", Permissions: []string{"project.read", "project.write"}}
	viewer = &auth.Principal{UserID: "viewer", Permissions: []string{"project.read"}}
)

func serve(t *testing.T, router *mux.Router, method, target string, p *auth.Principal, body interface{}) *httptest.ResponseRecorder {
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

func TestHandlers_ProjectLifecycle(t *testing.T) {
	router := mux.NewRouter()
	NewHandlers(NewService(setupTestStore(t)), rbac.NewGate(rbac.NewResolver(nil))).RegisterRoutes(router)

	rec := serve(t, router, http.MethodPost, "/workspaces", lead, CreateWorkspaceInput{Name: "Platform", Key: "PLAT"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "settings.admin")

	rec = serve(t, router, http.MethodPost, "/workspaces", admin, CreateWorkspaceInput{Name: "Platform", Key: "PLAT"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var ws Workspace
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ws))

	rec = serve(t, router, http.MethodPost, "/projects", viewer, CreateProjectInput{WorkspaceID: ws.ID, Name: "Web", Key: "WEB"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, router, http.MethodPost, "/projects", lead, CreateProjectInput{WorkspaceID: ws.ID, Name: "Web", Key: "WEB"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var p Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))

	rec = serve(t, router, http.MethodPost, "/projects", lead, CreateProjectInput{WorkspaceID: ws.ID, Name: "Web 2", Key: "WEB"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, router, http.MethodGet, "/projects?workspace_id="+ws.ID, viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)

	rec = serve(t, router, http.MethodGet, "/projects/"+p.ID, viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, router, http.MethodGet, "/projects/nope", viewer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, router, http.MethodGet, "/workspaces", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
