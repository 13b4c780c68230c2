package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/sprintflow/pkg/async"
	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/platinummonkey/sprintflow/pkg/automation"
	"github.com/platinummonkey/sprintflow/pkg/boards"
	"github.com/platinummonkey/sprintflow/pkg/httputil"
	"github.com/platinummonkey/sprintflow/pkg/issues"
	"github.com/platinummonkey/sprintflow/pkg/observability"
	"github.com/platinummonkey/sprintflow/pkg/projects"
	"github.com/platinummonkey/sprintflow/pkg/rbac"
	"github.com/platinummonkey/sprintflow/pkg/realtime"
	"github.com/platinummonkey/sprintflow/pkg/sprints"
	"github.com/platinummonkey/sprintflow/pkg/users"
)

// sqlite variants of every component's migrations
const testSchema = `
	CREATE TABLE roles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	CREATE TABLE permissions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	CREATE TABLE role_permissions (
		role_id TEXT NOT NULL,
		permission_id TEXT NOT NULL,
		PRIMARY KEY (role_id, permission_id)
	);
	CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		roles TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE TABLE boards (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'scrum',
		config TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE TABLE issues (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		key TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		type_id TEXT,
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		assignee_id TEXT,
		reporter_id TEXT,
		sprint_id TEXT,
		points INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (project_id, key)
	);
	CREATE TABLE issue_key_sequences (
		project_id TEXT PRIMARY KEY,
		last_key INTEGER NOT NULL
	);
	CREATE TABLE workspaces (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		key TEXT NOT NULL UNIQUE,
		created_by TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE TABLE projects (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		name TEXT NOT NULL,
		key TEXT NOT NULL,
		type TEXT NOT NULL,
		lead_id TEXT,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (workspace_id, key)
	);
	CREATE TABLE sprints (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		goal TEXT,
		start_date TEXT,
		end_date TEXT,
		state TEXT NOT NULL DEFAULT 'planned',
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	);
`

const testPassword = "correct horse battery"

type testEnv struct {
	server *Server
	users  *users.Service
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	t.Cleanup(func() { async.Drain(2 * time.Second) })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	require.NoError(t, rbac.Seed(ctx, db))

	rbacStore := rbac.NewStore(db)
	resolver := rbac.NewResolver(rbacStore)
	gate := rbac.NewGate(resolver)

	tokens, err := auth.NewTokenManager("0123456789abcdef0123456789abcdef", "sprintflow", time.Hour)
	require.NoError(t, err)

	usersSvc := users.NewService(users.NewStore(db), resolver, tokens)
	projectsSvc := projects.NewService(projects.NewStore(db))
	sprintsSvc := sprints.NewService(sprints.NewStore(db), sprints.WithProjects(projectsSvc))
	issuesSvc := issues.NewService(issues.NewStore(db), issues.WithSprints(sprintsSvc))
	boardsSvc := boards.NewService(boards.NewStore(db), boards.WithStatusUpdater(issuesSvc))
	engine := automation.NewEngine(automation.WithFieldUpdater(issuesSvc))

	registry := prometheus.NewRegistry()
	logger := observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
	hub := realtime.NewHub(nil, logger)
	t.Cleanup(hub.Close)

	server := NewServer(Dependencies{
		Tokens:     tokens,
		Gate:       gate,
		RBACStore:  rbacStore,
		Users:      usersSvc,
		Projects:   projectsSvc,
		Sprints:    sprintsSvc,
		Boards:     boardsSvc,
		Issues:     issuesSvc,
		Automation: engine,
		Metrics:    observability.NewMetrics(registry),
		Gatherer:   registry,
		Hub:        hub,
		Logger:     logger,
	}, Options{AuthRateLimit: 100, RequestTimeout: 5 * time.Second, MaxBodyBytes: 1 << 20})

	return &testEnv{server: server, users: usersSvc}
}

// loginAs creates a user holding roles and returns a session token
func (e *testEnv) loginAs(t *testing.T, email string, roles ...string) string {
	t.Helper()
	_, err := e.users.Register(context.Background(), users.RegisterInput{
		Email:    email,
		Name:     "Test User",
		Password: testPassword,
		Roles:    roles,
	})
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/api/v1/auth/login", "", users.LoginInput{Email: email, Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result users.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotEmpty(t, result.Token)
	return result.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func TestServer_BoardWorkflow(t *testing.T) {
	env := setupTestServer(t)
	token := env.loginAs(t, "dev@example.com", rbac.RoleDeveloper)

	rec := env.do(t, http.MethodPost, "/api/v1/boards", token, boards.CreateBoardInput{ProjectID: "proj-1", Name: "Sprint board"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var board boards.Board
	decode(t, rec, &board)

	rec = env.do(t, http.MethodPost, "/api/v1/boards/"+board.ID+"/columns", token, map[string]string{"name": "In Progress"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var column boards.Column
	decode(t, rec, &column)
	assert.Equal(t, 1, column.Order)

	rec = env.do(t, http.MethodPost, "/api/v1/issues", token, map[string]string{"project_id": "proj-1", "title": "Wire the router"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var issue issues.Issue
	decode(t, rec, &issue)
	assert.Equal(t, "todo", issue.Status)

	rec = env.do(t, http.MethodPost, "/api/v1/boards/"+board.ID+"/dnd/move", token, boards.MoveIssueInput{
		IssueID:    issue.ID,
		ToColumnID: column.ID,
		Position:   7,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var moved boards.MoveResult
	decode(t, rec, &moved)
	assert.Equal(t, 0, moved.Position)
	assert.Equal(t, "in_progress", moved.Status)

	rec = env.do(t, http.MethodGet, "/api/v1/issues/"+issue.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &issue)
	assert.Equal(t, "in_progress", issue.Status)

	rec = env.do(t, http.MethodGet, "/api/v1/boards/"+board.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &board)
	assert.Equal(t, []string{issue.ID}, board.Config.IssuePositions[column.ID])
}

func TestServer_Authorization(t *testing.T) {
	env := setupTestServer(t)
	viewer := env.loginAs(t, "viewer@example.com", rbac.RoleViewer)

	t.Run("anonymous request is rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/boards", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/boards", "not-a-token", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("viewer can read", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/boards", viewer, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("viewer cannot write", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/boards", viewer, boards.CreateBoardInput{ProjectID: "p", Name: "b"})
		require.Equal(t, http.StatusForbidden, rec.Code)

		var body httputil.ErrorResponse
		decode(t, rec, &body)
		assert.Equal(t, "forbidden", body.Error)
		assert.Equal(t, []string{"board.write"}, body.Missing)
	})

	t.Run("admin routes need settings.admin", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/automation/rules", viewer, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)

		var body httputil.ErrorResponse
		decode(t, rec, &body)
		assert.Equal(t, []string{"settings.admin"}, body.Missing)
	})

	t.Run("org admin reaches admin routes", func(t *testing.T) {
		admin := env.loginAs(t, "admin@example.com", rbac.RoleOrgAdmin)
		rec := env.do(t, http.MethodGet, "/api/v1/automation/rules", admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var rules []automation.Rule
		decode(t, rec, &rules)
		assert.NotEmpty(t, rules)
	})

	t.Run("rbac me reports the token permissions", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/rbac/me", viewer, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "board.read")
		assert.NotContains(t, rec.Body.String(), "board.write")
	})
}

func TestServer_SprintCompletionReturnsIssuesToBacklog(t *testing.T) {
	env := setupTestServer(t)
	admin := env.loginAs(t, "admin@example.com", rbac.RoleOrgAdmin)
	viewer := env.loginAs(t, "viewer@example.com", rbac.RoleViewer)

	rec := env.do(t, http.MethodPost, "/api/v1/workspaces", admin, projects.CreateWorkspaceInput{Name: "Platform", Key: "PLAT"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ws projects.Workspace
	decode(t, rec, &ws)

	rec = env.do(t, http.MethodPost, "/api/v1/projects", admin, projects.CreateProjectInput{WorkspaceID: ws.ID, Name: "Web", Key: "WEB"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var project projects.Project
	decode(t, rec, &project)

	rec = env.do(t, http.MethodPost, "/api/v1/sprints", viewer, sprints.CreateSprintInput{ProjectID: project.ID, Name: "Sprint 1"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sprints", admin, sprints.CreateSprintInput{ProjectID: project.ID, Name: "Sprint 1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sprint sprints.Sprint
	decode(t, rec, &sprint)

	rec = env.do(t, http.MethodPost, "/api/v1/issues", admin, map[string]string{
		"project_id": project.ID, "title": "Ship it", "sprint_id": sprint.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/issues", admin, map[string]string{
		"project_id": project.ID, "title": "Lost", "sprint_id": "no-such-sprint",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/backlog?project_id="+project.ID, viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var backlog []issues.Issue
	decode(t, rec, &backlog)
	assert.Empty(t, backlog)

	rec = env.do(t, http.MethodPost, "/api/v1/sprints/"+sprint.ID+"/complete", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/backlog?project_id="+project.ID, viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &backlog)
	require.Len(t, backlog, 1)
	assert.Equal(t, "Ship it", backlog[0].Title)
}

func TestServer_WebsocketRoomAuthorization(t *testing.T) {
	env := setupTestServer(t)
	viewer := env.loginAs(t, "viewer@example.com", rbac.RoleViewer)

	rec := env.do(t, http.MethodGet, "/ws?room=user:someone-else", viewer, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	var body httputil.ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, []string{"settings.admin"}, body.Missing)

	rec = env.do(t, http.MethodGet, "/ws?room=vault:1", viewer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/ws?room=board:b-1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_SelfRegistrationGetsViewer(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]interface{}{
		"email":    "new@example.com",
		"name":     "New",
		"password": testPassword,
		"roles":    []string{rbac.RoleOrgAdmin},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var user users.User
	decode(t, rec, &user)
	assert.Equal(t, []string{users.DefaultRole}, user.Roles)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	env.do(t, http.MethodGet, "/api/v1/boards", "", nil)

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sprintflow_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/api/v1/boards"`)
}

func TestServer_RejectsNonJSONBodies(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("email=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_AuthRateLimit(t *testing.T) {
	env := setupTestServer(t)
	server := NewServer(env.server.deps, Options{AuthRateLimit: 2})

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"email":"nobody@example.com","password":"wrong-password"}`))
		req.RemoteAddr = "203.0.113.9:4000"
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		last = rec.Code
		if i < 2 {
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		}
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
