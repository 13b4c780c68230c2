package rbac

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/platinummonkey/sprintflow/pkg/audit"
	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/platinummonkey/sprintflow/pkg/httputil"
	"github.com/platinummonkey/sprintflow/pkg/observability"
)

// Invalidator drops cached role permissions after a grant change
type Invalidator interface {
	Invalidate(ctx context.Context, roles ...string) error
}

// Handlers provides HTTP handlers for RBAC endpoints
type Handlers struct {
	store       *Store
	gate        *Gate
	invalidator Invalidator
	auditLogger audit.Logger
}

// NewHandlers creates RBAC handlers. invalidator may be nil when no cache is
// configured.
func NewHandlers(store *Store, gate *Gate, invalidator Invalidator, auditLogger audit.Logger) *Handlers {
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	return &Handlers{
		store:       store,
		gate:        gate,
		invalidator: invalidator,
		auditLogger: auditLogger,
	}
}

// RegisterRoutes registers RBAC routes on an authenticated router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	manage := h.gate.RequirePermissions(PermRBACManage)

	router.Handle("/rbac/roles", manage(http.HandlerFunc(h.ListRoles))).Methods("GET")
	router.Handle("/rbac/permissions", manage(http.HandlerFunc(h.ListPermissions))).Methods("GET")
	router.Handle("/rbac/roles/{role}/permissions/{permission}", manage(http.HandlerFunc(h.GrantPermission))).Methods("POST")
	router.Handle("/rbac/roles/{role}/permissions/{permission}", manage(http.HandlerFunc(h.RevokePermission))).Methods("DELETE")

	router.HandleFunc("/rbac/me", h.Me).Methods("GET")
	router.HandleFunc("/rbac/check", h.Check).Methods("POST")
}

// ListRoles lists all roles with their permissions
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"roles": roles})
}

// ListPermissions lists all registered permissions
func (h *Handlers) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.store.ListPermissions(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"permissions": perms})
}

// Me returns the caller's roles and effective permissions
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	effective, err := h.gate.Resolver().Resolve(r.Context(), principal)
	if err != nil {
		httputil.WriteAppError(w, r, apperr.Internal("failed to resolve permissions", err))
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"user_id":     principal.UserID,
		"roles":       principal.Roles,
		"permissions": effective.Strings(),
	})
}

// CheckRequest is the body of POST /rbac/check
type CheckRequest struct {
	Permissions []string `json:"permissions"`
	Policy      string   `json:"policy,omitempty"`
}

// Check evaluates permissions or a policy for the caller
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req CheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if req.Policy != "" {
		allowed, reason, err := h.gate.EvaluatePolicy(r.Context(), principal, req.Policy)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		httputil.WriteSuccess(w, map[string]interface{}{"allowed": allowed, "reason": reason})
		return
	}

	if len(req.Permissions) == 0 {
		httputil.WriteBadRequest(w, "permissions or policy required")
		return
	}

	required := make([]Permission, 0, len(req.Permissions))
	for _, raw := range req.Permissions {
		perm, err := ParsePermission(raw)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		required = append(required, perm)
	}

	decision, err := h.gate.Authorize(r.Context(), principal, required...)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"allowed": decision.Allowed,
		"missing": decision.MissingStrings(),
	})
}

// GrantPermission grants a permission to a role
func (h *Handlers) GrantPermission(w http.ResponseWriter, r *http.Request) {
	h.changeGrant(w, r, true)
}

// RevokePermission revokes a permission from a role
func (h *Handlers) RevokePermission(w http.ResponseWriter, r *http.Request) {
	h.changeGrant(w, r, false)
}

func (h *Handlers) changeGrant(w http.ResponseWriter, r *http.Request, grant bool) {
	ctx := r.Context()
	vars := mux.Vars(r)
	role := vars["role"]

	perm, err := ParsePermission(vars["permission"])
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	eventType := audit.EventTypeAuthzPermissionGrant
	if grant {
		err = h.store.GrantPermission(ctx, role, perm)
	} else {
		eventType = audit.EventTypeAuthzPermissionRevoke
		err = h.store.RevokePermission(ctx, role, perm)
	}

	event := audit.NewEvent(ctx, eventType, audit.EventStatusSuccess)
	event.ResourceType = audit.ResourceTypeRole
	event.ResourceID = role
	event.Metadata["permission"] = string(perm)
	if err != nil {
		event.Status = audit.EventStatusFailure
		event.ErrorMessage = err.Error()
		audit.Record(ctx, h.auditLogger, event)
		httputil.WriteAppError(w, r, err)
		return
	}
	audit.Record(ctx, h.auditLogger, event)

	if h.invalidator != nil {
		if err := h.invalidator.Invalidate(ctx, role); err != nil {
			observability.FromContext(ctx).WithError(err).WithField("role", role).Warn("failed to invalidate permission cache")
		}
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"role":       role,
		"permission": perm,
		"granted":    grant,
	})
}
