package rbac

import (
	"net/http"

	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/platinummonkey/sprintflow/pkg/httputil"
)

// RequirePermissions creates middleware that requires every listed permission.
// It answers 401 without a principal and 403 with the missing list on deny.
func (g *Gate) RequirePermissions(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := auth.PrincipalFromContext(r.Context())
			if principal == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			decision, err := g.Authorize(r.Context(), principal, perms...)
			if err != nil {
				httputil.WriteAppError(w, r, err)
				return
			}

			if !decision.Allowed {
				httputil.WriteForbidden(w, decision.MissingStrings())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole creates middleware that requires any of the listed roles
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := auth.PrincipalFromContext(r.Context())
			if principal == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			if !principal.HasRole(roles...) {
				httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{
					Error:   "forbidden",
					Message: "missing role",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
