package middleware

import (
	"net/http"

	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/platinummonkey/sprintflow/pkg/httputil"
	"github.com/platinummonkey/sprintflow/pkg/observability"
)

// TokenValidator turns a bearer token into a principal
type TokenValidator interface {
	Validate(token string) (*auth.Principal, error)
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	validator TokenValidator
	optional  bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(validator TokenValidator, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		optional:  optional,
	}
}

// Handler wraps an HTTP handler with authentication.
//
// A request without credentials continues anonymously; authorization decides
// whether the route needs a principal. A malformed or invalid token is always
// rejected.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, present := m.extractToken(r)
		if !present {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}
		if token == "" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		principal, err := m.validator.Validate(token)
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Debug("token rejected")
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := auth.WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken reads the Authorization header, falling back to the
// access_token query parameter used by websocket clients
func (m *AuthMiddleware) extractToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := auth.BearerToken(header)
		if !ok {
			return "", true
		}
		return token, true
	}
	if token := r.URL.Query().Get("access_token"); token != "" {
		return token, true
	}
	return "", false
}

// GetPrincipal extracts the authenticated principal from the request
func GetPrincipal(r *http.Request) *auth.Principal {
	return auth.PrincipalFromContext(r.Context())
}

// RequireAuthenticated rejects anonymous requests with 401
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetPrincipal(r) == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
