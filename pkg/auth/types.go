package auth

import (
	"context"
	"time"

	"github.com/platinummonkey/sprintflow/pkg/contextkeys"
)

// Principal is the authenticated actor of a request.
//
// Permissions is populated when the identity came from a signed token that
// embeds them. Those permissions are trusted until the token expires, so a
// revoked grant only takes effect once the token is reissued.
type Principal struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions,omitempty"`
	Source      string    `json:"source,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// HasRole reports whether the principal holds any of the given roles
func (p *Principal) HasRole(roles ...string) bool {
	if p == nil {
		return false
	}
	for _, have := range p.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Token sources
const (
	SourceJWT = "jwt"
)

// WithPrincipal stores the principal in ctx
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	ctx = contextkeys.WithPrincipal(ctx, p)
	if p != nil && p.UserID != "" {
		ctx = contextkeys.WithUserID(ctx, p.UserID)
	}
	return ctx
}

// PrincipalFromContext returns the principal stored in ctx, or nil
func PrincipalFromContext(ctx context.Context) *Principal {
	p, ok := ctx.Value(contextkeys.PrincipalKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}
