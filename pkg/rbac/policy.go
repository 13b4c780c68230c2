package rbac

import (
	"context"
	"strings"

	"github.com/platinummonkey/sprintflow/pkg/auth"
)

// Policy reasons
const (
	ReasonAllowed           = "allowed"
	ReasonUnauthenticated   = "unauthenticated"
	ReasonMissingPermission = "missing_permission"
	ReasonMissingRole       = "missing_role"
	ReasonUnknownPolicy     = "unknown_policy"
)

// EvaluatePolicy checks a named policy. "perm:<permission>" requires the
// permission and "role:<role>" requires the role. Any other policy is denied.
func (g *Gate) EvaluatePolicy(ctx context.Context, p *auth.Principal, policy string) (bool, string, error) {
	if p == nil {
		return false, ReasonUnauthenticated, nil
	}

	kind, value, ok := strings.Cut(strings.TrimSpace(policy), ":")
	if !ok || value == "" {
		return false, ReasonUnknownPolicy, nil
	}

	switch kind {
	case "perm":
		perm, err := ParsePermission(value)
		if err != nil {
			return false, ReasonUnknownPolicy, nil
		}
		decision, err := g.Authorize(ctx, p, perm)
		if err != nil {
			return false, "", err
		}
		if !decision.Allowed {
			return false, ReasonMissingPermission, nil
		}
		return true, ReasonAllowed, nil
	case "role":
		if !p.HasRole(value) {
			return false, ReasonMissingRole, nil
		}
		return true, ReasonAllowed, nil
	default:
		return false, ReasonUnknownPolicy, nil
	}
}
