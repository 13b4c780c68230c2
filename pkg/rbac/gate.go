package rbac

import (
	"context"
	"strings"

	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/platinummonkey/sprintflow/pkg/audit"
	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/platinummonkey/sprintflow/pkg/observability"
)

// Decision is the outcome of an authorization check
type Decision struct {
	Allowed bool         `json:"allowed"`
	Missing []Permission `json:"missing"`
}

// MissingStrings returns Missing as plain strings
func (d Decision) MissingStrings() []string {
	out := make([]string, len(d.Missing))
	for i, p := range d.Missing {
		out[i] = string(p)
	}
	return out
}

// Gate answers "may this principal do this"
type Gate struct {
	resolver *Resolver
	mode     MatchMode
	audit    audit.Logger
	metrics  *observability.Metrics
}

// GateOption configures a Gate
type GateOption func(*Gate)

// WithMatchMode sets how effective permissions satisfy a requirement
func WithMatchMode(mode MatchMode) GateOption {
	return func(g *Gate) {
		g.mode = mode
	}
}

// WithAuditLogger records denials to logger
func WithAuditLogger(logger audit.Logger) GateOption {
	return func(g *Gate) {
		g.audit = logger
	}
}

// WithMetrics counts decisions
func WithMetrics(metrics *observability.Metrics) GateOption {
	return func(g *Gate) {
		g.metrics = metrics
	}
}

// NewGate creates a gate over resolver. The default match mode is literal.
func NewGate(resolver *Resolver, opts ...GateOption) *Gate {
	g := &Gate{
		resolver: resolver,
		mode:     MatchLiteral,
		audit:    audit.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = observability.NewNopMetrics()
	}
	return g
}

// Mode returns the gate's match mode
func (g *Gate) Mode() MatchMode {
	return g.mode
}

// Resolver returns the gate's resolver
func (g *Gate) Resolver() *Resolver {
	return g.resolver
}

// Authorize checks that p holds every permission in required.
// Missing lists the unsatisfied permissions in the order given, without
// duplicates. A nil principal is an Unauthenticated error.
func (g *Gate) Authorize(ctx context.Context, p *auth.Principal, required ...Permission) (Decision, error) {
	if p == nil {
		g.metrics.AuthzDecisionsTotal.WithLabelValues("unauthenticated").Inc()
		return Decision{}, apperr.Unauthenticated("authentication required")
	}

	effective, err := g.resolver.Resolve(ctx, p)
	if err != nil {
		g.metrics.AuthzDecisionsTotal.WithLabelValues("error").Inc()
		return Decision{}, apperr.Internal("failed to resolve permissions", err)
	}

	missing := make([]Permission, 0)
	seen := make(map[Permission]struct{}, len(required))
	for _, perm := range required {
		if _, dup := seen[perm]; dup {
			continue
		}
		seen[perm] = struct{}{}
		if !effective.Satisfies(perm, g.mode) {
			missing = append(missing, perm)
		}
	}

	decision := Decision{Allowed: len(missing) == 0, Missing: missing}
	if decision.Allowed {
		g.metrics.AuthzDecisionsTotal.WithLabelValues("allowed").Inc()
		return decision, nil
	}

	g.metrics.AuthzDecisionsTotal.WithLabelValues("denied").Inc()
	g.recordDenial(ctx, p, decision)
	return decision, nil
}

// Require is Authorize that turns a denial into a Forbidden error
func (g *Gate) Require(ctx context.Context, p *auth.Principal, required ...Permission) error {
	decision, err := g.Authorize(ctx, p, required...)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return apperr.Forbidden(decision.MissingStrings())
	}
	return nil
}

func (g *Gate) recordDenial(ctx context.Context, p *auth.Principal, decision Decision) {
	event := audit.NewEvent(ctx, audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied)
	event.UserID = p.UserID
	event.Message = "missing " + strings.Join(decision.MissingStrings(), ",")
	event.Metadata["missing"] = decision.MissingStrings()
	event.Metadata["roles"] = p.Roles
	audit.Record(ctx, g.audit, event)
}
