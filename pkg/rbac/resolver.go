package rbac

import (
	"context"

	"github.com/platinummonkey/sprintflow/pkg/auth"
)

// Resolver computes a principal's effective permissions
type Resolver struct {
	store PermissionStore
}

// NewResolver creates a resolver over store
func NewResolver(store PermissionStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the effective permission set for p.
//
// Permissions carried by the token are used as-is and the store is not
// consulted. Otherwise the result is the union over p's roles. Store errors
// are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, p *auth.Principal) (PermissionSet, error) {
	if p == nil {
		return NewPermissionSet(), nil
	}

	if len(p.Permissions) > 0 {
		set := NewPermissionSet()
		for _, perm := range p.Permissions {
			set.Add(Permission(perm))
		}
		return set, nil
	}

	if len(p.Roles) == 0 {
		return NewPermissionSet(), nil
	}

	perms, err := r.store.GetPermissionsForRoles(ctx, p.Roles)
	if err != nil {
		return nil, err
	}
	return NewPermissionSet(perms...), nil
}
