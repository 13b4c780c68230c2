// Package rbac provides role-based access control.
//
// # Overview
//
// Permissions are "<resource>.<action>" strings such as "issue.write". Roles
// are named bundles of permissions and users hold roles. Three pieces answer
// an authorization question:
//
//   1. Store: the roles, permissions and role_permissions tables
//   2. Resolver: a principal's effective permission set
//   3. Gate: checks a required list against the effective set
//
// # Resolution
//
// A token issued at login carries the resolved permissions, and the resolver
// trusts them without touching the store. Otherwise permissions are the union
// over the principal's roles. CachedStore sits in front of the store with an
// in-process LRU and Redis:
//
//	store := rbac.NewStore(db)
//	cached := rbac.NewCachedStore(store, redisClient, rbac.DefaultCacheConfig(), metrics)
//	gate := rbac.NewGate(rbac.NewResolver(cached), rbac.WithMatchMode(rbac.MatchLiteral))
//
// # Match modes
//
// In literal mode (the default) a requirement is met only by the identical
// permission. In wildcard mode a granted "project.*", "*.read" or "*.*" also
// satisfies matching requirements.
//
// # Usage Example
//
//	decision, err := gate.Authorize(ctx, principal, rbac.PermBoardWrite)
//	if err != nil {
//		return err
//	}
//	if !decision.Allowed {
//		return apperr.Forbidden(decision.MissingStrings())
//	}
//
// As middleware:
//
//	router.Handle("/boards", gate.RequirePermissions(rbac.PermBoardRead)(handler))
//
// Denials are written to the audit log in the background.
package rbac
