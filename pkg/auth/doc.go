// Package auth provides identity primitives: the request Principal, HS256 session
// tokens and password hashing.
//
// Tokens carry the user's roles and, when issued at login, the resolved
// permission set:
//
//	tm, _ := auth.NewTokenManager(secret, "sprintflow", time.Hour)
//	token, expiresAt, err := tm.Issue(&auth.Principal{UserID: id, Roles: roles, Permissions: perms})
//	principal, err := tm.Validate(token)
//
// Embedded permissions are trusted until the token expires. Revoking a grant
// therefore takes effect for a user only after their token is reissued.
package auth
