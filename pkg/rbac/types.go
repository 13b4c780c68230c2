package rbac

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/platinummonkey/sprintflow/pkg/apperr"
)

// Permission is a "<resource>.<action>" capability token, e.g. "issue.write".
// Either segment may be "*".
type Permission string

// Wildcard is the segment that matches anything in wildcard match mode
const Wildcard = "*"

// ParsePermission validates and normalizes a permission string
func ParsePermission(s string) (Permission, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.Contains(s, ":") {
		return "", apperr.BadRequest("invalid permission %q: use <resource>.<action>", s)
	}
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return "", apperr.BadRequest("invalid permission %q: use <resource>.<action>", s)
	}
	for _, part := range parts {
		if !validSegment(part) {
			return "", apperr.BadRequest("invalid permission %q: bad segment %q", s, part)
		}
	}
	return Permission(s), nil
}

// MustParsePermissions parses a list of literal permissions and panics on error
func MustParsePermissions(values ...string) []Permission {
	perms := make([]Permission, 0, len(values))
	for _, v := range values {
		p, err := ParsePermission(v)
		if err != nil {
			panic(err)
		}
		perms = append(perms, p)
	}
	return perms
}

func validSegment(seg string) bool {
	if seg == Wildcard {
		return true
	}
	if seg == "" {
		return false
	}
	for _, r := range seg {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return false
		}
	}
	return true
}

// Resource returns the resource segment
func (p Permission) Resource() string {
	res, _, _ := strings.Cut(string(p), ".")
	return res
}

// Action returns the action segment
func (p Permission) Action() string {
	_, act, _ := strings.Cut(string(p), ".")
	return act
}

// MatchMode controls how effective permissions satisfy a requirement
type MatchMode string

const (
	// MatchLiteral is exact string containment
	MatchLiteral MatchMode = "literal"
	// MatchWildcard lets a "*" segment in a granted permission match any value
	MatchWildcard MatchMode = "wildcard"
)

// ParseMatchMode parses a match mode name; empty selects literal
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchLiteral:
		return MatchLiteral, nil
	case MatchWildcard:
		return MatchWildcard, nil
	default:
		return "", fmt.Errorf("unknown permission match mode %q", s)
	}
}

// Grants reports whether the granted permission p satisfies required under mode
func (p Permission) Grants(required Permission, mode MatchMode) bool {
	if p == required {
		return true
	}
	if mode != MatchWildcard {
		return false
	}
	return segmentMatches(p.Resource(), required.Resource()) && segmentMatches(p.Action(), required.Action())
}

func segmentMatches(granted, required string) bool {
	return granted == Wildcard || granted == required
}

// PermissionSet is an unordered set of permissions
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from perms, collapsing duplicates
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Add inserts perms into the set
func (s PermissionSet) Add(perms ...Permission) {
	for _, p := range perms {
		s[p] = struct{}{}
	}
}

// Has reports literal membership
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Satisfies reports whether some member grants required under mode
func (s PermissionSet) Satisfies(required Permission, mode MatchMode) bool {
	if s.Has(required) {
		return true
	}
	if mode != MatchWildcard {
		return false
	}
	for granted := range s {
		if granted.Grants(required, mode) {
			return true
		}
	}
	return false
}

// List returns the members sorted
func (s PermissionSet) List() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted members as plain strings
func (s PermissionSet) Strings() []string {
	list := s.List()
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = string(p)
	}
	return out
}

// Role is a named bundle of permissions
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// PermissionRecord is a row of the permissions table
type PermissionRecord struct {
	ID          string     `json:"id"`
	Name        Permission `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Built-in role names
const (
	RoleOrgAdmin     = "org_admin"
	RoleProjectAdmin = "project_admin"
	RoleScrumMaster  = "scrum_master"
	RoleDeveloper    = "developer"
	RoleQA           = "qa"
	RoleViewer       = "viewer"
)

// Built-in permissions
const (
	PermUserRead      Permission = "user.read"
	PermUserWrite     Permission = "user.write"
	PermProjectRead   Permission = "project.read"
	PermProjectWrite  Permission = "project.write"
	PermIssueRead     Permission = "issue.read"
	PermIssueWrite    Permission = "issue.write"
	PermSprintRead    Permission = "sprint.read"
	PermSprintWrite   Permission = "sprint.write"
	PermBoardRead     Permission = "board.read"
	PermBoardWrite    Permission = "board.write"
	PermSettingsAdmin Permission = "settings.admin"
	PermRBACManage    Permission = "rbac.manage"
)

// BuiltInPermissions returns the seeded permissions
func BuiltInPermissions() []Permission {
	return []Permission{
		PermUserRead, PermUserWrite,
		PermProjectRead, PermProjectWrite,
		PermIssueRead, PermIssueWrite,
		PermSprintRead, PermSprintWrite,
		PermBoardRead, PermBoardWrite,
		PermSettingsAdmin, PermRBACManage,
	}
}

// BuiltInRoles returns the seeded roles and their grants
func BuiltInRoles() []Role {
	return []Role{
		{
			Name:        RoleOrgAdmin,
			Description: "Full access to the organization",
			Permissions: BuiltInPermissions(),
		},
		{
			Name:        RoleProjectAdmin,
			Description: "Manage projects and everything in them",
			Permissions: []Permission{
				PermProjectRead, PermProjectWrite,
				PermIssueRead, PermIssueWrite,
				PermBoardRead, PermBoardWrite,
				PermSprintRead, PermSprintWrite,
				PermUserRead,
			},
		},
		{
			Name:        RoleScrumMaster,
			Description: "Run sprints and arrange boards",
			Permissions: []Permission{
				PermProjectRead,
				PermSprintRead, PermSprintWrite,
				PermIssueRead,
				PermBoardRead, PermBoardWrite,
			},
		},
		{
			Name:        RoleDeveloper,
			Description: "Work issues and move cards",
			Permissions: []Permission{
				PermProjectRead, PermSprintRead,
				PermIssueRead, PermIssueWrite,
				PermBoardRead, PermBoardWrite,
			},
		},
		{
			Name:        RoleQA,
			Description: "Verify and update issues",
			Permissions: []Permission{
				PermProjectRead,
				PermIssueRead, PermIssueWrite,
				PermBoardRead,
			},
		},
		{
			Name:        RoleViewer,
			Description: "Read-only access",
			Permissions: []Permission{
				PermProjectRead, PermSprintRead,
				PermIssueRead, PermBoardRead,
			},
		},
	}
}
