package rbac

import (
	"testing"

	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePermission(t *testing.T) {
	tests := []struct {
		in      string
		want    Permission
		wantErr bool
	}{
		{in: "issue.write", want: "issue.write"},
		{in: "  Board.Read ", want: "board.read"},
		{in: "project.*", want: "project.*"},
		{in: "*.read", want: "*.read"},
		{in: "issue:write", wantErr: true},
		{in: "issue", wantErr: true},
		{in: "issue.write.extra", wantErr: true},
		{in: ".write", wantErr: true},
		{in: "iss ue.write", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePermission(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPermission_Segments(t *testing.T) {
	p := Permission("sprint.write")
	assert.Equal(t, "sprint", p.Resource())
	assert.Equal(t, "write", p.Action())
}

func TestPermission_Grants(t *testing.T) {
	tests := []struct {
		granted  Permission
		required Permission
		mode     MatchMode
		want     bool
	}{
		{"issue.write", "issue.write", MatchLiteral, true},
		{"issue.read", "issue.write", MatchLiteral, false},
		{"issue.*", "issue.write", MatchLiteral, false},
		{"issue.*", "issue.write", MatchWildcard, true},
		{"*.write", "issue.write", MatchWildcard, true},
		{"*.*", "board.read", MatchWildcard, true},
		{"issue.*", "board.write", MatchWildcard, false},
		{"issue.*", "issue.*", MatchLiteral, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.granted.Grants(tt.required, tt.mode),
			"%s grants %s in %s mode", tt.granted, tt.required, tt.mode)
	}
}

func TestParseMatchMode(t *testing.T) {
	mode, err := ParseMatchMode("")
	require.NoError(t, err)
	assert.Equal(t, MatchLiteral, mode)

	mode, err = ParseMatchMode("Wildcard")
	require.NoError(t, err)
	assert.Equal(t, MatchWildcard, mode)

	_, err = ParseMatchMode("regex")
	assert.Error(t, err)
}

func TestPermissionSet(t *testing.T) {
	set := NewPermissionSet("issue.write", "board.read", "issue.write")
	assert.Len(t, set, 2)
	assert.Equal(t, []string{"board.read", "issue.write"}, set.Strings())

	assert.True(t, set.Satisfies("board.read", MatchLiteral))
	assert.False(t, set.Satisfies("board.write", MatchWildcard))

	set.Add("board.*")
	assert.False(t, set.Satisfies("board.write", MatchLiteral))
	assert.True(t, set.Satisfies("board.write", MatchWildcard))
}

func TestBuiltInRoles_UseKnownPermissions(t *testing.T) {
	known := NewPermissionSet(BuiltInPermissions()...)
	for _, role := range BuiltInRoles() {
		for _, perm := range role.Permissions {
			assert.True(t, known.Has(perm), "%s grants unknown permission %s", role.Name, perm)
		}
	}
}
