package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"bad request", BadRequest("name required"), KindBadRequest},
		{"wrapped not found", fmt.Errorf("loading board: %w", NotFound("Board not found")), KindNotFound},
		{"plain error", errors.New("boom"), KindInternal},
		{"conflict", Conflict("board %s changed", "b1"), KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorsIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFound("Board not found"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestInternalUnwrap(t *testing.T) {
	err := Internal("failed to load roles", sql.ErrConnDone)

	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.Equal(t, "failed to load roles: sql: connection is already closed", err.Error())
}

func TestForbiddenCarriesMissing(t *testing.T) {
	err := Forbidden([]string{"issue.write"})

	appErr, ok := As(fmt.Errorf("gate: %w", err))
	assert.True(t, ok)
	assert.Equal(t, KindForbidden, appErr.Kind)
	assert.Equal(t, []string{"issue.write"}, appErr.Missing)
}
