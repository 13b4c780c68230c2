package users

import (
	"context"
	"testing"
	"time"

	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/platinummonkey/sprintflow/pkg/async"
	"github.com/platinummonkey/sprintflow/pkg/audit"
	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_RegisterDefaultsToViewer(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:    " Ada@Example.com ",
		Name:     "Ada",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, []string{DefaultRole}, user.Roles)
	assert.NotEqual(t, "correct horse", user.PasswordHash)
	assert.NoError(t, auth.CheckPassword(user.PasswordHash, "correct horse"))
}

func TestService_RegisterValidates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"bad email", RegisterInput{Email: "not-an-email", Name: "A", Password: "longenough"}},
		{"display name email", RegisterInput{Email: "Ada <ada@example.com>", Name: "A", Password: "longenough"}},
		{"missing name", RegisterInput{Email: "a@example.com", Password: "longenough"}},
		{"short password", RegisterInput{Email: "a@example.com", Name: "A", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			assert.ErrorIs(t, err, apperr.ErrBadRequest)
		})
	}
}

func TestService_RegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	in := RegisterInput{Email: "ada@example.com", Name: "Ada", Password: "longenough"}

	_, err := svc.Register(ctx, in)
	require.NoError(t, err)

	in.Email = "ADA@example.com"
	_, err = svc.Register(ctx, in)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestService_LoginEmbedsResolvedPermissions(t *testing.T) {
	auditLogger := newRecordingAudit()
	svc, tokens := newTestService(t, WithAuditLogger(auditLogger))
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{
		Email:    "dev@example.com",
		Name:     "Dev",
		Password: "longenough",
		Roles:    []string{"developer"},
	})
	require.NoError(t, err)

	result, err := svc.Login(ctx, LoginInput{Email: "DEV@example.com", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, result.User.ID)
	assert.True(t, result.ExpiresAt.After(time.Now()))

	principal, err := tokens.Validate(result.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, principal.UserID)
	assert.Equal(t, "dev@example.com", principal.Email)
	assert.Equal(t, []string{"developer"}, principal.Roles)
	assert.ElementsMatch(t, []string{"issue.read", "issue.write", "board.read", "board.write"}, principal.Permissions)

	require.True(t, async.Drain(2*time.Second))
	types := map[audit.EventType]bool{}
	for len(auditLogger.events) > 0 {
		types[(<-auditLogger.events).EventType] = true
	}
	assert.True(t, types[audit.EventTypeAuthRegister])
	assert.True(t, types[audit.EventTypeAuthLogin])
}

func TestService_LoginRejectsBadCredentials(t *testing.T) {
	auditLogger := newRecordingAudit()
	svc, _ := newTestService(t, WithAuditLogger(auditLogger))
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "ada@example.com", Name: "Ada", Password: "longenough"})
	require.NoError(t, err)
	require.True(t, async.Drain(2*time.Second))
	<-auditLogger.events

	_, err = svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "longenough"})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = svc.Login(ctx, LoginInput{Email: "ada@example.com"})
	assert.ErrorIs(t, err, apperr.ErrBadRequest)

	require.True(t, async.Drain(2*time.Second))
	require.Len(t, auditLogger.events, 2)
	for i := 0; i < 2; i++ {
		event := <-auditLogger.events
		assert.Equal(t, audit.EventTypeAuthLoginFailed, event.EventType)
		assert.Equal(t, audit.EventStatusFailure, event.Status)
	}
}
