package projects

import (
	"context"
	"testing"
	"time"

	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_CreateWorkspaceAndProject(t *testing.T) {
	hub := newFakeBroadcaster()
	svc := NewService(setupTestStore(t), WithBroadcaster(hub))
	ctx := auth.WithPrincipal(context.Background(), &auth.Principal{UserID: "lead-1"})

	ws, err := svc.CreateWorkspace(ctx, CreateWorkspaceInput{Name: " Platform ", Key: "plat"})
	require.NoError(t, err)
	assert.Equal(t, "Platform", ws.Name)
	assert.Equal(t, "PLAT", ws.Key)

	p, err := svc.CreateProject(ctx, CreateProjectInput{WorkspaceID: ws.ID, Name: "Web", Key: "web"})
	require.NoError(t, err)
	assert.Equal(t, "WEB", p.Key)
	assert.Equal(t, DefaultProjectType, p.Type)
	require.NotNil(t, p.LeadID)
	assert.Equal(t, "lead-1", *p.LeadID)

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case e := <-hub.ch:
			assert.Equal(t, GlobalRoom, e.room)
			seen[e.event] = true
		case <-time.After(2 * time.Second):
			t.Fatal("no realtime event emitted")
		}
	}
	assert.True(t, seen[EventWorkspaceCreated])
	assert.True(t, seen[EventProjectCreated])
}

func TestService_CreateProjectValidation(t *testing.T) {
	svc := NewService(setupTestStore(t))
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateProjectInput
	}{
		{"missing workspace", CreateProjectInput{Name: "Web", Key: "WEB"}},
		{"missing name", CreateProjectInput{WorkspaceID: "w-1", Key: "WEB"}},
		{"bad key", CreateProjectInput{WorkspaceID: "w-1", Name: "Web", Key: "9-lives"}},
		{"unknown workspace", CreateProjectInput{WorkspaceID: "w-404", Name: "Web", Key: "WEB"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateProject(ctx, tt.in)
			assert.ErrorIs(t, err, apperr.ErrBadRequest)
		})
	}

	_, err := svc.CreateWorkspace(ctx, CreateWorkspaceInput{Name: "X", Key: "a"})
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
}

func TestService_ValidateProject(t *testing.T) {
	svc := NewService(setupTestStore(t))
	ctx := context.Background()

	ws, err := svc.CreateWorkspace(ctx, CreateWorkspaceInput{Name: "Platform", Key: "PLAT"})
	require.NoError(t, err)
	p, err := svc.CreateProject(ctx, CreateProjectInput{WorkspaceID: ws.ID, Name: "Web", Key: "WEB"})
	require.NoError(t, err)

	assert.NoError(t, svc.ValidateProject(ctx, p.ID))
	assert.ErrorIs(t, svc.ValidateProject(ctx, "p-404"), apperr.ErrBadRequest)
}
