package sprints

import (
	"context"
	"testing"
	"time"

	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_CreateValidation(t *testing.T) {
	_, store := setupTestDB(t)
	svc := NewService(store, WithProjects(fakeProjects{"p-1": true}))
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateSprintInput
	}{
		{"missing project", CreateSprintInput{Name: "Sprint 1"}},
		{"missing name", CreateSprintInput{ProjectID: "p-1", Name: "  "}},
		{"unknown project", CreateSprintInput{ProjectID: "p-404", Name: "Sprint 1"}},
		{"bad start date", CreateSprintInput{ProjectID: "p-1", Name: "Sprint 1", StartDate: strPtr("05/01/2026")}},
		{"end before start", CreateSprintInput{ProjectID: "p-1", Name: "Sprint 1",
			StartDate: strPtr("2026-01-19"), EndDate: strPtr("2026-01-05")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			assert.ErrorIs(t, err, apperr.ErrBadRequest)
		})
	}

	sprint, err := svc.Create(ctx, CreateSprintInput{ProjectID: "p-1", Name: " Sprint 1 ", StartDate: strPtr(""),
		EndDate: strPtr("2026-01-19")})
	require.NoError(t, err)
	assert.Equal(t, "Sprint 1", sprint.Name)
	assert.Nil(t, sprint.StartDate)
	assert.Equal(t, "2026-01-19", *sprint.EndDate)
}

func TestService_UpdateStateRules(t *testing.T) {
	_, store := setupTestDB(t)
	svc := NewService(store)
	ctx := context.Background()

	sprint, err := svc.Create(ctx, CreateSprintInput{ProjectID: "p-1", Name: "Sprint 1"})
	require.NoError(t, err)

	_, err = svc.UpdateState(ctx, sprint.ID, StateCompleted)
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
	_, err = svc.UpdateState(ctx, sprint.ID, State("paused"))
	assert.ErrorIs(t, err, apperr.ErrBadRequest)

	got, err := svc.UpdateState(ctx, sprint.ID, StateStarted)
	require.NoError(t, err)
	assert.Equal(t, StateStarted, got.State)
}

func TestService_CompleteDefaultsToBacklog(t *testing.T) {
	db, store := setupTestDB(t)
	hub := newFakeBroadcaster()
	svc := NewService(store, WithBroadcaster(hub))
	ctx := context.Background()

	sprint, err := svc.Create(ctx, CreateSprintInput{ProjectID: "p-1", Name: "Sprint 1"})
	require.NoError(t, err)
	<-hub.ch
	insertIssue(t, db, "i-1", "p-1", "to_do", &sprint.ID)

	_, err = svc.Complete(ctx, sprint.ID, CarryOver("sideways"))
	assert.ErrorIs(t, err, apperr.ErrBadRequest)

	result, err := svc.Complete(ctx, sprint.ID, "")
	require.NoError(t, err)
	assert.Equal(t, CarryOverBacklog, result.MoveIncomplete)
	assert.Equal(t, 1, result.Moved)
	assert.Nil(t, sprintOf(t, db, "i-1"))

	select {
	case e := <-hub.ch:
		assert.Equal(t, ProjectRoom("p-1"), e.room)
		assert.Equal(t, EventSprintCompleted, e.event)
	case <-time.After(2 * time.Second):
		t.Fatal("no realtime event emitted")
	}
}

func TestService_ValidateSprint(t *testing.T) {
	_, store := setupTestDB(t)
	svc := NewService(store)
	ctx := context.Background()

	sprint, err := svc.Create(ctx, CreateSprintInput{ProjectID: "p-1", Name: "Sprint 1"})
	require.NoError(t, err)

	assert.NoError(t, svc.ValidateSprint(ctx, "p-1", sprint.ID))
	assert.ErrorIs(t, svc.ValidateSprint(ctx, "p-2", sprint.ID), apperr.ErrBadRequest)
	assert.ErrorIs(t, svc.ValidateSprint(ctx, "p-1", "s-404"), apperr.ErrBadRequest)

	_, err = svc.Complete(ctx, sprint.ID, CarryOverBacklog)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.ValidateSprint(ctx, "p-1", sprint.ID), apperr.ErrBadRequest)
}
