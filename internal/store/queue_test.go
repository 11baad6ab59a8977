package store

import (
	"testing"

	"github.com/jhmac/sneebly/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSpec(id string) *types.Spec {
	return &types.Spec{
		ID:               id,
		Kind:             types.SpecKindFix,
		FilePath:         "src/handler.go",
		Description:      "fix nil deref",
		SuccessCriteria:  []string{"no panic on empty body"},
	}
}

func TestEnqueueAndListPreservesOrder(t *testing.T) {
	ws := t.TempDir()
	s, err := Open(ws)
	require.NoError(t, err)
	q := NewSpecQueue(s)

	require.NoError(t, q.Enqueue(newTestSpec("b-spec"), QueuePending))
	require.NoError(t, q.Enqueue(newTestSpec("a-spec"), QueuePending))

	specs, err := q.List(QueuePending)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "a-spec", specs[0].ID)
	assert.Equal(t, "b-spec", specs[1].ID)
}

func TestEnqueueRejectsInvalidSpec(t *testing.T) {
	ws := t.TempDir()
	s, err := Open(ws)
	require.NoError(t, err)
	q := NewSpecQueue(s)

	err = q.Enqueue(&types.Spec{}, QueuePending)
	assert.Error(t, err)
}

func TestMoveTransitionsQueueMembership(t *testing.T) {
	ws := t.TempDir()
	s, err := Open(ws)
	require.NoError(t, err)
	q := NewSpecQueue(s)

	spec := newTestSpec("move-me")
	require.NoError(t, q.Enqueue(spec, QueueApproved))

	spec.Status = types.StatusCompleted
	require.NoError(t, q.Move(spec, QueueApproved, QueueCompleted))

	pending, err := q.List(QueueApproved)
	require.NoError(t, err)
	assert.Empty(t, pending)

	completed, err := q.List(QueueCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, types.StatusCompleted, completed[0].Status)
}

func TestListOnMissingDirectoryReturnsEmpty(t *testing.T) {
	ws := t.TempDir()
	s, err := Open(ws)
	require.NoError(t, err)
	q := NewSpecQueue(s)

	specs, err := q.List(QueueFailed)
	require.NoError(t, err)
	assert.Empty(t, specs)
}
