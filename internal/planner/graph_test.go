package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraphRejectsUnknownDependency(t *testing.T) {
	_, err := NewGraph([]*Step{
		{ID: "s1", DependsOn: []string{"ghost"}},
	})
	require.Error(t, err)
}

func TestNewGraphRejectsDuplicateID(t *testing.T) {
	_, err := NewGraph([]*Step{
		{ID: "s1"},
		{ID: "s1"},
	})
	require.Error(t, err)
}

func TestNewGraphRejectsCycle(t *testing.T) {
	_, err := NewGraph([]*Step{
		{ID: "s1", DependsOn: []string{"s2"}},
		{ID: "s2", DependsOn: []string{"s1"}},
	})
	require.Error(t, err)
}

func TestGraphEligibleRespectsDependencyOrder(t *testing.T) {
	g, err := NewGraph([]*Step{
		{ID: "s1"},
		{ID: "s2", DependsOn: []string{"s1"}},
		{ID: "s3", DependsOn: []string{"s1", "s2"}},
	})
	require.NoError(t, err)

	eligible := g.Eligible()
	require.Len(t, eligible, 1)
	assert.Equal(t, "s1", eligible[0].ID)

	s1, _ := g.Get("s1")
	s1.Status = StepDone
	eligible = g.Eligible()
	require.Len(t, eligible, 1)
	assert.Equal(t, "s2", eligible[0].ID)

	s2, _ := g.Get("s2")
	s2.Status = StepDone
	eligible = g.Eligible()
	require.Len(t, eligible, 1)
	assert.Equal(t, "s3", eligible[0].ID)

	assert.False(t, g.AllTerminal())
	s3, _ := g.Get("s3")
	s3.Status = StepDone
	assert.True(t, g.AllTerminal())
}

func TestGraphStalledWhenDependencyFailed(t *testing.T) {
	g, err := NewGraph([]*Step{
		{ID: "s1"},
		{ID: "s2", DependsOn: []string{"s1"}},
	})
	require.NoError(t, err)

	s1, _ := g.Get("s1")
	s1.Status = StepFailed

	assert.True(t, g.Stalled())
	assert.Empty(t, g.Eligible())
	assert.False(t, g.AllTerminal())
}

func TestGraphNotStalledOnceAllTerminal(t *testing.T) {
	g, err := NewGraph([]*Step{{ID: "s1"}})
	require.NoError(t, err)
	s1, _ := g.Get("s1")
	s1.Status = StepDone
	assert.False(t, g.Stalled())
	assert.True(t, g.AllTerminal())
}
