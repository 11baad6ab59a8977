package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhmac/sneebly/internal/dispatch"
	"github.com/jhmac/sneebly/internal/llm"
	"github.com/jhmac/sneebly/internal/safety"
)

type fakeClient struct {
	response string
}

func (c *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.response, nil
}

func (c *fakeClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.response, nil
}

func newTestDispatcher(t *testing.T, client *fakeClient) *dispatch.Dispatcher {
	t.Helper()
	return newTestDispatcherForClient(t, client)
}

// newTestDispatcherForClient accepts any llm.Client, not just *fakeClient,
// so tests needing a stateful (e.g. sequenced) response can wire one in.
func newTestDispatcherForClient(t *testing.T, client llm.Client) *dispatch.Dispatcher {
	t.Helper()
	root := t.TempDir()
	identity := safety.NewIdentityGuard(root, nil)
	validator := safety.NewOutputValidator(root, identity, nil, nil)
	sanitizer := safety.NewSanitizer(nil)
	budget := dispatch.NewBudget(5.0, 4.0)
	return dispatch.New(client, budget, dispatch.IdentityFiles{Soul: "be careful"}, dispatch.SubagentDefinitions{
		dispatch.KindELONPlanner: "you are the planner",
		dispatch.KindELONBuilder: "you are the builder",
		dispatch.KindAutoFixer:   "you are the auto-fixer",
	}, validator, sanitizer)
}

func TestPlannerPlanBuildsOrderedGraph(t *testing.T) {
	resp := `{"steps":[{"action":"create","filePath":"a.go","description":"add a","dependsOn":[]},{"action":"replace","filePath":"b.go","description":"fix b","dependsOn":[0],"testCommand":"go test ./...","endpoint":"/b"}]}`
	client := &fakeClient{response: resp}
	p := NewPlanner(newTestDispatcher(t, client))

	graph, err := p.Plan(context.Background(), "stabilize b", "b.go 500s on bad input")
	require.NoError(t, err)
	require.Len(t, graph.Steps(), 2)

	s1, ok := graph.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "a.go", s1.FilePath)
	assert.Empty(t, s1.DependsOn)

	s2, ok := graph.Get("s2")
	require.True(t, ok)
	assert.Equal(t, []string{"s1"}, s2.DependsOn)
	assert.Equal(t, "/b", s2.Endpoint)
}

func TestPlannerPlanRejectsOutOfRangeDependency(t *testing.T) {
	resp := `{"steps":[{"action":"create","filePath":"a.go","description":"add a","dependsOn":[5]}]}`
	client := &fakeClient{response: resp}
	p := NewPlanner(newTestDispatcher(t, client))

	_, err := p.Plan(context.Background(), "goal", "")
	require.Error(t, err)
}

func TestPlannerPlanRejectsEmptyStepList(t *testing.T) {
	client := &fakeClient{response: `{"steps":[]}`}
	p := NewPlanner(newTestDispatcher(t, client))

	_, err := p.Plan(context.Background(), "goal", "")
	require.Error(t, err)
}

func TestPlannerPlanParsesFencedJSON(t *testing.T) {
	client := &fakeClient{response: "```json\n{\"steps\":[{\"action\":\"create\",\"filePath\":\"a.go\",\"description\":\"add a\"}]}\n```"}
	p := NewPlanner(newTestDispatcher(t, client))

	graph, err := p.Plan(context.Background(), "goal", "")
	require.NoError(t, err)
	require.Len(t, graph.Steps(), 1)
}
