package dispatch

import (
	"context"
	"testing"

	"github.com/jhmac/sneebly/internal/llm"
	"github.com/jhmac/sneebly/internal/safety"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	response string
	err      error
	calls    int
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithSystem(ctx, "", prompt)
}

func (f *fakeClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func newTestDispatcher(client llm.Client, budget *Budget) *Dispatcher {
	identity := safety.NewIdentityGuard("/workspace", nil)
	validator := safety.NewOutputValidator("/workspace", identity, nil, nil)
	sanitizer := safety.NewSanitizer(nil)
	return New(client, budget, IdentityFiles{Soul: "be careful"}, SubagentDefinitions{
		KindSpecExecutor: "you are the spec executor",
	}, validator, sanitizer)
}

func TestDispatchSkipsOnBudgetExceeded(t *testing.T) {
	client := &fakeClient{response: "SPEC_COMPLETE"}
	budget := NewBudget(0.0, 0.0)
	d := newTestDispatcher(client, budget)

	result, err := d.Dispatch(context.Background(), Task{AgentName: "x", Kind: KindSpecExecutor, Payload: "do it"})
	require.NoError(t, err)
	assert.Equal(t, "skip", result.Action)
	assert.Equal(t, "budget-exceeded", result.Reason)
	assert.Zero(t, client.calls)
}

func TestDispatchSkipsOnDryRun(t *testing.T) {
	client := &fakeClient{response: "SPEC_COMPLETE"}
	budget := NewBudget(10, 5)
	d := newTestDispatcher(client, budget)

	result, err := d.Dispatch(context.Background(), Task{AgentName: "x", Kind: KindSpecExecutor, Payload: "do it", DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, "skip", result.Action)
	assert.Zero(t, client.calls)
}

func TestDispatchParsesSuccessfulCompletion(t *testing.T) {
	client := &fakeClient{response: "SPEC_COMPLETE"}
	budget := NewBudget(10, 5)
	d := newTestDispatcher(client, budget)

	result, err := d.Dispatch(context.Background(), Task{AgentName: "x", Kind: KindSpecExecutor, Payload: "do it"})
	require.NoError(t, err)
	assert.Equal(t, "dispatch", result.Action)
	assert.Equal(t, 1, client.calls)
	assert.Greater(t, budget.SpentSoFar(), 0.0)
}

func TestDispatchRejectsValidationFailingChange(t *testing.T) {
	client := &fakeClient{response: `{"status":"change","change":{"filePath":"../etc/passwd","newCode":"x"}}`}
	budget := NewBudget(10, 5)
	d := newTestDispatcher(client, budget)

	result, err := d.Dispatch(context.Background(), Task{AgentName: "x", Kind: KindSpecExecutor, Payload: "do it"})
	require.NoError(t, err)
	assert.Equal(t, "queue", result.Action)
	assert.Contains(t, result.Reason, "validation-failed")
}

func TestDispatchHandlesVendorErrorAsSkip(t *testing.T) {
	client := &fakeClient{err: &llm.VendorError{Kind: llm.ErrorKindAuth, Message: "bad key"}}
	budget := NewBudget(10, 5)
	d := newTestDispatcher(client, budget)

	result, err := d.Dispatch(context.Background(), Task{AgentName: "x", Kind: KindSpecExecutor, Payload: "do it"})
	require.NoError(t, err)
	assert.Equal(t, "skip", result.Action)
	assert.Contains(t, result.Reason, "vendor-error")
}
