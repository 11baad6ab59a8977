package planner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhmac/sneebly/internal/codeengine"
	"github.com/jhmac/sneebly/internal/safety"
	"github.com/jhmac/sneebly/internal/store"
	"github.com/jhmac/sneebly/internal/types"
)

func newTestAutoFixer(t *testing.T, client *fakeClient) (*AutoFixer, *store.BlockerStore, string) {
	t.Helper()
	root := t.TempDir()
	s, err := store.Open(root)
	require.NoError(t, err)

	identity := safety.NewIdentityGuard(root, nil)
	validator := safety.NewOutputValidator(root, identity, nil, nil)
	engine := codeengine.New(root, store.NewBackupStore(s), validator)
	txm := codeengine.NewTransactionManager(engine)
	decisions := store.NewDecisionLog(s)
	blockers := store.NewBlockerStore(s)
	verifier := NewVerifier(root, "", nil)

	f := NewAutoFixer(root, newTestDispatcher(t, client), txm, verifier, blockers, decisions)
	f.Now = func() time.Time { return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) }
	return f, blockers, root
}

func TestAutoFixerAppliesChangeAndResolvesBlocker(t *testing.T) {
	resp := `{"status":"change","change":{"filePath":"a.go","op":"create","content":"package a\n"}}`
	client := &fakeClient{response: resp}
	f, blockers, root := newTestAutoFixer(t, client)

	blocker := types.Blocker{ID: "b1", SpecID: "spec1", TargetFile: "a.go", Reason: "syntax error", Status: types.BlockerActive}
	require.NoError(t, blockers.Upsert(blocker))

	results, err := f.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, FixApplied, results[0].Outcome)

	data, err := os.ReadFile(filepath.Join(root, "a.go"))
	require.NoError(t, err)
	assert.Equal(t, "package a\n", string(data))

	active, err := blockers.Active()
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestAutoFixerRedirectsWithoutEditingFiles(t *testing.T) {
	resp := `{"status":"redirect","reason":"already fixed by a later spec"}`
	client := &fakeClient{response: resp}
	f, blockers, root := newTestAutoFixer(t, client)

	blocker := types.Blocker{ID: "b1", SpecID: "spec1", TargetFile: "a.go", Reason: "syntax error", Status: types.BlockerActive}
	require.NoError(t, blockers.Upsert(blocker))

	results, err := f.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, FixRedirected, results[0].Outcome)
	assert.Equal(t, "already fixed by a later spec", results[0].Detail)

	_, statErr := os.Stat(filepath.Join(root, "a.go"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestAutoFixerSkipsBlockerAtAttemptLimit(t *testing.T) {
	client := &fakeClient{response: ""}
	f, blockers, _ := newTestAutoFixer(t, client)
	f.MaxFixAttempts = 2

	blocker := types.Blocker{ID: "b1", SpecID: "spec1", TargetFile: "a.go", Reason: "syntax error", Status: types.BlockerActive, Attempts: 2}
	require.NoError(t, blockers.Upsert(blocker))

	results, err := f.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, FixExhausted, results[0].Outcome)
}

func TestAutoFixerRecordsAttemptOnDispatchFailure(t *testing.T) {
	client := &fakeClient{response: ""}
	f, blockers, _ := newTestAutoFixer(t, client)

	blocker := types.Blocker{ID: "b1", SpecID: "spec1", TargetFile: "a.go", Reason: "syntax error", Status: types.BlockerActive}
	require.NoError(t, blockers.Upsert(blocker))

	results, err := f.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, FixDispatchFailed, results[0].Outcome)

	active, err := blockers.Active()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].Attempts)
}
