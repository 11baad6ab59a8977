package safety

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityGuardVerifyDetectsTamper(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "AGENTS"), []byte("v1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "SOUL"), []byte("soul-v1"), 0o644))

	guard := NewIdentityGuard(ws, []string{"SOUL", "AGENTS"})
	require.NoError(t, guard.Initialize())

	result, err := guard.Verify()
	require.NoError(t, err)
	assert.True(t, result.Valid)

	// Tamper with one byte.
	require.NoError(t, os.WriteFile(filepath.Join(ws, "AGENTS"), []byte("v2"), 0o644))

	result, err = guard.Verify()
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, "AGENTS", result.Changes[0].File)

	halted, reason := guard.Halted()
	assert.True(t, halted)
	assert.NotEmpty(t, reason)
}

func TestIdentityGuardAcknowledgeChangesClearsHalt(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "AGENTS"), []byte("v1"), 0o644))

	guard := NewIdentityGuard(ws, []string{"AGENTS"})
	require.NoError(t, guard.Initialize())

	require.NoError(t, os.WriteFile(filepath.Join(ws, "AGENTS"), []byte("v2"), 0o644))
	_, err := guard.Verify()
	require.NoError(t, err)
	halted, _ := guard.Halted()
	require.True(t, halted)

	require.NoError(t, guard.AcknowledgeChanges())
	result, err := guard.Verify()
	require.NoError(t, err)
	assert.True(t, result.Valid)
	halted, _ = guard.Halted()
	assert.False(t, halted)
}

func TestIdentityGuardIsIdentityFile(t *testing.T) {
	guard := NewIdentityGuard(t.TempDir(), []string{"SOUL", "AGENTS"})
	assert.True(t, guard.IsIdentityFile("AGENTS"))
	assert.True(t, guard.IsIdentityFile("/abs/path/to/SOUL"))
	assert.False(t, guard.IsIdentityFile("handler.go"))
}
