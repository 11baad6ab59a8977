package store

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupStoreCaptureWritesSnapshot(t *testing.T) {
	ws := t.TempDir()
	s, err := Open(ws)
	require.NoError(t, err)
	bs := NewBackupStore(s)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	path, err := bs.Capture("src/handlers/users.go", []byte("package handlers\n"), at)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package handlers\n", string(data))
	assert.Contains(t, path, "src_handlers_users.go.20260102T030405Z.bak")
}

func TestBackupStoreCaptureOnNonexistentFileWritesEmptySnapshot(t *testing.T) {
	ws := t.TempDir()
	s, err := Open(ws)
	require.NoError(t, err)
	bs := NewBackupStore(s)

	path, err := bs.Capture("src/new_file.go", nil, time.Now())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}
