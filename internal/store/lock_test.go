package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLockAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	lock := NewFileLock(path)

	require.NoError(t, lock.Acquire(time.Second, time.Minute))
	require.NoError(t, lock.Release())

	// Lock file should be gone after release.
	_, err := os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err))
}

func TestFileLockTimesOutUnderContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	holder := NewFileLock(path)
	require.NoError(t, holder.Acquire(time.Second, time.Minute))
	defer holder.Release()

	contender := NewFileLock(path)
	err := contender.Acquire(100*time.Millisecond, time.Minute)
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestFileLockReclaimsStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	stale := NewFileLock(path)
	require.NoError(t, stale.Acquire(time.Second, time.Minute))

	// Backdate the lock file's mtime to simulate a crashed holder.
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path+".lock", old, old))

	fresh := NewFileLock(path)
	require.NoError(t, fresh.Acquire(time.Second, 10*time.Millisecond))
	require.NoError(t, fresh.Release())
}
