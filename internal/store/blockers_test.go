package store

import (
	"testing"
	"time"

	"github.com/jhmac/sneebly/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockerStoreUpsertInsertsThenReplaces(t *testing.T) {
	ws := t.TempDir()
	s, err := Open(ws)
	require.NoError(t, err)
	bs := NewBlockerStore(s)

	b := types.Blocker{ID: "blk-1", SpecID: "spec-1", Status: types.BlockerActive, CreatedAt: time.Now()}
	require.NoError(t, bs.Upsert(b))

	b.Status = types.BlockerResolved
	require.NoError(t, bs.Upsert(b))

	all, err := bs.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, types.BlockerResolved, all[0].Status)
}

func TestBlockerStoreActiveFiltersResolved(t *testing.T) {
	ws := t.TempDir()
	s, err := Open(ws)
	require.NoError(t, err)
	bs := NewBlockerStore(s)

	require.NoError(t, bs.Upsert(types.Blocker{ID: "a", Status: types.BlockerActive}))
	require.NoError(t, bs.Upsert(types.Blocker{ID: "b", Status: types.BlockerResolved}))

	active, err := bs.Active()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a", active[0].ID)
}
