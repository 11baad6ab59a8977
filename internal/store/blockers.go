package store

import (
	"github.com/jhmac/sneebly/internal/types"
)

type blockersFile struct {
	Blockers []types.Blocker `json:"blockers"`
}

// BlockerStore persists blockers.json.
type BlockerStore struct {
	layout Layout
}

// NewBlockerStore constructs a BlockerStore bound to an opened Store.
func NewBlockerStore(s *Store) *BlockerStore {
	return &BlockerStore{layout: s.Layout}
}

// All returns every blocker, active or resolved.
func (b *BlockerStore) All() ([]types.Blocker, error) {
	var f blockersFile
	if err := readJSON(b.layout.Blockers, &f); err != nil {
		return nil, err
	}
	return f.Blockers, nil
}

// Active returns only blockers whose status has not reached a terminal
// resolved/dismissed state.
func (b *BlockerStore) Active() ([]types.Blocker, error) {
	all, err := b.All()
	if err != nil {
		return nil, err
	}
	var active []types.Blocker
	for _, blocker := range all {
		if blocker.Status == types.BlockerActive {
			active = append(active, blocker)
		}
	}
	return active, nil
}

// Upsert inserts a new blocker or replaces an existing one by ID.
func (b *BlockerStore) Upsert(blocker types.Blocker) error {
	var f blockersFile
	if err := readJSON(b.layout.Blockers, &f); err != nil {
		return err
	}

	replaced := false
	for i := range f.Blockers {
		if f.Blockers[i].ID == blocker.ID {
			f.Blockers[i] = blocker
			replaced = true
			break
		}
	}
	if !replaced {
		f.Blockers = append(f.Blockers, blocker)
	}

	return writeJSONAtomic(b.layout.Blockers, f)
}
