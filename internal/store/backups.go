package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BackupStore writes pre-change snapshots to backups/<file>.<ts>.bak. The
// code engine's transaction manager calls Capture for every file it is
// about to mutate, strictly before any apply, so the backup-existence
// invariant holds for every persisted spec outcome.
type BackupStore struct {
	layout Layout
}

// NewBackupStore constructs a BackupStore bound to an opened Store.
func NewBackupStore(s *Store) *BackupStore {
	return &BackupStore{layout: s.Layout}
}

// Capture snapshots the current content of relPath (relative to the
// workspace) before it is mutated, returning the backup's absolute path.
// If the file does not exist yet (a pending create), it writes an empty
// snapshot so a backup record still exists for the invariant.
func (b *BackupStore) Capture(relPath string, currentContent []byte, at time.Time) (string, error) {
	safeName := flattenPath(relPath)
	backupPath := filepath.Join(b.layout.Backups, fmt.Sprintf("%s.%s.bak", safeName, at.UTC().Format("20060102T150405Z")))

	if err := os.MkdirAll(b.layout.Backups, 0o755); err != nil {
		return "", fmt.Errorf("store: create backups dir: %w", err)
	}
	if err := writeFileAtomic(backupPath, currentContent); err != nil {
		return "", err
	}
	return backupPath, nil
}

// flattenPath turns a relative path like "src/a/b.go" into a flat,
// collision-resistant backup filename "src_a_b.go".
func flattenPath(relPath string) string {
	out := make([]byte, 0, len(relPath))
	for i := 0; i < len(relPath); i++ {
		c := relPath[i]
		if c == '/' || c == '\\' {
			out = append(out, '_')
		} else {
			out = append(out, c)
		}
	}
	return string(out)
}
