// Package codeengine implements sneebly's primitive mutation operations:
// backup, apply (exact and fuzzy), create, multi-file transactions, syntax
// verification, runtime verification, and rollback. Every operation
// re-checks the path policy and identity-file deny list before touching
// disk (see internal/safety).
package codeengine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jhmac/sneebly/internal/logging"
	"github.com/jhmac/sneebly/internal/safety"
	"github.com/jhmac/sneebly/internal/store"
)

// Engine is the code engine's entry point, bound to a project root, a
// backup store, and the output validator every operation passes through
// before it is allowed to touch disk.
type Engine struct {
	root      string
	backups   *store.BackupStore
	validator *safety.OutputValidator
	now       func() time.Time
}

// New constructs an Engine rooted at projectRoot.
func New(root string, backups *store.BackupStore, validator *safety.OutputValidator) *Engine {
	return &Engine{root: root, backups: backups, validator: validator, now: time.Now}
}

func (e *Engine) absPath(relPath string) string {
	return filepath.Join(e.root, relPath)
}

// checkPath runs the shared validator pass every mutating operation must
// clear before any file on disk is touched.
func (e *Engine) checkPath(relPath, content string) error {
	result := e.validator.Validate(safety.ProposedAction{
		Kind:    safety.ActionEditFile,
		Path:    relPath,
		Content: content,
	})
	if !result.Allowed {
		return fmt.Errorf("codeengine: %s: %s", relPath, result.Reason)
	}
	return nil
}

// Backup copies relPath's current content to a timestamped backup path and
// returns the backup's id (its absolute path under the store's backups
// directory). A missing target is backed up as an empty snapshot so the
// backup-existence invariant holds even for pending creates.
func (e *Engine) Backup(relPath string) (string, error) {
	content, err := os.ReadFile(e.absPath(relPath))
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("codeengine: backup read %s: %w", relPath, err)
	}
	id, err := e.backups.Capture(relPath, content, e.now())
	if err != nil {
		return "", err
	}
	logging.CodeEngineDebug("backup captured relPath=%s id=%s", relPath, id)
	return id, nil
}
