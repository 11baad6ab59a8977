package codeengine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jhmac/sneebly/internal/logging"
)

// TransactionStatus is the state of a multi-file transaction in its
// two-phase-commit lifecycle.
type TransactionStatus string

const (
	TxnPending    TransactionStatus = "pending"
	TxnPreparing  TransactionStatus = "preparing"
	TxnReady      TransactionStatus = "ready"
	TxnCommitting TransactionStatus = "committing"
	TxnCommitted  TransactionStatus = "committed"
	TxnAborted    TransactionStatus = "aborted"
)

// EditKind distinguishes a modification of an existing file from the
// creation of a new one within a transaction.
type EditKind string

const (
	EditModify EditKind = "modify"
	EditCreate EditKind = "create"
)

// FileEdit is one proposed file mutation inside a transaction.
type FileEdit struct {
	RelPath string
	OldCode string // required for EditModify; ignored for EditCreate
	NewCode string
	Kind    EditKind
}

// Transaction is an in-flight or completed multi-file change. Every file
// touched is backed up via Engine.Backup before any edit is applied, so
// Rollback can always restore the pre-transaction state.
type Transaction struct {
	ID        string
	StartedAt time.Time
	Status    TransactionStatus
	Edits     []FileEdit
	BackupIDs map[string]string // relPath -> backup id
	created   map[string]bool   // relPath -> true if this txn created it
	Errors    []string
}

// TransactionManager runs sneebly's multi-file apply as a two-phase
// commit: Begin, AddEdit (snapshot), Prepare (syntax-check each file in a
// shadow copy), then Commit or Rollback, applied to a whole change set so
// a mid-transaction failure never leaves a partially-applied edit on disk.
type TransactionManager struct {
	mu     sync.Mutex
	engine *Engine
	active *Transaction
}

// NewTransactionManager builds a manager bound to engine.
func NewTransactionManager(engine *Engine) *TransactionManager {
	return &TransactionManager{engine: engine}
}

// Begin starts a new transaction. Only one transaction may be active at a
// time per manager.
func (tm *TransactionManager) Begin() (*Transaction, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.active != nil {
		return nil, fmt.Errorf("codeengine: transaction already active: %s", tm.active.ID)
	}

	txn := &Transaction{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Status:    TxnPending,
		BackupIDs: make(map[string]string),
		created:   make(map[string]bool),
	}
	tm.active = txn
	logging.CodeEngine("transaction started id=%s", txn.ID)
	return txn, nil
}

// AddEdit backs up relPath (unless already backed up this transaction) and
// queues the edit for Prepare/Commit.
func (tm *TransactionManager) AddEdit(txn *Transaction, edit FileEdit) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.active == nil || tm.active.ID != txn.ID {
		return fmt.Errorf("codeengine: transaction not active: %s", txn.ID)
	}
	if txn.Status != TxnPending {
		return fmt.Errorf("codeengine: transaction not pending: %s", txn.Status)
	}

	if _, done := txn.BackupIDs[edit.RelPath]; !done {
		id, err := tm.engine.Backup(edit.RelPath)
		if err != nil {
			return fmt.Errorf("codeengine: snapshot %s: %w", edit.RelPath, err)
		}
		txn.BackupIDs[edit.RelPath] = id
	}
	if edit.Kind == EditCreate {
		txn.created[edit.RelPath] = true
	}

	txn.Edits = append(txn.Edits, edit)
	return nil
}

// Prepare applies every edit into a shadow copy of each target (in memory,
// not on disk) and syntax-checks the result. It never mutates the real
// filesystem; Commit does the real write only after every edit in the
// set clears this check.
func (tm *TransactionManager) Prepare(txn *Transaction) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.active == nil || tm.active.ID != txn.ID {
		return fmt.Errorf("codeengine: transaction not active: %s", txn.ID)
	}
	txn.Status = TxnPreparing

	for _, edit := range txn.Edits {
		shadow, err := renderShadow(tm.engine.absPath(edit.RelPath), edit)
		if err != nil {
			txn.Errors = append(txn.Errors, err.Error())
			continue
		}
		if errs := CheckSyntax(edit.RelPath, shadow); len(errs) > 0 {
			for _, se := range errs {
				txn.Errors = append(txn.Errors, fmt.Sprintf("%s: %s", edit.RelPath, se.String()))
			}
		}
	}

	if len(txn.Errors) > 0 {
		txn.Status = TxnAborted
		logging.CodeEngineError("transaction prepare failed id=%s errors=%d", txn.ID, len(txn.Errors))
		return fmt.Errorf("codeengine: prepare failed: %d error(s)", len(txn.Errors))
	}
	txn.Status = TxnReady
	logging.CodeEngine("transaction prepared id=%s edits=%d", txn.ID, len(txn.Edits))
	return nil
}

// renderShadow computes what a file's content would be after edit,
// without writing it, so Prepare can syntax-check it in isolation.
func renderShadow(absPath string, edit FileEdit) (string, error) {
	if edit.Kind == EditCreate {
		return edit.NewCode, nil
	}
	raw, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", absPath, err)
	}
	original := string(raw)
	if idx := indexOf(original, edit.OldCode); idx >= 0 {
		return original[:idx] + edit.NewCode + original[idx+len(edit.OldCode):], nil
	}
	updated, err := fuzzyReplace(original, edit.OldCode, edit.NewCode)
	if err != nil {
		return "", fmt.Errorf("%s: %w", edit.RelPath, err)
	}
	return updated, nil
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

// Commit writes every edit to disk in order. Any single failure rolls
// back every file already committed in this pass before returning.
func (tm *TransactionManager) Commit(txn *Transaction) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.active == nil || tm.active.ID != txn.ID {
		return fmt.Errorf("codeengine: transaction not active: %s", txn.ID)
	}
	if txn.Status != TxnReady {
		return fmt.Errorf("codeengine: transaction not ready: %s", txn.Status)
	}
	txn.Status = TxnCommitting

	var applied []FileEdit
	for _, edit := range txn.Edits {
		var err error
		if edit.Kind == EditCreate {
			err = tm.engine.Create(edit.RelPath, edit.NewCode)
		} else {
			err = tm.engine.Apply(edit.RelPath, edit.OldCode, edit.NewCode)
		}
		if err != nil {
			tm.rollbackApplied(txn, applied)
			txn.Status = TxnAborted
			txn.Errors = append(txn.Errors, err.Error())
			logging.CodeEngineError("transaction commit failed id=%s: %v", txn.ID, err)
			tm.active = nil
			return fmt.Errorf("codeengine: commit failed, rolled back: %w", err)
		}
		applied = append(applied, edit)
	}

	txn.Status = TxnCommitted
	tm.active = nil
	logging.CodeEngine("transaction committed id=%s files=%d", txn.ID, len(txn.Edits))
	return nil
}

// Abort marks the active transaction aborted without writing anything.
func (tm *TransactionManager) Abort(txn *Transaction, reason string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.active != nil && tm.active.ID == txn.ID {
		txn.Status = TxnAborted
		txn.Errors = append(txn.Errors, reason)
		tm.active = nil
	}
}

// Rollback restores every file in txn from its pre-transaction backup,
// and removes any file this transaction created. Used both internally by
// Commit on partial failure, and externally when a later verification
// step (syntax passed, runtime failed) demands undoing an already
// committed transaction.
func (tm *TransactionManager) Rollback(txn *Transaction) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.rollbackApplied(txn, txn.Edits)
	txn.Status = TxnAborted
	if tm.active != nil && tm.active.ID == txn.ID {
		tm.active = nil
	}
	return nil
}

func (tm *TransactionManager) rollbackApplied(txn *Transaction, applied []FileEdit) {
	for _, edit := range applied {
		if txn.created[edit.RelPath] {
			_ = os.Remove(tm.engine.absPath(edit.RelPath))
			continue
		}
		backupID, ok := txn.BackupIDs[edit.RelPath]
		if !ok {
			continue
		}
		content, err := os.ReadFile(backupID)
		if err != nil {
			logging.CodeEngineError("rollback: read backup %s: %v", backupID, err)
			continue
		}
		abs := tm.engine.absPath(edit.RelPath)
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			logging.CodeEngineError("rollback: mkdir for %s: %v", edit.RelPath, err)
			continue
		}
		if err := os.WriteFile(abs, content, 0o644); err != nil {
			logging.CodeEngineError("rollback: restore %s: %v", edit.RelPath, err)
		}
	}
	logging.CodeEngine("transaction rolled back id=%s files=%d", txn.ID, len(applied))
}
