package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jhmac/sneebly/internal/codeengine"
	"github.com/jhmac/sneebly/internal/dispatch"
	"github.com/jhmac/sneebly/internal/logging"
	"github.com/jhmac/sneebly/internal/store"
	"github.com/jhmac/sneebly/internal/types"
)

// FixOutcome is the terminal state one auto-fix attempt reached.
type FixOutcome string

const (
	FixApplied        FixOutcome = "applied"
	FixRedirected     FixOutcome = "redirected" // work was already done elsewhere, blocker dismissed
	FixDispatchFailed FixOutcome = "dispatch-failed"
	FixVerifyFailed   FixOutcome = "verify-failed"
	FixExhausted      FixOutcome = "attempts-exhausted"
)

// FixResult is what happened when the AutoFixer reacted to one blocker.
type FixResult struct {
	BlockerID string
	Outcome   FixOutcome
	Detail    string
}

const defaultMaxFixAttempts = 3

// autoFixerStep is a throwaway *Step wrapper so a blocker's fix can reuse
// Verifier.Verify, which is keyed off a Step rather than a raw file path.
func autoFixerStep(filePath string) *Step {
	return &Step{ID: "autofix", FilePath: filePath}
}

// rawFixResponse is the auto-fixer subagent's response shape: either a
// redirect (the problem no longer reproduces) or a single change.
type rawFixResponse struct {
	Status string                `json:"status"`
	Reason string                `json:"reason"`
	Change *types.ChangeSetItem  `json:"change"`
}

// AutoFixer reacts to active blockers left behind by a failed Spec
// Execution Loop or Builder run: it diagnoses the root cause, optionally
// recognises a "work already done elsewhere" case and redirects instead
// of editing, and otherwise emits a fix change set through the same
// Code Engine transaction and Verifier path the Builder uses. Bounded
// attempts and a stats-style record of what happened per blocker mirror
// the diagnose-patch-reverify discipline of a bounded self-repair loop,
// re-targeted here onto blocker reports instead of compiled tool
// artifacts.
type AutoFixer struct {
	RepoRoot        string
	Dispatcher      *dispatch.Dispatcher
	Transactions    *codeengine.TransactionManager
	Verifier        *Verifier
	Blockers        *store.BlockerStore
	Decisions       *store.DecisionLog
	MaxFixAttempts  int
	Now             func() time.Time
}

// NewAutoFixer constructs an AutoFixer with the default of three attempts
// per blocker before it's left active for an owner to resolve by hand.
func NewAutoFixer(repoRoot string, dispatcher *dispatch.Dispatcher, txm *codeengine.TransactionManager, verifier *Verifier, blockers *store.BlockerStore, decisions *store.DecisionLog) *AutoFixer {
	return &AutoFixer{
		RepoRoot:       repoRoot,
		Dispatcher:     dispatcher,
		Transactions:   txm,
		Verifier:       verifier,
		Blockers:       blockers,
		Decisions:      decisions,
		MaxFixAttempts: defaultMaxFixAttempts,
		Now:            time.Now,
	}
}

// RunOnce reacts to every currently active blocker and returns what
// happened to each. Blockers are processed independently: one blocker's
// exhaustion never stops the fixer from reaching the next.
func (f *AutoFixer) RunOnce(ctx context.Context) ([]FixResult, error) {
	if f.Blockers == nil {
		return nil, fmt.Errorf("planner: auto-fixer has no blocker store")
	}
	active, err := f.Blockers.Active()
	if err != nil {
		return nil, fmt.Errorf("list active blockers: %w", err)
	}

	results := make([]FixResult, 0, len(active))
	for _, blocker := range active {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}
		results = append(results, f.fixBlocker(ctx, blocker))
	}
	return results, nil
}

func (f *AutoFixer) fixBlocker(ctx context.Context, blocker types.Blocker) FixResult {
	maxAttempts := f.MaxFixAttempts
	if maxAttempts == 0 {
		maxAttempts = defaultMaxFixAttempts
	}
	if blocker.Attempts >= maxAttempts {
		return FixResult{BlockerID: blocker.ID, Outcome: FixExhausted, Detail: fmt.Sprintf("%d attempts already recorded", blocker.Attempts)}
	}

	currentCode, _ := f.readCurrentCode(blocker.TargetFile)
	payload := renderAutoFixerPayload(blocker, currentCode)

	result, err := f.Dispatcher.Dispatch(ctx, dispatch.Task{
		AgentName: "auto-fixer",
		Kind:      dispatch.KindAutoFixer,
		Payload:   payload,
	})
	if err != nil {
		return f.recordAttempt(blocker, FixResult{BlockerID: blocker.ID, Outcome: FixDispatchFailed, Detail: err.Error()})
	}
	if result.RawText == "" {
		return f.recordAttempt(blocker, FixResult{BlockerID: blocker.ID, Outcome: FixDispatchFailed, Detail: "empty response: " + result.Reason})
	}

	raw, err := parseFixResponse(result.RawText)
	if err != nil {
		return f.recordAttempt(blocker, FixResult{BlockerID: blocker.ID, Outcome: FixDispatchFailed, Detail: err.Error()})
	}

	if raw.Status == "redirect" {
		f.logDecision(blocker, "redirected", raw.Reason)
		blocker.Status = types.BlockerDismissed
		if f.Blockers != nil {
			if err := f.Blockers.Upsert(blocker); err != nil {
				logging.PlannerError("auto-fixer: dismiss blocker %s: %v", blocker.ID, err)
			}
		}
		return FixResult{BlockerID: blocker.ID, Outcome: FixRedirected, Detail: raw.Reason}
	}

	if raw.Change == nil {
		return f.recordAttempt(blocker, FixResult{BlockerID: blocker.ID, Outcome: FixDispatchFailed, Detail: "response declared neither redirect nor change"})
	}

	return f.applyFix(ctx, blocker, *raw.Change)
}

func (f *AutoFixer) applyFix(ctx context.Context, blocker types.Blocker, item types.ChangeSetItem) FixResult {
	kind := codeengine.EditModify
	if item.Op == types.OpCreate {
		kind = codeengine.EditCreate
	}
	newCode := item.NewCode
	if newCode == "" {
		newCode = item.Content
	}
	filePath := item.FilePath
	if filePath == "" {
		filePath = blocker.TargetFile
	}
	edit := codeengine.FileEdit{RelPath: filePath, OldCode: item.OldCode, NewCode: newCode, Kind: kind}

	txn, err := f.Transactions.Begin()
	if err != nil {
		return f.recordAttempt(blocker, FixResult{BlockerID: blocker.ID, Outcome: FixDispatchFailed, Detail: err.Error()})
	}
	if err := f.Transactions.AddEdit(txn, edit); err != nil {
		f.Transactions.Abort(txn, err.Error())
		return f.recordAttempt(blocker, FixResult{BlockerID: blocker.ID, Outcome: FixDispatchFailed, Detail: err.Error()})
	}
	if err := f.Transactions.Prepare(txn); err != nil {
		return f.recordAttempt(blocker, FixResult{BlockerID: blocker.ID, Outcome: FixDispatchFailed, Detail: err.Error()})
	}
	if err := f.Transactions.Commit(txn); err != nil {
		return f.recordAttempt(blocker, FixResult{BlockerID: blocker.ID, Outcome: FixDispatchFailed, Detail: err.Error()})
	}

	if f.Verifier != nil {
		report := f.Verifier.Verify(ctx, autoFixerStep(filePath), newCode)
		if !report.Passed {
			_ = f.Transactions.Rollback(txn)
			return f.recordAttempt(blocker, FixResult{BlockerID: blocker.ID, Outcome: FixVerifyFailed, Detail: "verification failed after fix"})
		}
	}

	f.logDecision(blocker, "applied", fmt.Sprintf("fix applied via txn %s", txn.ID))
	if err := f.resolveBlocker(blocker); err != nil {
		logging.PlannerError("auto-fixer: resolve blocker %s: %v", blocker.ID, err)
	}
	return FixResult{BlockerID: blocker.ID, Outcome: FixApplied, Detail: fmt.Sprintf("applied via txn %s", txn.ID)}
}

func (f *AutoFixer) recordAttempt(blocker types.Blocker, res FixResult) FixResult {
	blocker.Attempts++
	if f.Blockers != nil {
		if err := f.Blockers.Upsert(blocker); err != nil {
			logging.PlannerError("auto-fixer: record attempt for %s: %v", blocker.ID, err)
		}
	}
	f.logDecision(blocker, string(res.Outcome), res.Detail)
	return res
}

func (f *AutoFixer) resolveBlocker(blocker types.Blocker) error {
	if f.Blockers == nil {
		return nil
	}
	blocker.Status = types.BlockerResolved
	now := f.now()
	blocker.ResolvedAt = &now
	return f.Blockers.Upsert(blocker)
}

func (f *AutoFixer) logDecision(blocker types.Blocker, action, detail string) {
	if f.Decisions == nil {
		return
	}
	_ = f.Decisions.Record(store.Decision{
		Timestamp: f.now(),
		Action:    "auto-fixer-" + action,
		Detail: map[string]interface{}{
			"blockerId":  blocker.ID,
			"targetFile": blocker.TargetFile,
			"detail":     detail,
		},
	}, "")
}

func (f *AutoFixer) readCurrentCode(relPath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(f.RepoRoot, relPath))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *AutoFixer) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func parseFixResponse(raw string) (*rawFixResponse, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var resp rawFixResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("parse auto-fixer response: %w", err)
	}
	return &resp, nil
}
