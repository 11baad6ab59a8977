// Package specloop implements the Spec Execution Loop: it pulls one spec
// out of the approved queue and drives it to completion through a bounded
// number of executor-subagent iterations, applying every accepted change
// through the Code Engine's transaction manager so a failed verification
// always rolls back cleanly.
package specloop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jhmac/sneebly/internal/codeengine"
	"github.com/jhmac/sneebly/internal/dispatch"
	"github.com/jhmac/sneebly/internal/logging"
	"github.com/jhmac/sneebly/internal/safety"
	"github.com/jhmac/sneebly/internal/store"
	"github.com/jhmac/sneebly/internal/types"
)

// Outcome is the closed set of states a spec's run through the loop can
// end in.
type Outcome string

const (
	OutcomeCompleted       Outcome = "completed"
	OutcomeStuck           Outcome = "stuck"
	OutcomeMaxIterations   Outcome = "max-iterations"
	OutcomeTestFailed      Outcome = "test-failed"
	OutcomeRuntimeFailed   Outcome = "runtime-failed"
	OutcomeValidationFailed Outcome = "validation-failed"
)

const (
	defaultMaxIterations = 10
	defaultMaxStuck      = 3
)

// CommandRunner executes a spec's declared test command and reports
// whether it passed. The Planner and the Heartbeat Orchestrator's
// codebase-discovery pass share the same shape for running whitelisted
// shell commands; the loop takes it as a dependency so it never has to
// know whether that's a real exec.Command or a test double.
type CommandRunner func(ctx context.Context, command string) (passed bool, output string, err error)

// Runner drives the Spec Execution Loop for one spec at a time.
type Runner struct {
	RepoRoot      string
	Dispatcher    *dispatch.Dispatcher
	Engine        *codeengine.Engine
	Transactions  *codeengine.TransactionManager
	Queue         *store.SpecQueue
	Blockers      *store.BlockerStore
	Decisions     *store.DecisionLog
	Sanitizer     *safety.Sanitizer
	RunCommand    CommandRunner
	HealthURL     string
	HealthTimeout time.Duration
	MaxIterations int
	MaxStuck      int
	Now           func() time.Time
}

// NewRunner constructs a Runner with the fixed defaults (10 iterations, 3
// consecutive stuck responses) applied where the caller leaves a field
// zero.
func NewRunner(repoRoot string, dispatcher *dispatch.Dispatcher, engine *codeengine.Engine, txm *codeengine.TransactionManager, queue *store.SpecQueue, blockers *store.BlockerStore, decisions *store.DecisionLog, sanitizer *safety.Sanitizer) *Runner {
	return &Runner{
		RepoRoot:      repoRoot,
		Dispatcher:    dispatcher,
		Engine:        engine,
		Transactions:  txm,
		Queue:         queue,
		Blockers:      blockers,
		Decisions:     decisions,
		Sanitizer:     sanitizer,
		MaxIterations: defaultMaxIterations,
		MaxStuck:      defaultMaxStuck,
		Now:           time.Now,
	}
}

// Run drives spec through the loop until it completes or hits a
// termination state. The spec is expected to currently live in the
// approved queue; on return it has been moved to completed (on success)
// or failed (every other outcome), and a blocker has been raised for
// every non-completion outcome.
func (r *Runner) Run(ctx context.Context, spec *types.Spec) (Outcome, error) {
	maxIter := r.MaxIterations
	if maxIter == 0 {
		maxIter = defaultMaxIterations
	}
	maxStuck := r.MaxStuck
	if maxStuck == 0 {
		maxStuck = defaultMaxStuck
	}

	stuckCount := 0
	retryGuidance := ""

	for iteration := 1; iteration <= maxIter; iteration++ {
		select {
		case <-ctx.Done():
			return r.terminate(spec, OutcomeStuck, "cancelled: "+ctx.Err().Error())
		default:
		}

		currentCode, _ := r.readCurrentCode(spec.FilePath)
		relatedContext := BuildRelatedContext(r.RepoRoot, spec.FilePath, currentCode)

		payload, err := buildPayload(r.Sanitizer, spec, currentCode, relatedContext, retryGuidance)
		if err != nil {
			return r.terminate(spec, OutcomeStuck, fmt.Sprintf("payload assembly failed: %v", err))
		}

		result, err := r.Dispatcher.Dispatch(ctx, dispatch.Task{
			AgentName: "spec-executor",
			Kind:      dispatch.KindSpecExecutor,
			Payload:   payload,
		})
		if err != nil {
			return r.terminate(spec, OutcomeStuck, fmt.Sprintf("dispatch error: %v", err))
		}

		switch result.Action {
		case "skip":
			stuckCount++
			r.recordIteration(spec, iteration, "stuck", "dispatch skipped: "+result.Reason)
			if stuckCount >= maxStuck {
				return r.terminate(spec, OutcomeStuck, "dispatcher skipped "+result.Reason+" repeatedly")
			}
			continue
		case "queue":
			if isValidationFailure(result.Reason) {
				return r.terminate(spec, OutcomeValidationFailed, result.Reason)
			}
			stuckCount++
			retryGuidance = "previous response could not be parsed: " + result.Reason
			r.recordIteration(spec, iteration, "stuck", retryGuidance)
			if stuckCount >= maxStuck {
				return r.terminate(spec, OutcomeStuck, "response parsing failed repeatedly")
			}
			continue
		}

		resp := result.Parsed.Response
		switch resp.Shape {
		case types.ShapeComplete:
			r.recordIteration(spec, iteration, "complete", "")
			return r.terminate(spec, OutcomeCompleted, "")

		case types.ShapeStuck:
			stuckCount++
			retryGuidance = resp.Reason
			r.recordIteration(spec, iteration, "stuck", resp.Reason)
			if stuckCount >= maxStuck {
				return r.terminate(spec, OutcomeStuck, resp.Reason)
			}
			continue
		}

		edits := changeSetEdits(resp)
		outcome, detail, verified, err := r.applyAndVerify(ctx, spec, edits)
		if err != nil {
			stuckCount++
			retryGuidance = detail
			r.recordIteration(spec, iteration, string(outcome), detail)
			if stuckCount >= maxStuck {
				return r.terminate(spec, OutcomeStuck, detail)
			}
			continue
		}
		if !verified {
			r.recordIteration(spec, iteration, string(outcome), detail)
			return r.terminate(spec, outcome, detail)
		}

		stuckCount = 0
		retryGuidance = ""
		r.recordIteration(spec, iteration, "applied", detail)
	}

	return r.terminate(spec, OutcomeMaxIterations, fmt.Sprintf("exhausted %d iterations without SPEC_COMPLETE", maxIter))
}

func isValidationFailure(reason string) bool {
	return strings.HasPrefix(reason, "validation-failed")
}

func (r *Runner) readCurrentCode(relPath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(r.RepoRoot, relPath))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// changeSetEdits flattens whichever of the executor response's shapes is
// populated into a uniform edit list.
func changeSetEdits(resp *types.ExecutorResponse) []codeengine.FileEdit {
	var edits []codeengine.FileEdit
	if resp.Change != nil {
		edits = append(edits, toFileEdit(*resp.Change))
	}
	for _, c := range resp.Changes {
		edits = append(edits, toFileEdit(c))
	}
	for _, f := range resp.Files {
		edits = append(edits, codeengine.FileEdit{RelPath: f.FilePath, NewCode: f.Content, Kind: codeengine.EditCreate})
	}
	return edits
}

func toFileEdit(item types.ChangeSetItem) codeengine.FileEdit {
	kind := codeengine.EditModify
	if item.Op == types.OpCreate {
		kind = codeengine.EditCreate
	}
	newCode := item.NewCode
	if newCode == "" {
		newCode = item.Content
	}
	return codeengine.FileEdit{RelPath: item.FilePath, OldCode: item.OldCode, NewCode: newCode, Kind: kind}
}

// applyAndVerify commits edits through a transaction and, if the commit
// succeeds, runs the spec's test command and/or runtime health probe. Any
// verification failure rolls the transaction back before returning.
func (r *Runner) applyAndVerify(ctx context.Context, spec *types.Spec, edits []codeengine.FileEdit) (Outcome, string, bool, error) {
	if len(edits) == 0 {
		return OutcomeStuck, "executor response declared a change shape with no edits", false, fmt.Errorf("no edits")
	}

	txn, err := r.Transactions.Begin()
	if err != nil {
		return OutcomeStuck, err.Error(), false, err
	}
	for _, edit := range edits {
		if err := r.Transactions.AddEdit(txn, edit); err != nil {
			r.Transactions.Abort(txn, err.Error())
			return OutcomeStuck, err.Error(), false, err
		}
	}
	if err := r.Transactions.Prepare(txn); err != nil {
		return OutcomeStuck, err.Error(), false, err
	}
	if err := r.Transactions.Commit(txn); err != nil {
		return OutcomeStuck, err.Error(), false, err
	}

	if spec.TestCommand != "" && r.RunCommand != nil {
		passed, output, err := r.RunCommand(ctx, spec.TestCommand)
		if err != nil || !passed {
			_ = r.Transactions.Rollback(txn)
			detail := output
			if err != nil {
				detail = err.Error()
			}
			return OutcomeTestFailed, "test command failed: " + detail, false, nil
		}
	}

	if r.HealthURL != "" {
		timeout := r.HealthTimeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		health := codeengine.PollHealth(ctx, r.HealthURL, timeout, 500*time.Millisecond)
		if !health.Healthy {
			_ = r.Transactions.Rollback(txn)
			reason := "runtime health check failed"
			if health.Err != nil {
				reason = health.Err.Error()
			}
			return OutcomeRuntimeFailed, reason, false, nil
		}
	}

	return "", fmt.Sprintf("applied %d edit(s), txn=%s", len(edits), txn.ID), true, nil
}

func (r *Runner) recordIteration(spec *types.Spec, iteration int, outcome, detail string) {
	spec.IterationRecord = append(spec.IterationRecord, types.IterationEntry{
		Iteration: iteration,
		Outcome:   outcome,
		Detail:    detail,
		Timestamp: r.Now(),
	})
	logging.SpecLoop("spec %s iteration %d outcome=%s", spec.ID, iteration, outcome)
}

// terminate moves spec to its terminal queue (completed on success,
// failed otherwise), raising a blocker for every non-completion outcome.
func (r *Runner) terminate(spec *types.Spec, outcome Outcome, detail string) (Outcome, error) {
	now := r.Now()
	if outcome == OutcomeCompleted {
		spec.Status = types.StatusCompleted
		if err := r.Queue.Move(spec, store.QueueApproved, store.QueueCompleted); err != nil {
			return outcome, err
		}
		logging.SpecLoop("spec %s completed", spec.ID)
		return outcome, nil
	}

	spec.Status = types.StatusFailed
	if err := r.Queue.Move(spec, store.QueueApproved, store.QueueFailed); err != nil {
		return outcome, err
	}

	if r.Blockers != nil {
		blocker := types.Blocker{
			ID:         spec.ID + "-" + string(outcome),
			SpecID:     spec.ID,
			TargetFile: spec.FilePath,
			Reason:     fmt.Sprintf("%s: %s", outcome, detail),
			Attempts:   len(spec.IterationRecord),
			Status:     types.BlockerActive,
			CreatedAt:  now,
		}
		if err := r.Blockers.Upsert(blocker); err != nil {
			logging.SpecLoopError("failed to raise blocker for spec %s: %v", spec.ID, err)
		}
	}

	logging.SpecLoopError("spec %s terminated outcome=%s detail=%s", spec.ID, outcome, detail)
	return outcome, nil
}
