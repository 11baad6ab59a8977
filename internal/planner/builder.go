package planner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jhmac/sneebly/internal/codeengine"
	"github.com/jhmac/sneebly/internal/dispatch"
	"github.com/jhmac/sneebly/internal/llm"
	"github.com/jhmac/sneebly/internal/logging"
	"github.com/jhmac/sneebly/internal/safety"
	"github.com/jhmac/sneebly/internal/store"
	"github.com/jhmac/sneebly/internal/types"
)

// CommandRunner executes a step's declared shell command and reports
// whether it passed. Same shape as the Spec Execution Loop's
// CommandRunner — both route through the Safety Kernel's whitelist — kept
// as its own type here rather than imported so the Builder never takes an
// import-time dependency on the specloop package.
type CommandRunner func(ctx context.Context, command string) (passed bool, output string, err error)

// StepBuildOutcome is the terminal state one step's build attempt reached.
type StepBuildOutcome string

const (
	StepApplied       StepBuildOutcome = "applied"
	StepDispatchFailed StepBuildOutcome = "dispatch-failed"
	StepTestFailed     StepBuildOutcome = "test-failed"
	StepVerifyFailed   StepBuildOutcome = "verify-failed"
)

// StepResult records what happened when the Builder tried to build one
// step.
type StepResult struct {
	StepID  string
	Outcome StepBuildOutcome
	Detail  string
	Verify  *VerifyReport
}

// BuildOutcome summarises an entire graph's build run.
type BuildOutcome string

const (
	BuildCompleted BuildOutcome = "completed"
	BuildStalled   BuildOutcome = "stalled" // pending steps remain, all blocked behind a failed dependency
)

// BuildResult is everything the Builder produced for one graph.
type BuildResult struct {
	Outcome BuildOutcome
	Steps   []StepResult
}

const defaultMaxStepAttempts = 2

// Builder executes a planned Graph in dependency order: each eligible
// step goes through the builder subagent, escalating to the higher-effort
// tier on the second attempt if the first came back empty (§4.7), commits
// its change through a Code Engine transaction, then runs its declared test
// command and verifies the result, rolling the transaction back if either
// fails.
type Builder struct {
	RepoRoot        string
	Dispatcher      *dispatch.Dispatcher
	Transactions    *codeengine.TransactionManager
	Verifier        *Verifier
	Decisions       *store.DecisionLog
	Sanitizer       *safety.Sanitizer
	RunCommand      CommandRunner
	MaxStepAttempts int
	Now             func() time.Time
}

// NewBuilder constructs a Builder with §4.7's default of two attempts per
// step (normal tier, then escalated tier) applied where left zero.
func NewBuilder(repoRoot string, dispatcher *dispatch.Dispatcher, txm *codeengine.TransactionManager, verifier *Verifier, decisions *store.DecisionLog, sanitizer *safety.Sanitizer) *Builder {
	return &Builder{
		RepoRoot:        repoRoot,
		Dispatcher:      dispatcher,
		Transactions:    txm,
		Verifier:        verifier,
		Decisions:       decisions,
		Sanitizer:       sanitizer,
		MaxStepAttempts: defaultMaxStepAttempts,
		Now:             time.Now,
	}
}

// Build drives graph to completion or stall: each round collects every
// currently-eligible step and builds it, marking the graph as the round
// progresses so the next round's Eligible() reflects what just finished.
func (b *Builder) Build(ctx context.Context, graph *Graph) (*BuildResult, error) {
	var results []StepResult
	for !graph.AllTerminal() {
		eligible := graph.Eligible()
		if len(eligible) == 0 {
			break
		}
		for _, step := range eligible {
			select {
			case <-ctx.Done():
				return &BuildResult{Outcome: BuildStalled, Steps: results}, ctx.Err()
			default:
			}

			res := b.buildStep(ctx, step)
			results = append(results, res)
			if res.Outcome == StepApplied {
				step.Status = StepDone
			} else {
				step.Status = StepFailed
			}
		}
	}

	outcome := BuildCompleted
	if graph.Stalled() || !graph.AllTerminal() {
		outcome = BuildStalled
	}
	return &BuildResult{Outcome: outcome, Steps: results}, nil
}

func (b *Builder) buildStep(ctx context.Context, step *Step) StepResult {
	maxAttempts := b.MaxStepAttempts
	if maxAttempts == 0 {
		maxAttempts = defaultMaxStepAttempts
	}

	currentCode, _ := b.readCurrentCode(step.FilePath)
	retryGuidance := ""

	var result dispatch.Result
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		payload, err := buildStepRequest(b.Sanitizer, step, currentCode, "", retryGuidance)
		if err != nil {
			return StepResult{StepID: step.ID, Outcome: StepDispatchFailed, Detail: err.Error()}
		}

		tier := llm.Tier("")
		if attempt > 1 {
			tier = llm.TierOpus
		}

		var dispatchErr error
		result, dispatchErr = b.Dispatcher.Dispatch(ctx, dispatch.Task{
			AgentName: "builder",
			Kind:      dispatch.KindELONBuilder,
			Payload:   payload,
			ModelTier: tier,
		})
		if dispatchErr != nil {
			return StepResult{StepID: step.ID, Outcome: StepDispatchFailed, Detail: dispatchErr.Error()}
		}
		if result.RawText != "" {
			break
		}
		retryGuidance = "previous attempt returned an empty response"
		logging.PlannerDebug("step %s empty response on attempt %d, escalating tier", step.ID, attempt)
	}

	if result.RawText == "" {
		return StepResult{StepID: step.ID, Outcome: StepDispatchFailed, Detail: "empty response after " + fmt.Sprint(maxAttempts) + " attempts"}
	}
	if result.Action != "dispatch" || result.Parsed == nil || result.Parsed.Response == nil {
		return StepResult{StepID: step.ID, Outcome: StepDispatchFailed, Detail: result.Reason}
	}

	resp := result.Parsed.Response
	if resp.Shape == types.ShapeStuck {
		return StepResult{StepID: step.ID, Outcome: StepDispatchFailed, Detail: resp.Reason}
	}

	edit, ok := b.stepEdit(step, resp)
	if !ok {
		return StepResult{StepID: step.ID, Outcome: StepDispatchFailed, Detail: "response did not declare a usable change"}
	}

	return b.applyVerifyAndCommit(ctx, step, edit)
}

func (b *Builder) stepEdit(step *Step, resp *types.ExecutorResponse) (codeengine.FileEdit, bool) {
	item := resp.Change
	if item == nil && len(resp.Changes) > 0 {
		item = &resp.Changes[0]
	}
	if item != nil {
		kind := codeengine.EditModify
		if item.Op == types.OpCreate {
			kind = codeengine.EditCreate
		}
		newCode := item.NewCode
		if newCode == "" {
			newCode = item.Content
		}
		return codeengine.FileEdit{RelPath: item.FilePath, OldCode: item.OldCode, NewCode: newCode, Kind: kind}, true
	}
	if len(resp.Files) > 0 {
		f := resp.Files[0]
		return codeengine.FileEdit{RelPath: f.FilePath, NewCode: f.Content, Kind: codeengine.EditCreate}, true
	}
	return codeengine.FileEdit{}, false
}

func (b *Builder) applyVerifyAndCommit(ctx context.Context, step *Step, edit codeengine.FileEdit) StepResult {
	txn, err := b.Transactions.Begin()
	if err != nil {
		return StepResult{StepID: step.ID, Outcome: StepDispatchFailed, Detail: err.Error()}
	}
	if err := b.Transactions.AddEdit(txn, edit); err != nil {
		b.Transactions.Abort(txn, err.Error())
		return StepResult{StepID: step.ID, Outcome: StepDispatchFailed, Detail: err.Error()}
	}
	if err := b.Transactions.Prepare(txn); err != nil {
		return StepResult{StepID: step.ID, Outcome: StepDispatchFailed, Detail: err.Error()}
	}
	if err := b.Transactions.Commit(txn); err != nil {
		return StepResult{StepID: step.ID, Outcome: StepDispatchFailed, Detail: err.Error()}
	}

	if step.TestCommand != "" && b.RunCommand != nil {
		passed, output, err := b.RunCommand(ctx, step.TestCommand)
		if err != nil || !passed {
			_ = b.Transactions.Rollback(txn)
			detail := output
			if err != nil {
				detail = err.Error()
			}
			return StepResult{StepID: step.ID, Outcome: StepTestFailed, Detail: "test command failed: " + detail}
		}
	}

	report := b.Verifier.Verify(ctx, step, edit.NewCode)
	if !report.Passed {
		_ = b.Transactions.Rollback(txn)
		b.recordDecision(step, "verify-failed", report)
		return StepResult{StepID: step.ID, Outcome: StepVerifyFailed, Detail: "verification failed", Verify: &report}
	}

	b.recordDecision(step, "applied", report)
	return StepResult{StepID: step.ID, Outcome: StepApplied, Detail: fmt.Sprintf("applied via txn %s", txn.ID), Verify: &report}
}

func (b *Builder) recordDecision(step *Step, action string, report VerifyReport) {
	if b.Decisions == nil {
		return
	}
	now := b.now()
	_ = b.Decisions.Record(store.Decision{
		Timestamp: now,
		Action:    "builder-" + action,
		Detail: map[string]interface{}{
			"stepId":   step.ID,
			"filePath": step.FilePath,
			"checks":   report.Checks,
		},
	}, "")
}

func (b *Builder) readCurrentCode(relPath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(b.RepoRoot, relPath))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}
