package elon

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhmac/sneebly/internal/dispatch"
	"github.com/jhmac/sneebly/internal/llm"
	"github.com/jhmac/sneebly/internal/logging"
	"github.com/jhmac/sneebly/internal/store"
	"github.com/jhmac/sneebly/internal/types"
)

// EvaluationResult is what Evaluate produced for the current constraint.
type EvaluationResult string

const (
	EvalResolved   EvaluationResult = "resolved"
	EvalActive     EvaluationResult = "active"
	EvalInProgress EvaluationResult = "in-progress" // plan steps still pending/in-flight
	EvalNone       EvaluationResult = "none"          // no current constraint to evaluate
)

// Evaluate implements §4.5's Evaluation phase: count completed vs failed
// plan-step specs for the current constraint, and — once every step has
// reached a terminal state — re-crawl and dispatch the evaluator subagent
// to judge whether the constraint is actually resolved.
func (c *Cycle) Evaluate(ctx context.Context) (EvaluationResult, error) {
	log, err := c.ELON.LoadLog()
	if err != nil {
		return EvalNone, fmt.Errorf("load elon log: %w", err)
	}
	if log.Current == nil {
		return EvalNone, nil
	}

	completed, failed, total := c.countPlanSteps(log.Current)
	if completed+failed < total {
		return EvalInProgress, nil
	}

	var findings []string
	if c.Collector != nil {
		if crawl, err := c.Collector.Crawl(log.Current.VerificationPages); err == nil {
			for _, f := range crawl.Findings {
				findings = append(findings, f.Message)
			}
		} else {
			logging.ELONError("evaluation re-crawl failed: %v", err)
		}
	}

	verdict, err := c.dispatchEvaluator(ctx, log.Current, findings, failed)
	if err != nil {
		return EvalNone, err
	}

	now := c.now()
	if verdict.Verdict == string(EvalResolved) {
		log.Solved = append(log.Solved, *log.Current)
		log.Current = nil
		logging.ELON("constraint resolved and archived")
		if err := c.ELON.SaveLog(log); err != nil {
			return EvalNone, err
		}
		return EvalResolved, nil
	}

	log.FailedHistory = append(log.FailedHistory, types.ConstraintEvaluation{
		ConstraintID: log.Current.ID,
		CheckedAt:    now,
		Evidence:     verdict.Evidence,
		Verdict:      "active",
	})
	if err := c.ELON.SaveLog(log); err != nil {
		return EvalNone, err
	}
	logging.ELON("constraint still active after evaluation: %s", strings.Join(verdict.Evidence, "; "))
	return EvalActive, nil
}

func (c *Cycle) countPlanSteps(report *types.ConstraintReport) (completed, failed, total int) {
	total = len(report.Plan)
	for _, step := range report.Plan {
		if spec, err := c.Queue.Load(store.QueueCompleted, step.ID); err == nil && spec != nil {
			completed++
			continue
		}
		if spec, err := c.Queue.Load(store.QueueFailed, step.ID); err == nil && spec != nil {
			failed++
		}
	}
	return completed, failed, total
}

func (c *Cycle) dispatchEvaluator(ctx context.Context, report *types.ConstraintReport, freshFindings []string, failedSteps int) (*evaluatorResponse, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Constraint: %s\n", report.LimitingFactor.Description)
	fmt.Fprintf(&b, "Completion criteria: %s\n", strings.Join(report.CompletionCriteria, "; "))
	fmt.Fprintf(&b, "Plan steps failed: %d / %d\n", failedSteps, len(report.Plan))
	if len(freshFindings) > 0 {
		fmt.Fprintf(&b, "Fresh crawl findings:\n- %s\n", strings.Join(freshFindings, "\n- "))
	}
	b.WriteString(`Respond with {"verdict":"resolved"|"active","evidence":["..."]}.` + "\n")

	result, err := c.Dispatcher.Dispatch(ctx, dispatch.Task{
		AgentName: "elon-evaluator",
		Kind:      dispatch.KindELONEvaluator,
		Payload:   b.String(),
		ModelTier: llm.TierHaiku,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch evaluator: %w", err)
	}
	if result.RawText == "" {
		return nil, fmt.Errorf("evaluator call skipped: %s", result.Reason)
	}
	return parseEvaluatorResponse(result.RawText)
}
