// Package elon implements the Constraint Solver: the strategic loop that
// observes the host app, asks the constraint analyst subagent which single
// limiting factor to attack next, and turns its plan into specs for the
// Spec Execution Loop to carry out. Run is a synchronous loop on the
// caller's goroutine, cancelled through its context.
package elon

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhmac/sneebly/internal/dispatch"
	"github.com/jhmac/sneebly/internal/logging"
	"github.com/jhmac/sneebly/internal/probe"
	"github.com/jhmac/sneebly/internal/store"
	"github.com/jhmac/sneebly/internal/types"
)

// CycleOutcome is what one observe->evaluate pass of the solver produced.
type CycleOutcome string

const (
	OutcomeEmitted   CycleOutcome = "emitted"   // a new constraint was accepted and its plan enqueued
	OutcomeDismissed CycleOutcome = "dismissed" // candidate was a near-duplicate or auth-noise framing
	OutcomeIdle      CycleOutcome = "idle"      // nothing to do: budget exhausted or analyst produced nothing usable
)

const (
	defaultMaxConstraintsPerRun     = 1
	defaultConsecutiveDismissalStop = 5
	defaultMinCyclePause            = 10 * time.Second
)

// Cycle drives the Constraint Solver's observe -> analyse -> plan ->
// execute -> evaluate loop for one host application.
type Cycle struct {
	RepoRoot   string
	Dispatcher *dispatch.Dispatcher
	Budget     *dispatch.Budget
	Queue      *store.SpecQueue
	ELON       *store.ELONStore
	Regression *store.RegressionTracker
	Collector  probe.Collector

	MaxConstraintsPerRun     int
	ConsecutiveDismissalStop int
	MinCyclePause            time.Duration

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration)
}

// NewCycle constructs a Cycle with §4.5's defaults (one constraint per
// run, stop after 5 consecutive dismissals, 10s minimum cycle pause).
func NewCycle(repoRoot string, dispatcher *dispatch.Dispatcher, budget *dispatch.Budget, queue *store.SpecQueue, elonStore *store.ELONStore, regression *store.RegressionTracker, collector probe.Collector) *Cycle {
	return &Cycle{
		RepoRoot:                 repoRoot,
		Dispatcher:               dispatcher,
		Budget:                   budget,
		Queue:                    queue,
		ELON:                     elonStore,
		Regression:               regression,
		Collector:                collector,
		MaxConstraintsPerRun:     defaultMaxConstraintsPerRun,
		ConsecutiveDismissalStop: defaultConsecutiveDismissalStop,
		MinCyclePause:            defaultMinCyclePause,
		Now:                      time.Now,
		Sleep:                    ctxSleep,
	}
}

func ctxSleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run drives the loop controls named in §4.5: at most MaxConstraintsPerRun
// cycles, stopping early on budget exhaustion, ConsecutiveDismissalStop
// consecutive dismissals, or context cancellation. A MinCyclePause
// separates every cycle.
func (c *Cycle) Run(ctx context.Context, goal string, verificationPages []string) error {
	maxRun := c.MaxConstraintsPerRun
	if maxRun == 0 {
		maxRun = defaultMaxConstraintsPerRun
	}
	stopAfter := c.ConsecutiveDismissalStop
	if stopAfter == 0 {
		stopAfter = defaultConsecutiveDismissalStop
	}
	pause := c.MinCyclePause
	if pause == 0 {
		pause = defaultMinCyclePause
	}

	consecutiveDismissals := 0
	for run := 0; run < maxRun; run++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if c.Budget != nil && c.Budget.Remaining() <= 0 {
			logging.ELON("budget exhausted, stopping constraint loop")
			return nil
		}

		outcome, err := c.RunOneCycle(ctx, goal, verificationPages)
		if err != nil {
			logging.ELONError("constraint cycle failed: %v", err)
			return err
		}

		if outcome == OutcomeDismissed {
			consecutiveDismissals++
			if consecutiveDismissals >= stopAfter {
				logging.ELON("stopping after %d consecutive dismissals", consecutiveDismissals)
				return nil
			}
		} else {
			consecutiveDismissals = 0
		}

		if run < maxRun-1 {
			c.Sleep(ctx, pause)
		}
	}
	return nil
}

// RunOneCycle executes exactly one observe->analyse->plan->execute pass.
func (c *Cycle) RunOneCycle(ctx context.Context, goal string, verificationPages []string) (CycleOutcome, error) {
	log, err := c.ELON.LoadLog()
	if err != nil {
		return OutcomeIdle, fmt.Errorf("load elon log: %w", err)
	}

	findings, err := c.observe(verificationPages)
	if err != nil {
		return OutcomeIdle, err
	}
	findings = probe.FilterAuthNoise(findings)

	regression, err := c.Regression.All()
	if err != nil {
		return OutcomeIdle, fmt.Errorf("load regression tracker: %w", err)
	}

	priorityFiles := PriorityFilesFromLog(log)
	evidence := BuildEvidence(c.RepoRoot, goal, findings, regression, log.BlockedConstraints, log.FailedHistory, priorityFiles)

	report, err := c.dispatchAnalyst(ctx, evidence)
	if err != nil {
		return OutcomeIdle, err
	}

	solved := append([]types.ConstraintReport(nil), log.Solved...)
	if IsDismissable(report.LimitingFactor, log.BlockedConstraints, solved) {
		logging.ELON("dismissed candidate constraint: %s", report.LimitingFactor.Description)
		log.BlockedConstraints = append(log.BlockedConstraints, report.LimitingFactor.Description)
		if err := c.ELON.SaveLog(log); err != nil {
			return OutcomeIdle, err
		}
		return OutcomeDismissed, nil
	}

	report.ID = uuid.NewString()
	if err := c.emitPlan(report); err != nil {
		return OutcomeIdle, err
	}

	report.CreatedAt = c.now()
	log.Current = report
	if err := c.ELON.SaveLog(log); err != nil {
		return OutcomeIdle, err
	}
	if err := c.ELON.SaveReport(report); err != nil {
		return OutcomeIdle, err
	}

	logging.ELON("emitted constraint %q with %d plan step(s)", report.LimitingFactor.Description, len(report.Plan))
	return OutcomeEmitted, nil
}

func (c *Cycle) observe(verificationPages []string) ([]probe.Finding, error) {
	if c.Collector == nil {
		return nil, nil
	}
	var findings []probe.Finding
	crawl, err := c.Collector.Crawl(verificationPages)
	if err != nil {
		logging.ELONError("crawl observe step failed: %v", err)
	} else {
		findings = append(findings, crawl.Findings...)
	}
	health, err := c.Collector.CheckIntegrations()
	if err != nil {
		logging.ELONError("integration health observe step failed: %v", err)
	} else {
		findings = append(findings, health.Findings...)
	}
	return findings, nil
}

func (c *Cycle) dispatchAnalyst(ctx context.Context, evidence Evidence) (*types.ConstraintReport, error) {
	payload := renderEvidencePayload(evidence)
	result, err := c.Dispatcher.Dispatch(ctx, dispatch.Task{
		AgentName: "elon-analyst",
		Kind:      dispatch.KindELONAnalyst,
		Payload:   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch analyst: %w", err)
	}
	if result.RawText == "" {
		return nil, fmt.Errorf("analyst call skipped: %s", result.Reason)
	}

	parsed, err := parseAnalystResponse(result.RawText)
	if err != nil {
		return nil, err
	}

	return &types.ConstraintReport{
		CurrentGoal:        evidence.Goal,
		LimitingFactor:      parsed.LimitingFactor,
		Plan:               parsed.Plan,
		VerificationPages:  parsed.VerificationPages,
		CompletionCriteria: parsed.CompletionCriteria,
	}, nil
}

// emitPlan enqueues one spec per plan step: safe, single-file replace/
// append/create steps are auto-approved; multi-file steps go to
// pending-queue for owner review.
func (c *Cycle) emitPlan(report *types.ConstraintReport) error {
	for i := range report.Plan {
		spec := report.Plan[i]
		if spec.ID == "" {
			spec.ID = fmt.Sprintf("%s-step-%d", report.ID, i+1)
		}
		spec.Kind = types.SpecKindConstraintStep
		spec.ConstraintID = report.ID
		spec.CreatedAt = c.now()
		spec.Status = types.StatusPending

		queue := store.QueuePending
		if isSafePathStep(spec) {
			queue = store.QueueApproved
			spec.Status = types.StatusApproved
		}
		if err := c.Queue.Enqueue(&spec, queue); err != nil {
			return fmt.Errorf("enqueue plan step %d: %w", i+1, err)
		}
		report.Plan[i] = spec
	}
	return nil
}

func isSafePathStep(spec types.Spec) bool {
	switch spec.Action {
	case types.ActionReplace, types.ActionAppend, types.ActionCreate:
		return true
	default:
		return false
	}
}

func (c *Cycle) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
