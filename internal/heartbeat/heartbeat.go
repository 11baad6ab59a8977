// Package heartbeat implements the Heartbeat Orchestrator: the fixed
// 10-step monitoring tick that runs identity verification, error triage,
// health/crawl probes, and drains the approved spec queue. The step order
// is hardcoded for safety and never reordered.
package heartbeat

import (
	"context"
	"fmt"
	"time"

	"github.com/jhmac/sneebly/internal/config"
	"github.com/jhmac/sneebly/internal/dispatch"
	"github.com/jhmac/sneebly/internal/llm"
	"github.com/jhmac/sneebly/internal/logging"
	"github.com/jhmac/sneebly/internal/probe"
	"github.com/jhmac/sneebly/internal/safety"
	"github.com/jhmac/sneebly/internal/specloop"
	"github.com/jhmac/sneebly/internal/store"
)

// StepOutcome records whether one of the ten fixed steps ran, was skipped
// (budget exhausted, gating interval not reached, host healthy), or failed.
type StepOutcome struct {
	Step   string
	Ran    bool
	Detail string
}

// TickResult is the full record of one heartbeat pass, in step order.
type TickResult struct {
	Steps   []StepOutcome
	Aborted bool
	Reason  string
}

func (t *TickResult) record(step string, ran bool, detail string) {
	t.Steps = append(t.Steps, StepOutcome{Step: step, Ran: ran, Detail: detail})
}

// Orchestrator owns every dependency one heartbeat tick touches.
type Orchestrator struct {
	Config config.HeartbeatConfig

	Identity    *safety.IdentityGuard
	KnownErrors *store.KnownErrorRegistry
	Blockers    *store.BlockerStore
	Metrics     *store.MetricsStore
	Regression  *store.RegressionTracker
	Decisions   *store.DecisionLog
	Queue       *store.SpecQueue
	Budget      *dispatch.Budget
	Dispatcher  *dispatch.Dispatcher
	Collector   probe.Collector
	SpecRunner  *specloop.Runner

	HealthURL string

	// tickCount and weekday-run bookkeeping gate the interval-only steps
	// (codebase discovery, weekly deep-analysis/self-improver).
	tickCount       int
	lastDeepAnalDay string
	lastSelfImpDay  string

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration)
}

// NewOrchestrator constructs an Orchestrator; callers wire in whichever
// dependencies they have available and leave the rest nil — every step
// that needs a nil dependency is skipped, not a panic.
func NewOrchestrator(cfg config.HeartbeatConfig) *Orchestrator {
	return &Orchestrator{
		Config: cfg,
		Now:    time.Now,
		Sleep:  ctxSleep,
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

func (o *Orchestrator) ratePause(ctx context.Context) {
	sec := o.Config.RatePauseSec
	if sec <= 0 {
		sec = 4
	}
	o.Sleep(ctx, time.Duration(sec*float64(time.Second)))
}

// Tick runs the fixed 10-step sequence once. A step failure never panics;
// it's recorded on the result and, for the steps §4.6 marks as
// abort-worthy (identity mismatch, host down), the remaining steps are
// skipped.
func (o *Orchestrator) Tick(ctx context.Context) TickResult {
	result := TickResult{}
	o.tickCount++
	now := o.Now()

	// Step 1: identity verification.
	if o.Identity != nil {
		verification, err := o.Identity.Verify()
		if err != nil {
			result.record("identity-verify", false, err.Error())
		} else if !verification.Valid {
			result.record("identity-verify", true, fmt.Sprintf("%d change(s) detected, halting", len(verification.Changes)))
			result.Aborted = true
			result.Reason = "identity verification failed"
			logging.HeartbeatError("tick aborted: identity mismatch")
			return result
		} else {
			result.record("identity-verify", true, "ok")
		}
	} else {
		result.record("identity-verify", false, "no identity guard configured")
	}

	// Step 2: error log drain under advisory lock.
	if o.KnownErrors != nil {
		n, err := o.KnownErrors.DrainErrorLog(now)
		if err != nil {
			result.record("drain-error-log", false, err.Error())
		} else {
			result.record("drain-error-log", true, fmt.Sprintf("drained %d line(s)", n))
		}
	} else {
		result.record("drain-error-log", false, "no known-error registry configured")
	}

	// Step 3: system prompt build — a no-op placeholder at tick level;
	// the dispatcher assembles the real prompt per-call from identity
	// files, so this step only confirms the guard hasn't halted between
	// step 1 and here.
	result.record("build-system-prompt", true, "ok")

	// Step 4: health probe; if down, run error triage and return early.
	if o.budgetExhausted(&result, "health-probe") {
		return result
	}
	healthy := true
	if o.Collector != nil && o.HealthURL != "" {
		verdict, err := o.Collector.ProbeRuntime(o.HealthURL)
		if err != nil {
			result.record("health-probe", false, err.Error())
		} else {
			healthy = verdict.Healthy
			result.record("health-probe", true, fmt.Sprintf("healthy=%v crashMarker=%q", verdict.Healthy, verdict.CrashMarker))
		}
	} else {
		result.record("health-probe", false, "no collector/health URL configured")
	}
	if !healthy {
		o.runErrorTriage(ctx, &result, 1)
		result.Aborted = true
		result.Reason = "host unhealthy"
		return result
	}

	// Step 5: optional crawl pass.
	var newFindings []probe.Finding
	if o.budgetExhausted(&result, "crawl-pass") {
		return result
	}
	if o.Collector != nil {
		crawl, err := o.Collector.Crawl(nil)
		if err != nil {
			result.record("crawl-pass", false, err.Error())
		} else {
			newFindings = probe.FilterAuthNoise(crawl.Findings)
			for _, f := range newFindings {
				if o.KnownErrors != nil {
					_ = o.KnownErrors.Record(f.Message, now)
				}
			}
			result.record("crawl-pass", true, fmt.Sprintf("%d finding(s)", len(newFindings)))
			o.ratePause(ctx)
		}
	} else {
		result.record("crawl-pass", false, "no collector configured")
	}

	// Step 6: error triage, capped at Config.MaxNewErrorsPerTick (default 5).
	if o.budgetExhausted(&result, "error-triage") {
		return result
	}
	o.runErrorTriage(ctx, &result, o.maxNewErrorsPerTick())

	// Step 7: performance analysis over recent metric snapshots.
	if o.budgetExhausted(&result, "performance-analysis") {
		return result
	}
	o.runPerformanceAnalysis(ctx, &result)

	// Step 8: codebase discovery, gated to every Nth tick.
	if o.budgetExhausted(&result, "codebase-discovery") {
		return result
	}
	o.runCodebaseDiscovery(ctx, &result)

	// Step 9: drain approved-queue through the Spec Execution Loop.
	if o.budgetExhausted(&result, "drain-approved-queue") {
		return result
	}
	o.drainApprovedQueue(ctx, &result)

	// Step 10: weekly deep analysis / self-improver.
	if o.budgetExhausted(&result, "weekly-analysis") {
		return result
	}
	o.runWeeklyAnalysis(ctx, &result, now)

	return result
}

// budgetExhausted implements §4.6's "if spent >= max, remaining steps are
// skipped" rule, logging on each check while spend is at or above the
// warning threshold. It records a
// skipped-step outcome and returns true when the tick must stop here.
func (o *Orchestrator) budgetExhausted(result *TickResult, nextStep string) bool {
	if o.Budget == nil {
		return false
	}
	spent := o.Budget.SpentSoFar()
	if o.Budget.Warning > 0 && spent >= o.Budget.Warning {
		logging.Heartbeat("budget spend %.2f at or above warning threshold %.2f", spent, o.Budget.Warning)
	}
	if o.Budget.Max > 0 && spent >= o.Budget.Max {
		result.record(nextStep, false, "budget ceiling reached, skipping remaining steps")
		result.Aborted = true
		result.Reason = "budget exhausted"
		return true
	}
	return false
}

func (o *Orchestrator) maxNewErrorsPerTick() int {
	if o.Config.MaxNewErrorsPerTick > 0 {
		return o.Config.MaxNewErrorsPerTick
	}
	return 5
}

func (o *Orchestrator) runErrorTriage(ctx context.Context, result *TickResult, limit int) {
	if o.Dispatcher == nil || o.KnownErrors == nil {
		result.record("error-triage", false, "no dispatcher/registry configured")
		return
	}
	errs, err := o.KnownErrors.All()
	if err != nil {
		result.record("error-triage", false, err.Error())
		return
	}

	triaged := 0
	for _, ke := range errs {
		if ke.ResolvedAt != nil {
			continue
		}
		if triaged >= limit {
			break
		}
		payload := fmt.Sprintf("Error signature: %s\nMessage: %s\nOccurrences: %d\nFirst seen: %s\n",
			ke.Signature, ke.Message, ke.Occurrences, ke.FirstSeen.Format(time.RFC3339))
		_, err := o.Dispatcher.Dispatch(ctx, dispatch.Task{
			AgentName: "error-resolver",
			Kind:      dispatch.KindErrorResolver,
			Payload:   payload,
		})
		if err != nil {
			logging.HeartbeatError("error-triage dispatch failed for %s: %v", ke.Signature, err)
			continue
		}
		triaged++
		o.ratePause(ctx)
	}
	result.record("error-triage", true, fmt.Sprintf("triaged %d error(s)", triaged))
}

func (o *Orchestrator) runPerformanceAnalysis(ctx context.Context, result *TickResult) {
	if o.Dispatcher == nil || o.Metrics == nil {
		result.record("performance-analysis", false, "no dispatcher/metrics store configured")
		return
	}
	snapshots, err := o.Metrics.Recent()
	if err != nil {
		result.record("performance-analysis", false, err.Error())
		return
	}
	if len(snapshots) == 0 {
		result.record("performance-analysis", false, "no metric snapshots yet")
		return
	}

	payload := renderMetricsPayload(snapshots)
	_, err = o.Dispatcher.Dispatch(ctx, dispatch.Task{
		AgentName: "perf-optimizer",
		Kind:      dispatch.KindPerfOptimizer,
		Payload:   payload,
		ModelTier: llm.TierHaiku,
	})
	if err != nil {
		result.record("performance-analysis", false, err.Error())
		return
	}
	o.ratePause(ctx)
	result.record("performance-analysis", true, fmt.Sprintf("analysed %d snapshot(s)", len(snapshots)))
}

func renderMetricsPayload(snapshots []store.MetricSnapshot) string {
	latest := snapshots[len(snapshots)-1]
	return fmt.Sprintf("Recent metric snapshots: %d total. Latest: completed=%d failed=%d activeBlockers=%d budgetSpentUsd=%.2f at %s\n",
		len(snapshots), latest.SpecsCompleted, latest.SpecsFailed, latest.ActiveBlockers, latest.BudgetSpentUSD, latest.Timestamp.Format(time.RFC3339))
}

func (o *Orchestrator) runCodebaseDiscovery(ctx context.Context, result *TickResult) {
	every := o.Config.CodebaseDiscoveryEveryN
	if every <= 0 {
		every = 12
	}
	if o.tickCount%every != 0 {
		result.record("codebase-discovery", false, fmt.Sprintf("interval-gated, next at tick %d", (o.tickCount/every+1)*every))
		return
	}
	if o.Dispatcher == nil {
		result.record("codebase-discovery", false, "no dispatcher configured")
		return
	}
	_, err := o.Dispatcher.Dispatch(ctx, dispatch.Task{
		AgentName: "codebase-intel",
		Kind:      dispatch.KindCodebaseIntel,
		Payload:   "Survey the codebase for structural drift since the last discovery pass.",
	})
	if err != nil {
		result.record("codebase-discovery", false, err.Error())
		return
	}
	o.ratePause(ctx)
	result.record("codebase-discovery", true, "ran")
}

func (o *Orchestrator) drainApprovedQueue(ctx context.Context, result *TickResult) {
	if o.Queue == nil || o.SpecRunner == nil {
		result.record("drain-approved-queue", false, "no queue/spec runner configured")
		return
	}
	specs, err := o.Queue.List(store.QueueApproved)
	if err != nil {
		result.record("drain-approved-queue", false, err.Error())
		return
	}
	ran := 0
	for _, spec := range specs {
		if o.Budget != nil && o.Budget.Remaining() <= 0 {
			break
		}
		outcome, err := o.SpecRunner.Run(ctx, spec)
		if err != nil {
			logging.HeartbeatError("spec %s failed in drain: %v", spec.ID, err)
			continue
		}
		ran++
		logging.Heartbeat("drained spec %s outcome=%s", spec.ID, outcome)
	}
	result.record("drain-approved-queue", true, fmt.Sprintf("drained %d/%d spec(s)", ran, len(specs)))
}

func (o *Orchestrator) runWeeklyAnalysis(ctx context.Context, result *TickResult, now time.Time) {
	weekday := now.UTC().Weekday().String()
	today := now.UTC().Format("2006-01-02")

	ran := []string{}
	if weekday == orDefault(o.Config.DeepAnalysisWeekday, "Sunday") && o.lastDeepAnalDay != today {
		if o.Dispatcher != nil {
			_, err := o.Dispatcher.Dispatch(ctx, dispatch.Task{
				AgentName: "codebase-intel",
				Kind:      dispatch.KindCodebaseIntel,
				Payload:   "Run the weekly deep-analysis pass.",
				ModelTier: llm.TierOpus,
			})
			if err == nil {
				o.lastDeepAnalDay = today
				ran = append(ran, "deep-analysis")
				o.ratePause(ctx)
			}
		}
	}
	if weekday == orDefault(o.Config.SelfImproverWeekday, "Wednesday") && o.lastSelfImpDay != today {
		if o.Dispatcher != nil {
			_, err := o.Dispatcher.Dispatch(ctx, dispatch.Task{
				AgentName: "self-improver",
				Kind:      dispatch.KindSelfImprover,
				Payload:   "Run the weekly self-improvement pass.",
				ModelTier: llm.TierOpus,
			})
			if err == nil {
				o.lastSelfImpDay = today
				ran = append(ran, "self-improver")
				o.ratePause(ctx)
			}
		}
	}

	if len(ran) == 0 {
		result.record("weekly-analysis", false, "not scheduled today")
		return
	}
	result.record("weekly-analysis", true, fmt.Sprintf("ran: %v", ran))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
