package heartbeat

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhmac/sneebly/internal/codeengine"
	"github.com/jhmac/sneebly/internal/config"
	"github.com/jhmac/sneebly/internal/dispatch"
	"github.com/jhmac/sneebly/internal/probe"
	"github.com/jhmac/sneebly/internal/safety"
	"github.com/jhmac/sneebly/internal/specloop"
	"github.com/jhmac/sneebly/internal/store"
	"github.com/jhmac/sneebly/internal/types"
)

type fakeClient struct{ response string }

func (c *fakeClient) Complete(ctx context.Context, prompt string) (string, error) { return c.response, nil }
func (c *fakeClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.response, nil
}

type fakeCollector struct {
	runtime probe.RuntimeVerdict
	crawl   probe.CrawlResult
}

func (f fakeCollector) Crawl(pages []string) (probe.CrawlResult, error)     { return f.crawl, nil }
func (f fakeCollector) CheckIntegrations() (probe.IntegrationHealth, error) { return probe.IntegrationHealth{}, nil }
func (f fakeCollector) ProbeRuntime(healthURL string) (probe.RuntimeVerdict, error) {
	return f.runtime, nil
}

func newTestOrchestrator(t *testing.T, client *fakeClient, collector probe.Collector) (*Orchestrator, string) {
	t.Helper()
	root := t.TempDir()
	s, err := store.Open(root)
	require.NoError(t, err)

	identity := safety.NewIdentityGuard(root, []string{"SOUL.md"})
	require.NoError(t, os.WriteFile(filepath.Join(root, "SOUL.md"), []byte("be careful"), 0o644))
	require.NoError(t, identity.Initialize())
	validator := safety.NewOutputValidator(root, identity, nil, nil)
	sanitizer := safety.NewSanitizer(nil)
	budget := dispatch.NewBudget(5.0, 4.0)
	d := dispatch.New(client, budget, dispatch.IdentityFiles{Soul: "be careful"}, dispatch.SubagentDefinitions{
		dispatch.KindErrorResolver:  "you triage errors",
		dispatch.KindPerfOptimizer:  "you optimize performance",
		dispatch.KindCodebaseIntel:  "you survey the codebase",
		dispatch.KindSelfImprover:   "you improve yourself",
	}, validator, sanitizer)

	engine := codeengine.New(root, store.NewBackupStore(s), validator)
	txm := codeengine.NewTransactionManager(engine)
	queue := store.NewSpecQueue(s)
	blockers := store.NewBlockerStore(s)
	decisions := store.NewDecisionLog(s)
	runner := specloop.NewRunner(root, d, engine, txm, queue, blockers, decisions, sanitizer)

	o := NewOrchestrator(config.HeartbeatConfig{})
	o.Identity = identity
	o.KnownErrors = store.NewKnownErrorRegistry(s)
	o.Blockers = blockers
	o.Metrics = store.NewMetricsStore(s)
	o.Regression = store.NewRegressionTracker(s)
	o.Decisions = decisions
	o.Queue = queue
	o.Budget = budget
	o.Dispatcher = d
	o.Collector = collector
	o.SpecRunner = runner
	o.HealthURL = "http://example.invalid/health"
	o.Sleep = func(ctx context.Context, d time.Duration) {}
	return o, root
}

func TestTickAbortsOnIdentityMismatch(t *testing.T) {
	o, root := newTestOrchestrator(t, &fakeClient{response: "SPEC_COMPLETE"}, fakeCollector{runtime: probe.RuntimeVerdict{Healthy: true}})
	require.NoError(t, os.WriteFile(filepath.Join(root, "SOUL.md"), []byte("tampered"), 0o644))

	result := o.Tick(context.Background())
	assert.True(t, result.Aborted)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, "identity-verify", result.Steps[0].Step)
}

func TestTickRunsErrorTriageAndAbortsWhenHostUnhealthy(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeClient{response: "noted"}, fakeCollector{runtime: probe.RuntimeVerdict{Healthy: false, CrashMarker: "panic: nil pointer"}})

	result := o.Tick(context.Background())
	assert.True(t, result.Aborted)
	assert.Equal(t, "host unhealthy", result.Reason)

	var sawHealthProbe, sawTriage bool
	for _, step := range result.Steps {
		if step.Step == "health-probe" {
			sawHealthProbe = true
		}
		if step.Step == "error-triage" {
			sawTriage = true
		}
	}
	assert.True(t, sawHealthProbe)
	assert.True(t, sawTriage, "an unhealthy host must run error triage before aborting")
}

func TestTickRunsAllTenStepsWhenHostHealthy(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeClient{response: "ack"}, fakeCollector{runtime: probe.RuntimeVerdict{Healthy: true}})

	result := o.Tick(context.Background())
	assert.False(t, result.Aborted)

	want := []string{
		"identity-verify", "drain-error-log", "build-system-prompt", "health-probe",
		"crawl-pass", "error-triage", "performance-analysis", "codebase-discovery",
		"drain-approved-queue", "weekly-analysis",
	}
	require.Len(t, result.Steps, len(want))
	for i, name := range want {
		assert.Equal(t, name, result.Steps[i].Step, "step %d out of order", i)
	}
}

func TestTickSkipsRemainingStepsWhenBudgetExhausted(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeClient{response: "ack"}, fakeCollector{runtime: probe.RuntimeVerdict{Healthy: true}})
	o.Budget.Deduct(o.Budget.Max, time.Now())

	result := o.Tick(context.Background())
	assert.True(t, result.Aborted)
	assert.Equal(t, "budget exhausted", result.Reason)

	last := result.Steps[len(result.Steps)-1]
	assert.False(t, last.Ran)
}

func TestCodebaseDiscoveryOnlyRunsOnGatedTick(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeClient{response: "ack"}, fakeCollector{runtime: probe.RuntimeVerdict{Healthy: true}})
	o.Config.CodebaseDiscoveryEveryN = 2

	first := o.Tick(context.Background())
	second := o.Tick(context.Background())

	findStep := func(r TickResult) StepOutcome {
		for _, s := range r.Steps {
			if s.Step == "codebase-discovery" {
				return s
			}
		}
		t.Fatal("codebase-discovery step missing")
		return StepOutcome{}
	}
	assert.False(t, findStep(first).Ran, "tick 1 is not a multiple of 2")
	assert.True(t, findStep(second).Ran, "tick 2 is a multiple of 2")
}

func TestWeeklyAnalysisOnlyRunsOnConfiguredWeekday(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeClient{response: "ack"}, fakeCollector{runtime: probe.RuntimeVerdict{Healthy: true}})
	o.Config.DeepAnalysisWeekday = "Sunday"
	o.Config.SelfImproverWeekday = "Wednesday"

	tuesday := time.Date(2026, 7, 28, 9, 0, 0, 0, time.UTC) // a Tuesday
	o.Now = func() time.Time { return tuesday }
	result := o.Tick(context.Background())
	var notScheduled StepOutcome
	for _, s := range result.Steps {
		if s.Step == "weekly-analysis" {
			notScheduled = s
		}
	}
	assert.False(t, notScheduled.Ran, "no weekly analysis is scheduled on a Tuesday")

	sunday := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC) // a Sunday
	o.Now = func() time.Time { return sunday }
	result = o.Tick(context.Background())
	var scheduled StepOutcome
	for _, s := range result.Steps {
		if s.Step == "weekly-analysis" {
			scheduled = s
		}
	}
	assert.True(t, scheduled.Ran, "deep-analysis weekday must run the weekly step")

	o.tickCount = 0
	result = o.Tick(context.Background())
	for _, s := range result.Steps {
		if s.Step == "weekly-analysis" {
			scheduled = s
		}
	}
	assert.False(t, scheduled.Ran, "a second tick on the same day must not re-run the weekly step")
}

func TestDrainApprovedQueueRunsEachApprovedSpec(t *testing.T) {
	client := &fakeClient{response: "SPEC_COMPLETE"}
	o, root := newTestOrchestrator(t, client, fakeCollector{runtime: probe.RuntimeVerdict{Healthy: true}})

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0o644))
	spec := &types.Spec{
		ID:              "spec-1",
		Kind:            types.SpecKindFix,
		FilePath:        "a.go",
		Action:          types.ActionReplace,
		Description:     "fix it",
		SuccessCriteria: []string{"it works"},
		CreatedAt:       time.Now(),
		Status:          types.StatusApproved,
	}
	require.NoError(t, o.Queue.Enqueue(spec, store.QueueApproved))

	result := o.Tick(context.Background())
	assert.False(t, result.Aborted)

	loaded, err := o.Queue.Load(store.QueueCompleted, "spec-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, loaded.Status)
}
