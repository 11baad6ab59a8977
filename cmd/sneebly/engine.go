// Package main wires sneebly's components into a single runnable process:
// a cobra CLI that either runs the monitoring loop continuously (heartbeat)
// or drives a single pass of any one component for operator inspection.
package main

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jhmac/sneebly/internal/codeengine"
	"github.com/jhmac/sneebly/internal/config"
	"github.com/jhmac/sneebly/internal/dispatch"
	"github.com/jhmac/sneebly/internal/elon"
	"github.com/jhmac/sneebly/internal/heartbeat"
	"github.com/jhmac/sneebly/internal/llm"
	"github.com/jhmac/sneebly/internal/logging"
	"github.com/jhmac/sneebly/internal/planner"
	"github.com/jhmac/sneebly/internal/probe"
	"github.com/jhmac/sneebly/internal/safety"
	"github.com/jhmac/sneebly/internal/specloop"
	"github.com/jhmac/sneebly/internal/store"
)

// engine is every dependency a subcommand might need, assembled once per
// invocation from the loaded config and the workspace root.
type engine struct {
	Workspace string
	Config    *config.Config

	Store      *store.Store
	Identity   *safety.IdentityGuard
	Whitelist  *safety.Whitelist
	Sanitizer  *safety.Sanitizer
	Validator  *safety.OutputValidator
	Budget     *dispatch.Budget
	Client     llm.Client
	Dispatcher *dispatch.Dispatcher

	CodeEngine   *codeengine.Engine
	Transactions *codeengine.TransactionManager

	Queue       *store.SpecQueue
	Blockers    *store.BlockerStore
	Decisions   *store.DecisionLog
	KnownErrors *store.KnownErrorRegistry
	Metrics     *store.MetricsStore
	Regression  *store.RegressionTracker
	ELONStore   *store.ELONStore

	SpecRunner *specloop.Runner
	Cycle      *elon.Cycle
	Verifier   *planner.Verifier
	Builder    *planner.Builder
	Planner    *planner.Planner
	AutoFixer  *planner.AutoFixer
	Heartbeat  *heartbeat.Orchestrator

	Collector probe.Collector
}

// newEngine loads configPath (or sneebly's defaults if it doesn't exist)
// and wires every component together exactly once. apiKeyOverride, when
// non-empty, takes precedence over whatever config.Load/env resolved.
func newEngine(ctx context.Context, workspace, configPath, apiKeyOverride string) (*engine, error) {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}

	if err := logging.Initialize(abs); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	if configPath == "" {
		configPath = filepath.Join(abs, ".sneebly", "config.yaml")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if apiKeyOverride != "" {
		cfg.LLM.APIKey = apiKeyOverride
	}

	s, err := store.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	identity := safety.NewIdentityGuard(abs, cfg.Safety.IdentityFiles)
	whitelist := safety.NewWhitelist(cfg.Execution.AllowedBinaries, cfg.Execution.AllowedArgs)
	sanitizer := safety.NewSanitizer(cfg.Safety.InjectionPatterns)
	validator := safety.NewOutputValidator(abs, identity, cfg.Safety.DeniedFileNames, cfg.Safety.DeniedPathPrefixes)

	budget := dispatch.NewBudget(cfg.Budget.MaxUSD, cfg.Budget.WarningUSD)

	client, err := newVendorClient(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("construct vendor client: %w", err)
	}

	dispatcher := dispatch.New(client, budget, dispatch.IdentityFiles{}, defaultSubagentDefinitions(), validator, sanitizer)

	backups := store.NewBackupStore(s)
	codeEngine := codeengine.New(abs, backups, validator)
	txm := codeengine.NewTransactionManager(codeEngine)

	queue := store.NewSpecQueue(s)
	blockers := store.NewBlockerStore(s)
	decisions := store.NewDecisionLog(s)
	knownErrors := store.NewKnownErrorRegistry(s)
	metrics := store.NewMetricsStore(s)
	regression := store.NewRegressionTracker(s)
	elonStore := store.NewELONStore(s)

	specRunner := specloop.NewRunner(abs, dispatcher, codeEngine, txm, queue, blockers, decisions, sanitizer)
	specRunner.RunCommand = whitelistedCommandRunner(whitelist, cfg.Execution.WorkingDirectory)

	if watcher, err := store.NewQueueWatcher(s.Layout); err != nil {
		logging.StoreWarn("queue watcher unavailable: %v", err)
	} else {
		watcher.Start(ctx)
		go func() {
			for q := range watcher.Changed {
				logging.Store("queue file dropped externally: %s", q)
			}
		}()
	}

	collector := newHostCollector(cfg.HostAppURL)
	cycle := elon.NewCycle(abs, dispatcher, budget, queue, elonStore, regression, collector)

	var browserProbe planner.BrowserProbe
	if cfg.HostAppURL != "" {
		browserProbe = planner.NewRodBrowserProbe("", 0)
	}
	verifier := planner.NewVerifier(abs, cfg.HostAppURL, browserProbe)
	builder := planner.NewBuilder(abs, dispatcher, txm, verifier, decisions, sanitizer)
	builder.RunCommand = whitelistedCommandRunner(whitelist, cfg.Execution.WorkingDirectory)
	plan := planner.NewPlanner(dispatcher)
	autoFixer := planner.NewAutoFixer(abs, dispatcher, txm, verifier, blockers, decisions)

	hb := heartbeat.NewOrchestrator(cfg.Heartbeat)
	hb.Identity = identity
	hb.KnownErrors = knownErrors
	hb.Blockers = blockers
	hb.Metrics = metrics
	hb.Regression = regression
	hb.Decisions = decisions
	hb.Queue = queue
	hb.Budget = budget
	hb.Dispatcher = dispatcher
	hb.Collector = collector
	hb.SpecRunner = specRunner
	hb.HealthURL = cfg.Heartbeat.HealthEndpoint

	return &engine{
		Workspace:    abs,
		Config:       cfg,
		Store:        s,
		Identity:     identity,
		Whitelist:    whitelist,
		Sanitizer:    sanitizer,
		Validator:    validator,
		Budget:       budget,
		Client:       client,
		Dispatcher:   dispatcher,
		CodeEngine:   codeEngine,
		Transactions: txm,
		Queue:        queue,
		Blockers:     blockers,
		Decisions:    decisions,
		KnownErrors:  knownErrors,
		Metrics:      metrics,
		Regression:   regression,
		ELONStore:    elonStore,
		SpecRunner:   specRunner,
		Cycle:        cycle,
		Verifier:     verifier,
		Builder:      builder,
		Planner:      plan,
		AutoFixer:    autoFixer,
		Heartbeat:    hb,
		Collector:    collector,
	}, nil
}

// defaultSubagentDefinitions is the fixed identity-prompt-per-kind table
// every subagent dispatch is assembled against.
func defaultSubagentDefinitions() dispatch.SubagentDefinitions {
	return dispatch.SubagentDefinitions{
		dispatch.KindErrorResolver: "You are sneebly's error-resolver subagent. Diagnose the reported runtime or build error and propose the smallest change set that fixes it.",
		dispatch.KindPerfOptimizer: "You are sneebly's performance-optimizer subagent. Identify the single highest-leverage performance fix and propose it as a change set.",
		dispatch.KindCodebaseIntel: "You are sneebly's codebase-intelligence subagent. Surface one concrete improvement opportunity the owner has not already queued.",
		dispatch.KindSelfImprover:  "You are sneebly's self-improvement subagent. Propose one change to sneebly's own code that would make future iterations more reliable.",
		dispatch.KindSpecExecutor:  "You are sneebly's spec-execution subagent. Implement the given spec exactly, emitting a single change set or SPEC_COMPLETE.",
		dispatch.KindELONAnalyst:   "You are sneebly's constraint analyst. Identify the single limiting factor most worth attacking next and turn it into a spec plan.",
		dispatch.KindELONEvaluator: "You are sneebly's constraint evaluator. Judge whether a completed constraint cycle actually resolved the limiting factor.",
		dispatch.KindELONBuilder:   "You are sneebly's builder subagent. Implement exactly one planned step and emit its change set.",
		dispatch.KindELONPlanner:   "You are sneebly's planner subagent. Decompose the given goal into an ordered, dependency-checked step graph.",
		dispatch.KindAutoFixer:     "You are sneebly's auto-fixer subagent. Diagnose an active blocker and either redirect (already resolved) or emit a fix change set.",
	}
}

func newVendorClient(ctx context.Context, cfg config.LLMConfig) (llm.Client, error) {
	switch cfg.Provider {
	case "genai":
		genCfg := llm.DefaultGenAIConfig(cfg.APIKey)
		if cfg.Model != "" {
			genCfg.Model = cfg.Model
		}
		return llm.NewGenAIClientWithConfig(ctx, genCfg)
	default:
		anthCfg := llm.DefaultAnthropicConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			anthCfg.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			anthCfg.Model = cfg.Model
		}
		return llm.NewAnthropicClientWithConfig(anthCfg), nil
	}
}

// whitelistedCommandRunner adapts the Safety Kernel's command whitelist
// into the plain func(ctx, command) (bool, string, error) shape both
// specloop.Runner and planner.Builder declare independently. Returned as
// an unnamed function value so it assigns to either named type without an
// explicit conversion.
func whitelistedCommandRunner(whitelist *safety.Whitelist, workdir string) func(ctx context.Context, command string) (bool, string, error) {
	return func(ctx context.Context, command string) (bool, string, error) {
		result := whitelist.ValidateCommand(command)
		if !result.Allowed {
			return false, "", fmt.Errorf("command rejected by whitelist: %s", result.Reason)
		}

		argv := splitCommandLine(command)
		if len(argv) == 0 {
			return false, "", fmt.Errorf("could not split command: %s", command)
		}

		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		if workdir != "" {
			cmd.Dir = workdir
		}
		output, err := cmd.CombinedOutput()
		if err != nil {
			return false, string(output), nil
		}
		return true, string(output), nil
	}
}

// splitCommandLine is a minimal whitespace tokenizer that respects balanced
// quotes, mirroring the Whitelist's own parsing so the argv exec sees
// matches what ValidateCommand screened. Never a full shell lexer: commands
// needing real shell semantics are not whitelisted in the first place.
func splitCommandLine(command string) []string {
	var fields []string
	var cur strings.Builder
	var quote rune
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.TrimSpace(command) {
		switch {
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == ' ' || r == '\t'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return fields
}
