package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/jhmac/sneebly/internal/llm"
	"github.com/jhmac/sneebly/internal/logging"
	"github.com/jhmac/sneebly/internal/safety"
)

// Task is the structured request handed to one subagent call. Request
// fields are strictly structured data, never free text injected directly
// into the prompt — the caller assembles Payload itself.
type Task struct {
	AgentName     string
	Kind          SubagentKind
	Payload       string // already-wrapped task payload (see safety.Sanitizer)
	ModelTier     llm.Tier
	DryRun        bool
}

// Result is what the dispatcher returns for one call: either a usable
// parsed response, a skip (budget gate), or a queue fallback (parse
// failure or validation failure).
type Result struct {
	Action    string // "dispatch", "skip", "queue"
	Reason    string
	Parsed    *ParseResult
	RawText   string
	CostUSD   float64
}

// Dispatcher is the single entry point for every LLM call in sneebly.
type Dispatcher struct {
	client    llm.Client
	budget    *Budget
	identity  IdentityFiles
	defs      SubagentDefinitions
	validator *safety.OutputValidator
	sanitizer *safety.Sanitizer
	now       func() time.Time
}

// New constructs a Dispatcher.
func New(client llm.Client, budget *Budget, identity IdentityFiles, defs SubagentDefinitions, validator *safety.OutputValidator, sanitizer *safety.Sanitizer) *Dispatcher {
	return &Dispatcher{
		client:    client,
		budget:    budget,
		identity:  identity,
		defs:      defs,
		validator: validator,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Dispatch runs one subagent call end to end: budget gate, prompt assembly,
// vendor call with retry, and the 7-step response parsing chain. Parsed
// actionable responses with a file target are validated through the Safety
// Kernel; a failed validation downgrades the result to "queue".
func (d *Dispatcher) Dispatch(ctx context.Context, task Task) (Result, error) {
	tier := task.ModelTier
	if tier == "" {
		tier = llm.TierSonnet
	}

	if !d.budget.Gate(tier) {
		logging.Dispatch("budget gate rejected call agent=%s tier=%s", task.AgentName, tier)
		return Result{Action: "skip", Reason: "budget-exceeded"}, nil
	}

	if task.DryRun {
		return Result{Action: "skip", Reason: "dry-run"}, nil
	}

	systemPrompt := AssembleSystemPrompt(d.identity, d.defs, task.Kind)

	text, err := callWithRetry(ctx, func(ctx context.Context) (string, error) {
		return d.client.CompleteWithSystem(ctx, systemPrompt, task.Payload)
	})
	if err != nil {
		if ve, ok := llm.AsVendorError(err); ok {
			logging.DispatchError("dispatch failed agent=%s kind=%s: %v", task.AgentName, ve.Kind, err)
			return Result{Action: "skip", Reason: fmt.Sprintf("vendor-error:%s", ve.Kind)}, nil
		}
		return Result{}, err
	}

	d.budget.Deduct(EstimatedCost(tier), d.now())

	parsed := ParseExecutorResponse(text)
	if parsed.Action == "dispatch" && parsed.Response != nil && parsed.Response.Change != nil {
		result := d.validator.Validate(safety.ProposedAction{
			Kind:    safety.ActionEditFile,
			Path:    parsed.Response.Change.FilePath,
			Content: parsed.Response.Change.NewCode,
		})
		if !result.Allowed {
			logging.DispatchError("validation rejected parsed response agent=%s: %s", task.AgentName, result.Reason)
			return Result{Action: "queue", Reason: "validation-failed: " + result.Reason, RawText: text}, nil
		}
	}

	return Result{
		Action:  parsed.Action,
		Reason:  parsed.Reason,
		Parsed:  &parsed,
		RawText: text,
		CostUSD: EstimatedCost(tier),
	}, nil
}
