package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"context"

	"github.com/jhmac/sneebly/internal/dispatch"
	"github.com/jhmac/sneebly/internal/llm"
	"github.com/jhmac/sneebly/internal/types"
)

// Planner turns a goal plus a brief of current state into a dependency
// graph of build steps (§4.7), using the higher-effort tier since a bad
// plan wastes every later Builder attempt.
type Planner struct {
	Dispatcher *dispatch.Dispatcher
}

// NewPlanner constructs a Planner bound to dispatcher.
func NewPlanner(dispatcher *dispatch.Dispatcher) *Planner {
	return &Planner{Dispatcher: dispatcher}
}

// rawStep is the planner subagent's per-step JSON shape. DependsOn is a
// list of zero-based indices into the response's own steps array,
// translated to step IDs by resolveSteps once every step has a stable ID
// of its own.
type rawStep struct {
	ID          string `json:"id"`
	Action      string `json:"action"`
	FilePath    string `json:"filePath"`
	Description string `json:"description"`
	DependsOn   []int  `json:"dependsOn"`
	TestCommand string `json:"testCommand"`
	Endpoint    string `json:"endpoint"`
}

type rawPlan struct {
	Steps []rawStep `json:"steps"`
}

// Plan dispatches the planner subagent and converts its response into a
// validated, cycle-checked Graph.
func (p *Planner) Plan(ctx context.Context, goal, contextBrief string) (*Graph, error) {
	payload := renderPlannerPayload(goal, contextBrief)
	result, err := p.Dispatcher.Dispatch(ctx, dispatch.Task{
		AgentName: "planner",
		Kind:      dispatch.KindELONPlanner,
		Payload:   payload,
		ModelTier: llm.TierOpus,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch planner: %w", err)
	}
	if result.RawText == "" {
		return nil, fmt.Errorf("planner call skipped: %s", result.Reason)
	}

	plan, err := parsePlanResponse(result.RawText)
	if err != nil {
		return nil, err
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("planner returned an empty step graph")
	}

	steps, err := resolveSteps(plan.Steps)
	if err != nil {
		return nil, err
	}
	return NewGraph(steps)
}

// resolveSteps assigns a stable ID to every step that didn't bring its own
// and translates each dependsOn index into the referenced step's ID.
func resolveSteps(raw []rawStep) ([]*Step, error) {
	ids := make([]string, len(raw))
	for i, rs := range raw {
		id := rs.ID
		if id == "" {
			id = fmt.Sprintf("s%d", i+1)
		}
		ids[i] = id
	}

	steps := make([]*Step, len(raw))
	for i, rs := range raw {
		var dependsOn []string
		for _, idx := range rs.DependsOn {
			if idx < 0 || idx >= len(ids) {
				return nil, fmt.Errorf("planner: step %q depends on out-of-range index %d", ids[i], idx)
			}
			if idx == i {
				return nil, fmt.Errorf("planner: step %q depends on itself", ids[i])
			}
			dependsOn = append(dependsOn, ids[idx])
		}
		steps[i] = &Step{
			ID:          ids[i],
			Action:      types.SpecAction(rs.Action),
			FilePath:    rs.FilePath,
			Description: rs.Description,
			DependsOn:   dependsOn,
			TestCommand: rs.TestCommand,
			Endpoint:    rs.Endpoint,
			Status:      StepPending,
		}
	}
	return steps, nil
}

func parsePlanResponse(raw string) (*rawPlan, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var plan rawPlan
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
		return nil, fmt.Errorf("parse planner response: %w", err)
	}
	return &plan, nil
}
