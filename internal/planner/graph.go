// Package planner implements the Planner + Builder Dual: an alternative
// execution pipeline to the Spec Execution Loop that plans a whole step
// graph up front instead of iterating one spec at a time, builds it in
// dependency order, verifies every modified file with a multi-check
// Verifier, and reacts to active blockers with a bounded self-repair
// loop. The step graph's dependsOn-edges-plus-eligibility shape is a
// plain-Go rendition of a phase/task dependency graph: an edge marks a
// hard prerequisite, and a step becomes eligible the moment every edge
// pointing into it has reached a terminal state.
package planner

import (
	"fmt"

	"github.com/jhmac/sneebly/internal/types"
)

// StepStatus is a step's position in the build's execution lifecycle.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepDone    StepStatus = "done"
	StepFailed  StepStatus = "failed"
)

// Step is one node of a planned step graph: {id, action, filePath,
// description, dependsOn[]} per §4.7, plus the bookkeeping fields the
// Builder and Verifier need.
type Step struct {
	ID          string
	Action      types.SpecAction
	FilePath    string
	Description string
	DependsOn   []string
	TestCommand string
	Endpoint    string // optional: route the Verifier should probe after this step applies
	Status      StepStatus
}

// Graph is an ordered, dependency-checked set of steps.
type Graph struct {
	steps []*Step
	byID  map[string]*Step
}

// NewGraph validates that every dependsOn edge resolves to a known step ID
// and that the graph contains no cycle (Kahn's algorithm: a graph with N
// steps yields a full topological order iff it is acyclic), then returns
// it ready for the Builder.
func NewGraph(steps []*Step) (*Graph, error) {
	byID := make(map[string]*Step, len(steps))
	for _, s := range steps {
		if s.ID == "" {
			return nil, fmt.Errorf("planner: step with empty id")
		}
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("planner: duplicate step id %q", s.ID)
		}
		byID[s.ID] = s
	}
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("planner: step %q depends on unknown step %q", s.ID, dep)
			}
		}
	}

	if _, err := topoOrder(steps, byID); err != nil {
		return nil, err
	}

	for _, s := range steps {
		if s.Status == "" {
			s.Status = StepPending
		}
	}
	return &Graph{steps: steps, byID: byID}, nil
}

// topoOrder runs Kahn's algorithm: repeatedly peel off steps with no
// unresolved incoming edge. A step left over once no more can be peeled
// means a cycle touches it.
func topoOrder(steps []*Step, byID map[string]*Step) ([]*Step, error) {
	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))
	for _, s := range steps {
		indegree[s.ID] = len(s.DependsOn)
		for _, dep := range s.DependsOn {
			dependents[dep] = append(dependents[dep], s.ID)
		}
	}

	var queue []string
	for _, s := range steps {
		if indegree[s.ID] == 0 {
			queue = append(queue, s.ID)
		}
	}

	var order []*Step
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, byID[id])
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(steps) {
		return nil, fmt.Errorf("planner: step graph contains a cycle")
	}
	return order, nil
}

// Steps returns every step in the graph, in the order they were supplied.
func (g *Graph) Steps() []*Step { return g.steps }

// Get looks up a step by ID.
func (g *Graph) Get(id string) (*Step, bool) {
	s, ok := g.byID[id]
	return s, ok
}

// Eligible returns every pending step whose dependencies have all reached
// StepDone. A dependency that is StepFailed permanently blocks the
// dependent step — it will never become eligible. Deliberately no retry
// backoff window here: a failed build step needs owner or auto-fixer
// intervention, not a timed retry.
func (g *Graph) Eligible() []*Step {
	var eligible []*Step
	for _, s := range g.steps {
		if s.Status != StepPending {
			continue
		}
		ready := true
		for _, dep := range s.DependsOn {
			if g.byID[dep].Status != StepDone {
				ready = false
				break
			}
		}
		if ready {
			eligible = append(eligible, s)
		}
	}
	return eligible
}

// AllTerminal reports whether every step has reached StepDone or
// StepFailed.
func (g *Graph) AllTerminal() bool {
	for _, s := range g.steps {
		if s.Status == StepPending {
			return false
		}
	}
	return true
}

// Stalled reports whether the graph still has pending steps but none are
// eligible — every remaining step is blocked behind a failed dependency.
func (g *Graph) Stalled() bool {
	if g.AllTerminal() {
		return false
	}
	return len(g.Eligible()) == 0
}
