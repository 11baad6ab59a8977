// Package dispatch implements the Subagent Dispatcher: the single entry
// point every other component uses to call an LLM, covering prompt
// assembly, budget gating, vendor retry/backoff, and response parsing.
package dispatch

// SubagentKind is the closed set of subagent roles the dispatcher can be
// asked to invoke. Each kind resolves to its own identity-file definition
// appended at the end of the assembled system prompt.
type SubagentKind string

const (
	KindErrorResolver SubagentKind = "errorResolver"
	KindPerfOptimizer SubagentKind = "perfOptimizer"
	KindCodebaseIntel SubagentKind = "codebaseIntel"
	KindSelfImprover  SubagentKind = "selfImprover"
	KindSpecExecutor  SubagentKind = "specExecutor"
	KindELONAnalyst   SubagentKind = "elonAnalyst"
	KindELONEvaluator SubagentKind = "elonEvaluator"
	KindELONBuilder   SubagentKind = "elonBuilder"
	KindELONPlanner   SubagentKind = "elonPlanner"
	KindAutoFixer     SubagentKind = "autoFixer"
)
