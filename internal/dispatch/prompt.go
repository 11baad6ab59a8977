package dispatch

import (
	"strings"

	"github.com/jhmac/sneebly/internal/safety"
)

const memoryTailLimit = 4000

// IdentityFiles holds the raw contents of the fixed identity-file set
// assembled into every system prompt, in composition order.
type IdentityFiles struct {
	Soul     string
	Identity string
	Agents   string
	Tools    string
	User     string
	Goals    string
	Memory   string
}

// SubagentDefinitions maps each SubagentKind to its trailing prompt
// section: role description, output contract, and any kind-specific
// constraints.
type SubagentDefinitions map[SubagentKind]string

// AssembleSystemPrompt builds the fixed-order system prompt: SOUL ->
// IDENTITY -> AGENTS -> TOOLS -> USER -> GOALS -> MEMORY(tail<=4000) ->
// security footer -> subagent definition. Any empty section is omitted
// rather than emitting a blank heading.
func AssembleSystemPrompt(files IdentityFiles, defs SubagentDefinitions, kind SubagentKind) string {
	var sections []string

	appendIfNonEmpty := func(s string) {
		if strings.TrimSpace(s) != "" {
			sections = append(sections, strings.TrimSpace(s))
		}
	}

	appendIfNonEmpty(files.Soul)
	appendIfNonEmpty(files.Identity)
	appendIfNonEmpty(files.Agents)
	appendIfNonEmpty(files.Tools)
	appendIfNonEmpty(files.User)
	appendIfNonEmpty(files.Goals)
	appendIfNonEmpty(tailMemory(files.Memory))
	appendIfNonEmpty(safety.SecurityFooter)
	appendIfNonEmpty(defs[kind])

	return strings.Join(sections, "\n\n")
}

// tailMemory keeps only the final memoryTailLimit characters of mem, so a
// growing memory file never crowds out the fixed-identity sections ahead
// of it.
func tailMemory(mem string) string {
	if len(mem) <= memoryTailLimit {
		return mem
	}
	return mem[len(mem)-memoryTailLimit:]
}
